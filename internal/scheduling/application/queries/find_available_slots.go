package queries

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// TimeSlotDTO is a data transfer object for available time slots.
type TimeSlotDTO struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationMin int       `json:"duration_min"`
}

// FindAvailableSlotsQuery contains the parameters for finding available slots.
type FindAvailableSlotsQuery struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Config   services.SlotFinderConfig
	// Limit caps the number of slots; 0 returns all of them.
	Limit int
}

// FindAvailableSlotsHandler handles the FindAvailableSlotsQuery.
type FindAvailableSlotsHandler struct {
	repo   domain.EntityRepository
	logger *slog.Logger
}

// NewFindAvailableSlotsHandler creates a new FindAvailableSlotsHandler.
func NewFindAvailableSlotsHandler(repo domain.EntityRepository, logger *slog.Logger) *FindAvailableSlotsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FindAvailableSlotsHandler{repo: repo, logger: logger}
}

// Handle executes the FindAvailableSlotsQuery.
func (h *FindAvailableSlotsHandler) Handle(ctx context.Context, query FindAvailableSlotsQuery) ([]TimeSlotDTO, error) {
	if !query.Start.Before(query.End) || query.Duration <= 0 {
		return []TimeSlotDTO{}, nil
	}

	// Buffers reach past the range edges, so widen the load by the same amount.
	pad := time.Duration(query.Config.BufferMinutes) * time.Minute
	window := domain.TimeInterval{Start: query.Start.Add(-pad), End: query.End.Add(pad)}
	entities, err := h.repo.ListInRange(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}

	finder := services.NewSlotFinder(domain.NewIntervalIndex(entities...), h.logger)
	slots := services.CollectSlots(finder.FindSlots(query.Start, query.End, query.Duration, query.Config), query.Limit)

	dtos := make([]TimeSlotDTO, len(slots))
	for i, slot := range slots {
		dtos[i] = TimeSlotDTO{
			Start:       slot.Start,
			End:         slot.End,
			DurationMin: slot.Minutes(),
		}
	}

	h.logger.Debug("available slots found",
		"busy", len(entities),
		"slots", len(dtos),
	)
	return dtos, nil
}
