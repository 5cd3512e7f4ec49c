package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/google/uuid"
)

// SuggestPlacementCommand asks for ranked placements of a new item.
type SuggestPlacementCommand struct {
	Request domain.SchedulingRequest
	Options services.ScheduleOptions
	// Book stores the top suggestion as a new entity.
	Book bool
}

// SuggestPlacementResult wraps the engine result and the booked entity, if any.
type SuggestPlacementResult struct {
	*services.ScheduleResult
	Booked *domain.ScheduledEntity `json:"booked,omitempty"`
}

// SuggestPlacementHandler handles the SuggestPlacementCommand.
type SuggestPlacementHandler struct {
	repo   domain.EntityRepository
	engine *services.SchedulingEngine
	logger *slog.Logger
}

// NewSuggestPlacementHandler creates a new SuggestPlacementHandler.
func NewSuggestPlacementHandler(
	repo domain.EntityRepository,
	engine *services.SchedulingEngine,
	logger *slog.Logger,
) *SuggestPlacementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SuggestPlacementHandler{repo: repo, engine: engine, logger: logger}
}

// Handle executes the SuggestPlacementCommand. A malformed request comes
// back as an unsuccessful result carrying validation errors.
func (h *SuggestPlacementHandler) Handle(ctx context.Context, cmd SuggestPlacementCommand) (*SuggestPlacementResult, error) {
	if cmd.Options.Now.IsZero() {
		cmd.Options.Now = time.Now().UTC()
	}

	snapshot, err := h.repo.ListInRange(ctx, snapshotWindow(cmd.Request, cmd.Options))
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	scheduled, err := h.engine.Schedule(ctx, snapshot, cmd.Request, cmd.Options)
	if err != nil {
		return nil, err
	}
	result := &SuggestPlacementResult{ScheduleResult: scheduled}

	if cmd.Book && scheduled.Success {
		booked := bookingFor(cmd.Request, scheduled.Suggestions[0].Slot)
		if err := h.repo.Save(ctx, booked); err != nil {
			return nil, fmt.Errorf("book suggestion: %w", err)
		}
		result.Booked = &booked
		h.logger.Info("suggestion booked",
			"entity_id", booked.ID,
			"slot", booked.Interval.String(),
		)
	}
	return result, nil
}

// snapshotWindow covers every instant the engine may place the request at,
// padded by the buffer and one extra day on each side.
func snapshotWindow(r domain.SchedulingRequest, opts services.ScheduleOptions) domain.TimeInterval {
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = services.DefaultScheduleOptions(opts.Now).HorizonDays
	}
	start, end := opts.Now, opts.Now
	for _, w := range r.PreferredWindows {
		if w.Start.Before(start) {
			start = w.Start
		}
		if w.End.After(end) {
			end = w.End
		}
	}
	end = end.AddDate(0, 0, horizon)
	if r.Deadline != nil && r.Deadline.After(end) {
		end = *r.Deadline
	}
	pad := 24*time.Hour + time.Duration(opts.SlotFinder.BufferMinutes)*time.Minute
	return domain.TimeInterval{Start: start.Add(-pad), End: end.Add(pad)}
}

func bookingFor(r domain.SchedulingRequest, slot domain.TimeInterval) domain.ScheduledEntity {
	category := r.Category
	if category == "" {
		category = domain.CategoryTask
	}
	return domain.ScheduledEntity{
		ID:           uuid.NewString(),
		Title:        r.Title,
		Interval:     slot,
		Category:     category,
		Priority:     r.EffectivePriority(),
		ResourceRefs: domain.NormalizeRefs(r.ResourceRefs),
		Attendees:    domain.NormalizeRefs(r.Attendees),
	}
}
