package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/ical"
)

// CalendarImporter turns an ICS stream into entities.
type CalendarImporter interface {
	Import(ctx context.Context, r io.Reader) (*ical.ImportResult, error)
}

// ImportCalendarCommand loads an ICS feed into the store.
type ImportCalendarCommand struct {
	Source io.Reader
	// DryRun parses and maps without saving.
	DryRun bool
}

// ImportCalendarResult summarizes an import.
type ImportCalendarResult struct {
	Imported []domain.ScheduledEntity `json:"imported"`
	Skipped  []ical.SkippedEvent      `json:"skipped"`
}

// ImportCalendarHandler handles the ImportCalendarCommand.
type ImportCalendarHandler struct {
	repo     domain.EntityRepository
	importer CalendarImporter
	logger   *slog.Logger
}

// NewImportCalendarHandler creates a new ImportCalendarHandler.
func NewImportCalendarHandler(repo domain.EntityRepository, importer CalendarImporter, logger *slog.Logger) *ImportCalendarHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportCalendarHandler{repo: repo, importer: importer, logger: logger}
}

// Handle executes the ImportCalendarCommand. Events keep their UID as id, so
// re-importing the same feed updates entities in place.
func (h *ImportCalendarHandler) Handle(ctx context.Context, cmd ImportCalendarCommand) (*ImportCalendarResult, error) {
	parsed, err := h.importer.Import(ctx, cmd.Source)
	if err != nil {
		return nil, err
	}

	result := &ImportCalendarResult{
		Imported: parsed.Entities,
		Skipped:  parsed.Skipped,
	}
	if cmd.DryRun {
		return result, nil
	}

	for _, e := range parsed.Entities {
		if err := h.repo.Save(ctx, e); err != nil {
			return nil, fmt.Errorf("save %s: %w", e.ID, err)
		}
	}
	h.logger.Info("calendar entities saved",
		"imported", len(result.Imported),
		"skipped", len(result.Skipped),
	)
	return result, nil
}
