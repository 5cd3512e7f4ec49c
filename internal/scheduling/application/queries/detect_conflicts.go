package queries

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// DetectConflictsQuery audits the stored snapshot.
type DetectConflictsQuery struct {
	// Range limits the audit to entities overlapping it when set.
	Range  *domain.TimeInterval
	Config services.ConflictDetectorConfig
}

// DetectConflictsResult is the outcome of an audit.
type DetectConflictsResult struct {
	Violations      []domain.ConflictViolation `json:"violations"`
	EntitiesScanned int                        `json:"entities_scanned"`
	HardCount       int                        `json:"hard_count"`
}

// DetectConflictsHandler handles the DetectConflictsQuery.
type DetectConflictsHandler struct {
	repo     domain.EntityRepository
	detector *services.ConflictDetector
	logger   *slog.Logger
}

// NewDetectConflictsHandler creates a new DetectConflictsHandler.
func NewDetectConflictsHandler(
	repo domain.EntityRepository,
	detector *services.ConflictDetector,
	logger *slog.Logger,
) *DetectConflictsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectConflictsHandler{repo: repo, detector: detector, logger: logger}
}

// Handle executes the DetectConflictsQuery.
func (h *DetectConflictsHandler) Handle(ctx context.Context, query DetectConflictsQuery) (*DetectConflictsResult, error) {
	entities, err := loadSnapshot(ctx, h.repo, query.Range)
	if err != nil {
		return nil, err
	}

	violations, err := h.detector.DetectConflicts(ctx, entities, query.Config)
	if err != nil {
		return nil, fmt.Errorf("detect conflicts: %w", err)
	}

	result := &DetectConflictsResult{
		Violations:      violations,
		EntitiesScanned: len(entities),
	}
	for _, v := range violations {
		if v.IsHard() {
			result.HardCount++
		}
	}
	h.logger.Info("conflict audit finished",
		"entities", result.EntitiesScanned,
		"violations", len(violations),
		"hard", result.HardCount,
	)
	return result, nil
}

func loadSnapshot(ctx context.Context, repo domain.EntityRepository, window *domain.TimeInterval) ([]domain.ScheduledEntity, error) {
	var (
		entities []domain.ScheduledEntity
		err      error
	)
	if window != nil {
		entities, err = repo.ListInRange(ctx, *window)
	} else {
		entities, err = repo.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	return entities, nil
}
