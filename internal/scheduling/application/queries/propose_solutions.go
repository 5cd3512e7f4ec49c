package queries

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// ProposeSolutionsQuery audits the snapshot and proposes remediations.
type ProposeSolutionsQuery struct {
	Range    *domain.TimeInterval
	Detector services.ConflictDetectorConfig
	Options  services.SolutionOptions
}

// ProposeSolutionsResult pairs violations with their ranked remediations.
type ProposeSolutionsResult struct {
	Violations []domain.ConflictViolation    `json:"violations"`
	Solutions  []domain.OptimizationSolution `json:"solutions"`
	// Snapshot is the full entity set the solutions were computed against.
	Snapshot []domain.ScheduledEntity `json:"-"`
}

// ProposeSolutionsHandler handles the ProposeSolutionsQuery.
type ProposeSolutionsHandler struct {
	repo      domain.EntityRepository
	detector  *services.ConflictDetector
	generator *services.SolutionGenerator
	logger    *slog.Logger
}

// NewProposeSolutionsHandler creates a new ProposeSolutionsHandler.
func NewProposeSolutionsHandler(
	repo domain.EntityRepository,
	detector *services.ConflictDetector,
	generator *services.SolutionGenerator,
	logger *slog.Logger,
) *ProposeSolutionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProposeSolutionsHandler{repo: repo, detector: detector, generator: generator, logger: logger}
}

// Handle executes the ProposeSolutionsQuery. Moves are searched against the
// whole store even when the audit is bounded by a range.
func (h *ProposeSolutionsHandler) Handle(ctx context.Context, query ProposeSolutionsQuery) (*ProposeSolutionsResult, error) {
	all, err := loadSnapshot(ctx, h.repo, nil)
	if err != nil {
		return nil, err
	}
	audited := all
	if query.Range != nil {
		audited = make([]domain.ScheduledEntity, 0, len(all))
		for _, e := range all {
			if e.Interval.Overlaps(*query.Range) {
				audited = append(audited, e)
			}
		}
	}

	violations, err := h.detector.DetectConflicts(ctx, audited, query.Detector)
	if err != nil {
		return nil, fmt.Errorf("detect conflicts: %w", err)
	}
	solutions, err := h.generator.Generate(ctx, all, violations, query.Options)
	if err != nil {
		return nil, fmt.Errorf("generate solutions: %w", err)
	}

	h.logger.Info("remediations proposed",
		"violations", len(violations),
		"solutions", len(solutions),
	)
	return &ProposeSolutionsResult{
		Violations: violations,
		Solutions:  solutions,
		Snapshot:   all,
	}, nil
}
