package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// ApplySolutionCommand applies a proposed remediation to the store.
type ApplySolutionCommand struct {
	Solution    domain.OptimizationSolution
	DryRun      bool
	Constraints []domain.Constraint
	Location    *time.Location
}

// ApplySolutionHandler handles the ApplySolutionCommand.
type ApplySolutionHandler struct {
	repo        domain.EntityRepository
	tokens      domain.RollbackTokenRepository
	applier     *services.Applier
	logger      *slog.Logger
	maxDuration time.Duration
}

// NewApplySolutionHandler creates a new ApplySolutionHandler.
func NewApplySolutionHandler(
	repo domain.EntityRepository,
	tokens domain.RollbackTokenRepository,
	applier *services.Applier,
	logger *slog.Logger,
) *ApplySolutionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplySolutionHandler{
		repo:    repo,
		tokens:  tokens,
		applier: applier,
		logger:  logger,
	}
}

// WithMaxDuration sets the longest interval a resize may produce.
func (h *ApplySolutionHandler) WithMaxDuration(d time.Duration) *ApplySolutionHandler {
	h.maxDuration = d
	return h
}

// Handle executes the ApplySolutionCommand. Targets are re-checked against
// the current store contents before anything is written. A successful apply
// persists its rollback token so undo works from a later session; if the
// token cannot be stored the apply is reverted and an error returned.
func (h *ApplySolutionHandler) Handle(ctx context.Context, cmd ApplySolutionCommand) (*services.ApplyResult, error) {
	snapshot, err := h.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snapshot == nil {
		snapshot = []domain.ScheduledEntity{}
	}

	result, err := h.applier.Apply(ctx, h.repo, cmd.Solution, services.ApplyOptions{
		DryRun:      cmd.DryRun,
		Snapshot:    snapshot,
		Constraints: cmd.Constraints,
		Location:    cmd.Location,
		MaxDuration: h.maxDuration,
	})
	if err != nil {
		return result, err
	}

	if result.RollbackToken != nil {
		if err := h.tokens.Save(ctx, result.RollbackToken); err != nil {
			return h.revertUnsaved(ctx, result, fmt.Errorf("persist rollback token: %w", err))
		}
	}
	return result, nil
}

// revertUnsaved undoes an apply whose token could not be stored, so no
// change is left in place without a way to undo it.
func (h *ApplySolutionHandler) revertUnsaved(ctx context.Context, result *services.ApplyResult, cause error) (*services.ApplyResult, error) {
	token := result.RollbackToken
	h.logger.Error("rollback token not persisted, reverting apply",
		"token_id", token.ID,
		"error", cause,
	)
	undo, err := h.applier.Undo(context.WithoutCancel(ctx), h.repo, token)
	if err == nil && !undo.Success {
		err = fmt.Errorf("stale entities %v", undo.StaleEntityIDs)
	}
	if err != nil {
		h.logger.Error("apply could not be reverted", "token_id", token.ID, "error", err)
		return result, errors.Join(cause, fmt.Errorf("revert apply: %w", err))
	}

	result.Success = false
	result.RollbackToken = nil
	result.Error = cause.Error()
	return result, cause
}
