package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// UndoSolutionCommand reverses a previously applied solution.
type UndoSolutionCommand struct {
	TokenID string
}

// UndoSolutionHandler handles the UndoSolutionCommand.
type UndoSolutionHandler struct {
	repo    domain.EntityRepository
	tokens  domain.RollbackTokenRepository
	applier *services.Applier
	logger  *slog.Logger
}

// NewUndoSolutionHandler creates a new UndoSolutionHandler.
func NewUndoSolutionHandler(
	repo domain.EntityRepository,
	tokens domain.RollbackTokenRepository,
	applier *services.Applier,
	logger *slog.Logger,
) *UndoSolutionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UndoSolutionHandler{
		repo:    repo,
		tokens:  tokens,
		applier: applier,
		logger:  logger,
	}
}

// Handle executes the UndoSolutionCommand.
func (h *UndoSolutionHandler) Handle(ctx context.Context, cmd UndoSolutionCommand) (*services.UndoResult, error) {
	token, err := h.tokens.FindByID(ctx, cmd.TokenID)
	if err != nil {
		return nil, err
	}

	result, err := h.applier.Undo(ctx, h.repo, token)
	if err != nil {
		return result, err
	}
	if result.AlreadyUndone {
		return result, nil
	}

	if err := h.tokens.Save(ctx, token); err != nil {
		h.logger.Warn("undone token not persisted",
			"token_id", token.ID,
			"error", err,
		)
		return result, fmt.Errorf("persist undone token: %w", err)
	}
	return result, nil
}
