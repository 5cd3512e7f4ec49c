package commands

import (
	"context"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// RemoveEntityCommand contains the id of the entity to delete.
type RemoveEntityCommand struct {
	ID string
}

// RemoveEntityHandler handles the RemoveEntityCommand.
type RemoveEntityHandler struct {
	repo domain.EntityRepository
}

// NewRemoveEntityHandler creates a new RemoveEntityHandler.
func NewRemoveEntityHandler(repo domain.EntityRepository) *RemoveEntityHandler {
	return &RemoveEntityHandler{repo: repo}
}

// Handle executes the RemoveEntityCommand.
func (h *RemoveEntityHandler) Handle(ctx context.Context, cmd RemoveEntityCommand) error {
	return h.repo.Delete(ctx, cmd.ID)
}
