package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/google/uuid"
)

var ErrInvalidEntity = errors.New("invalid scheduled entity")

// AddEntityCommand contains the data needed to store an entity.
type AddEntityCommand struct {
	// ID is generated when empty; an existing id is replaced.
	ID        string
	Title     string
	Start     time.Time
	End       time.Time
	Category  domain.Category
	Priority  int
	Resources []string
	Attendees []string
	Tags      []string
}

// AddEntityResult contains the stored entity.
type AddEntityResult struct {
	Entity domain.ScheduledEntity
}

// AddEntityHandler handles the AddEntityCommand.
type AddEntityHandler struct {
	repo domain.EntityRepository
}

// NewAddEntityHandler creates a new AddEntityHandler.
func NewAddEntityHandler(repo domain.EntityRepository) *AddEntityHandler {
	return &AddEntityHandler{repo: repo}
}

// Handle executes the AddEntityCommand.
func (h *AddEntityHandler) Handle(ctx context.Context, cmd AddEntityCommand) (*AddEntityResult, error) {
	id := cmd.ID
	if id == "" {
		id = uuid.NewString()
	}
	priority := cmd.Priority
	if priority == 0 {
		priority = 3
	}
	category := cmd.Category
	if category == "" {
		category = domain.CategoryTask
	}

	entity := domain.ScheduledEntity{
		ID:           id,
		Title:        cmd.Title,
		Interval:     domain.TimeInterval{Start: cmd.Start.UTC(), End: cmd.End.UTC()},
		Category:     category,
		Priority:     priority,
		ResourceRefs: domain.NormalizeRefs(cmd.Resources),
		Attendees:    domain.NormalizeRefs(cmd.Attendees),
		Tags:         cmd.Tags,
	}
	if errs := entity.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEntity, domain.JoinValidationErrors(errs))
	}

	if err := h.repo.Save(ctx, entity); err != nil {
		return nil, err
	}
	return &AddEntityResult{Entity: entity}, nil
}
