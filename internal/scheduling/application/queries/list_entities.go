package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// ListEntitiesQuery selects the stored snapshot, optionally bounded.
type ListEntitiesQuery struct {
	From time.Time
	To   time.Time
}

// ListEntitiesHandler handles the ListEntitiesQuery.
type ListEntitiesHandler struct {
	repo domain.EntityRepository
}

// NewListEntitiesHandler creates a new ListEntitiesHandler.
func NewListEntitiesHandler(repo domain.EntityRepository) *ListEntitiesHandler {
	return &ListEntitiesHandler{repo: repo}
}

// Handle returns entities ordered by start. Both bounds must be set to filter.
func (h *ListEntitiesHandler) Handle(ctx context.Context, query ListEntitiesQuery) ([]domain.ScheduledEntity, error) {
	if query.From.IsZero() || query.To.IsZero() {
		return h.repo.List(ctx)
	}
	window, err := domain.NewTimeInterval(query.From, query.To)
	if err != nil {
		return nil, err
	}
	return h.repo.ListInRange(ctx, window)
}
