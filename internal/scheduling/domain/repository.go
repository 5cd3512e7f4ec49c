package domain

import (
	"context"
)

// EntityStore is the caller-owned mutation surface the applier writes through.
// Implementations must return copies; the applier never holds references.
type EntityStore interface {
	// Get returns the current state of an entity.
	Get(ctx context.Context, id string) (ScheduledEntity, error)

	// UpdateInterval replaces the entity's interval.
	UpdateInterval(ctx context.Context, id string, interval TimeInterval) error

	// UpdateResources replaces the entity's resource refs.
	UpdateResources(ctx context.Context, id string, refs []string) error
}

// EntityRepository adds snapshot loading and persistence to EntityStore.
type EntityRepository interface {
	EntityStore

	// Save creates or replaces an entity.
	Save(ctx context.Context, entity ScheduledEntity) error

	// List returns every entity ordered by start.
	List(ctx context.Context) ([]ScheduledEntity, error)

	// ListInRange returns entities overlapping the interval, ordered by start.
	ListInRange(ctx context.Context, interval TimeInterval) ([]ScheduledEntity, error)

	// Delete removes an entity.
	Delete(ctx context.Context, id string) error
}

// RollbackTokenRepository persists tokens so undo can happen in a later session.
type RollbackTokenRepository interface {
	Save(ctx context.Context, token *RollbackToken) error
	FindByID(ctx context.Context, id string) (*RollbackToken, error)
	// ListRecent returns at most limit tokens, newest first.
	ListRecent(ctx context.Context, limit int) ([]*RollbackToken, error)
}
