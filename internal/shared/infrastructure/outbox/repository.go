package outbox

import (
	"context"
	"time"
)

// Repository defines the interface for outbox persistence.
type Repository interface {
	// Save stores a new message and sets its ID.
	Save(ctx context.Context, msg *Message) error

	// GetPending returns unpublished, live messages due at now, oldest first.
	GetPending(ctx context.Context, now time.Time, limit int) ([]*Message, error)

	// MarkPublished marks a message as accepted by the broker.
	MarkPublished(ctx context.Context, id int64, at time.Time) error

	// MarkFailed records a failure and schedules the next attempt.
	MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error

	// MarkDead stops retrying a message.
	MarkDead(ctx context.Context, id int64, reason string, at time.Time) error

	// CountPending counts messages still waiting to be relayed.
	CountPending(ctx context.Context) (int64, error)

	// DeleteOld removes published messages older than before.
	DeleteOld(ctx context.Context, before time.Time) (int64, error)
}
