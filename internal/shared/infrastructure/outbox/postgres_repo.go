package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL outbox repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save stores a new outbox message.
func (r *PostgresRepository) Save(ctx context.Context, msg *Message) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO outbox_events (event_id, routing_key, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
		RETURNING id`,
		msg.EventID, msg.RoutingKey, []byte(msg.Payload), msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to save outbox message: %w", err)
	}
	return nil
}

// GetPending retrieves messages that are due for a publish attempt.
func (r *PostgresRepository) GetPending(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, routing_key, payload, created_at, published_at,
		       next_retry_at, retry_count, last_error, dead_lettered_at
		FROM outbox_events
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY id
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Message, error) {
		var msg Message
		var payload []byte
		if err := row.Scan(&msg.ID, &msg.EventID, &msg.RoutingKey, &payload, &msg.CreatedAt,
			&msg.PublishedAt, &msg.NextRetryAt, &msg.RetryCount, &msg.LastError, &msg.DeadLetteredAt); err != nil {
			return nil, err
		}
		msg.Payload = payload
		return &msg, nil
	})
}

// MarkPublished marks a message as successfully published.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET published_at = $2, next_retry_at = NULL WHERE id = $1`, id, at)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3
		WHERE id = $1`, id, reason, nextRetryAt)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = $2, dead_lettered_at = $3, next_retry_at = NULL
		WHERE id = $1`, id, reason, at)
	return err
}

// CountPending counts unpublished, live messages.
func (r *PostgresRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL AND dead_lettered_at IS NULL`,
	).Scan(&n)
	return n, err
}

// DeleteOld removes published messages older than before.
func (r *PostgresRepository) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
