package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// sqliteTimeLayout is fixed width so stored timestamps compare as strings.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save stores a new outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_events (event_id, routing_key, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		msg.EventID.String(), msg.RoutingKey, string(msg.Payload), formatSQLiteTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save outbox message: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		msg.ID = id
	}
	return nil
}

// GetPending retrieves messages that are due for a publish attempt.
func (r *SQLiteRepository) GetPending(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, routing_key, payload, created_at, published_at,
		       next_retry_at, retry_count, last_error, dead_lettered_at
		FROM outbox_events
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY id
		LIMIT ?`,
		formatSQLiteTime(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = ?, next_retry_at = NULL WHERE id = ?`,
		formatSQLiteTime(at), id)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		reason, formatSQLiteTime(nextRetryAt), id)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = ?, dead_lettered_at = ?, next_retry_at = NULL
		WHERE id = ?`,
		reason, formatSQLiteTime(at), id)
	return err
}

// CountPending counts unpublished, live messages.
func (r *SQLiteRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL AND dead_lettered_at IS NULL`,
	).Scan(&n)
	return n, err
}

// DeleteOld removes published messages older than before.
func (r *SQLiteRepository) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < ?`,
		formatSQLiteTime(before))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanSQLiteMessage(rows *sql.Rows) (*Message, error) {
	var (
		msg                              Message
		eventID, payload, createdAt      string
		publishedAt, nextRetryAt, deadAt sql.NullString
		lastError                        sql.NullString
	)
	if err := rows.Scan(&msg.ID, &eventID, &msg.RoutingKey, &payload, &createdAt, &publishedAt,
		&nextRetryAt, &msg.RetryCount, &lastError, &deadAt); err != nil {
		return nil, fmt.Errorf("failed to scan outbox message: %w", err)
	}

	var err error
	if msg.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("outbox message %d: %w", msg.ID, err)
	}
	msg.Payload = []byte(payload)
	if msg.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("outbox message %d: %w", msg.ID, err)
	}
	msg.PublishedAt = parseNullTime(publishedAt)
	msg.NextRetryAt = parseNullTime(nextRetryAt)
	msg.DeadLetteredAt = parseNullTime(deadAt)
	if lastError.Valid {
		msg.LastError = &lastError.String
	}
	return &msg, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(sqliteTimeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
