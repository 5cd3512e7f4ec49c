package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

const entityColumns = `id, title, start_time, end_time, category, priority, resource_refs, attendees, tags`

// SQLiteEntityRepository persists scheduled entities in SQLite.
type SQLiteEntityRepository struct {
	db *sql.DB
}

// NewSQLiteEntityRepository creates a new SQLite entity repository.
func NewSQLiteEntityRepository(db *sql.DB) *SQLiteEntityRepository {
	return &SQLiteEntityRepository{db: db}
}

// Save inserts or replaces an entity.
func (r *SQLiteEntityRepository) Save(ctx context.Context, e domain.ScheduledEntity) error {
	resources, err := encodeRefs(e.ResourceRefs)
	if err != nil {
		return err
	}
	attendees, err := encodeRefs(e.Attendees)
	if err != nil {
		return err
	}
	tags, err := encodeRefs(e.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scheduled_entities (` + entityColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			category = excluded.category,
			priority = excluded.priority,
			resource_refs = excluded.resource_refs,
			attendees = excluded.attendees,
			tags = excluded.tags,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.Title,
		formatTime(e.Interval.Start),
		formatTime(e.Interval.End),
		string(e.Category),
		e.Priority,
		resources,
		attendees,
		tags,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save entity %s: %w", e.ID, err)
	}
	return nil
}

// Get returns an entity by id.
func (r *SQLiteEntityRepository) Get(ctx context.Context, id string) (domain.ScheduledEntity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM scheduled_entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if database.IsNoRows(err) {
		return domain.ScheduledEntity{}, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	return e, err
}

// UpdateInterval moves an entity.
func (r *SQLiteEntityRepository) UpdateInterval(ctx context.Context, id string, interval domain.TimeInterval) error {
	return r.update(ctx, id,
		`UPDATE scheduled_entities SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ?`,
		formatTime(interval.Start), formatTime(interval.End), formatTime(time.Now()), id)
}

// UpdateResources replaces an entity's resource refs.
func (r *SQLiteEntityRepository) UpdateResources(ctx context.Context, id string, refs []string) error {
	encoded, err := encodeRefs(domain.NormalizeRefs(refs))
	if err != nil {
		return err
	}
	return r.update(ctx, id,
		`UPDATE scheduled_entities SET resource_refs = ?, updated_at = ? WHERE id = ?`,
		encoded, formatTime(time.Now()), id)
}

// Delete removes an entity.
func (r *SQLiteEntityRepository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, id, `DELETE FROM scheduled_entities WHERE id = ?`, id)
}

// List returns every entity ordered by start.
func (r *SQLiteEntityRepository) List(ctx context.Context) ([]domain.ScheduledEntity, error) {
	return r.query(ctx, `SELECT `+entityColumns+` FROM scheduled_entities ORDER BY start_time, id`)
}

// ListInRange returns entities overlapping interval, ordered by start.
func (r *SQLiteEntityRepository) ListInRange(ctx context.Context, interval domain.TimeInterval) ([]domain.ScheduledEntity, error) {
	return r.query(ctx, `
		SELECT `+entityColumns+` FROM scheduled_entities
		WHERE start_time < ? AND end_time > ?
		ORDER BY start_time, id
	`, formatTime(interval.End), formatTime(interval.Start))
}

func (r *SQLiteEntityRepository) update(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update entity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	return nil
}

func (r *SQLiteEntityRepository) query(ctx context.Context, query string, args ...any) ([]domain.ScheduledEntity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]domain.ScheduledEntity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (domain.ScheduledEntity, error) {
	var (
		e                          domain.ScheduledEntity
		startStr, endStr, category string
		resources, attendees, tags string
	)
	if err := row.Scan(&e.ID, &e.Title, &startStr, &endStr, &category, &e.Priority, &resources, &attendees, &tags); err != nil {
		return domain.ScheduledEntity{}, err
	}

	var err error
	if e.Interval.Start, err = parseTime(startStr); err != nil {
		return domain.ScheduledEntity{}, err
	}
	if e.Interval.End, err = parseTime(endStr); err != nil {
		return domain.ScheduledEntity{}, err
	}
	e.Category = domain.Category(category)
	if e.ResourceRefs, err = decodeRefs(resources); err != nil {
		return domain.ScheduledEntity{}, err
	}
	if e.Attendees, err = decodeRefs(attendees); err != nil {
		return domain.ScheduledEntity{}, err
	}
	if e.Tags, err = decodeRefs(tags); err != nil {
		return domain.ScheduledEntity{}, err
	}
	return e, nil
}

var _ domain.EntityRepository = (*SQLiteEntityRepository)(nil)
