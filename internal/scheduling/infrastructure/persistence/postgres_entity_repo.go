package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

// PostgresEntityRepository implements domain.EntityRepository using PostgreSQL.
type PostgresEntityRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEntityRepository creates a new PostgreSQL entity repository.
func NewPostgresEntityRepository(pool *pgxpool.Pool) *PostgresEntityRepository {
	return &PostgresEntityRepository{pool: pool}
}

// Save upserts an entity.
func (r *PostgresEntityRepository) Save(ctx context.Context, e domain.ScheduledEntity) error {
	query := `
		INSERT INTO scheduled_entities (` + entityColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			resource_refs = EXCLUDED.resource_refs,
			attendees = EXCLUDED.attendees,
			tags = EXCLUDED.tags,
			updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.Title,
		e.Interval.Start.UTC(),
		e.Interval.End.UTC(),
		string(e.Category),
		e.Priority,
		nonNil(e.ResourceRefs),
		nonNil(e.Attendees),
		nonNil(e.Tags),
	)
	if err != nil {
		return fmt.Errorf("failed to save entity %s: %w", e.ID, err)
	}
	return nil
}

// Get returns an entity by id.
func (r *PostgresEntityRepository) Get(ctx context.Context, id string) (domain.ScheduledEntity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM scheduled_entities WHERE id = $1`, id)
	e, err := scanPgEntity(row)
	if database.IsNoRows(err) {
		return domain.ScheduledEntity{}, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	return e, err
}

// UpdateInterval moves an entity.
func (r *PostgresEntityRepository) UpdateInterval(ctx context.Context, id string, interval domain.TimeInterval) error {
	return r.exec(ctx, id,
		`UPDATE scheduled_entities SET start_time = $1, end_time = $2, updated_at = NOW() WHERE id = $3`,
		interval.Start.UTC(), interval.End.UTC(), id)
}

// UpdateResources replaces an entity's resource refs.
func (r *PostgresEntityRepository) UpdateResources(ctx context.Context, id string, refs []string) error {
	return r.exec(ctx, id,
		`UPDATE scheduled_entities SET resource_refs = $1, updated_at = NOW() WHERE id = $2`,
		nonNil(domain.NormalizeRefs(refs)), id)
}

// Delete removes an entity.
func (r *PostgresEntityRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, id, `DELETE FROM scheduled_entities WHERE id = $1`, id)
}

// List returns every entity ordered by start.
func (r *PostgresEntityRepository) List(ctx context.Context) ([]domain.ScheduledEntity, error) {
	return r.query(ctx, `SELECT `+entityColumns+` FROM scheduled_entities ORDER BY start_time, id`)
}

// ListInRange returns entities overlapping interval, ordered by start.
func (r *PostgresEntityRepository) ListInRange(ctx context.Context, interval domain.TimeInterval) ([]domain.ScheduledEntity, error) {
	return r.query(ctx, `
		SELECT `+entityColumns+` FROM scheduled_entities
		WHERE start_time < $1 AND end_time > $2
		ORDER BY start_time, id
	`, interval.End.UTC(), interval.Start.UTC())
}

func (r *PostgresEntityRepository) exec(ctx context.Context, id, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update entity %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	return nil
}

func (r *PostgresEntityRepository) query(ctx context.Context, query string, args ...any) ([]domain.ScheduledEntity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]domain.ScheduledEntity, 0)
	for rows.Next() {
		e, err := scanPgEntity(rows)
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

func scanPgEntity(row pgx.Row) (domain.ScheduledEntity, error) {
	var (
		e        domain.ScheduledEntity
		category string
		priority int16
	)
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Interval.Start,
		&e.Interval.End,
		&category,
		&priority,
		&e.ResourceRefs,
		&e.Attendees,
		&e.Tags,
	)
	if err != nil {
		return domain.ScheduledEntity{}, err
	}
	e.Interval.Start = e.Interval.Start.UTC()
	e.Interval.End = e.Interval.End.UTC()
	e.Category = domain.Category(category)
	e.Priority = int(priority)
	e.ResourceRefs = nilIfEmpty(e.ResourceRefs)
	e.Attendees = nilIfEmpty(e.Attendees)
	e.Tags = nilIfEmpty(e.Tags)
	return e, nil
}

func nonNil(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}

func nilIfEmpty(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	return refs
}

var _ domain.EntityRepository = (*PostgresEntityRepository)(nil)
