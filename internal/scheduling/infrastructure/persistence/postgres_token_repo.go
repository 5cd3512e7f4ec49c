package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

// PostgresRollbackTokenRepository stores rollback tokens next to the entities
// they reverse.
type PostgresRollbackTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRollbackTokenRepository creates a new PostgreSQL token repository.
func NewPostgresRollbackTokenRepository(pool *pgxpool.Pool) *PostgresRollbackTokenRepository {
	return &PostgresRollbackTokenRepository{pool: pool}
}

// Save inserts a token or updates its undo state.
func (r *PostgresRollbackTokenRepository) Save(ctx context.Context, token *domain.RollbackToken) error {
	entries, err := json.Marshal(token.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode token entries: %w", err)
	}

	var undoneAt *time.Time
	if token.UndoneAt != nil {
		at := token.UndoneAt.UTC()
		undoneAt = &at
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO rollback_tokens (id, solution_id, created_at, undone, undone_at, entries)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			undone = EXCLUDED.undone,
			undone_at = EXCLUDED.undone_at,
			entries = EXCLUDED.entries
	`,
		token.ID,
		token.SolutionID,
		token.CreatedAt.UTC(),
		token.Undone,
		undoneAt,
		entries,
	)
	if err != nil {
		return fmt.Errorf("failed to save rollback token %s: %w", token.ID, err)
	}
	return nil
}

// FindByID loads a token.
func (r *PostgresRollbackTokenRepository) FindByID(ctx context.Context, id string) (*domain.RollbackToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, solution_id, created_at, undone, undone_at, entries
		FROM rollback_tokens WHERE id = $1
	`, id)
	token, err := scanPgToken(row)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenNotFound, id)
	}
	return token, err
}

// ListRecent returns up to limit tokens, newest first.
func (r *PostgresRollbackTokenRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RollbackToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, solution_id, created_at, undone, undone_at, entries
		FROM rollback_tokens
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*domain.RollbackToken, 0)
	for rows.Next() {
		token, err := scanPgToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func scanPgToken(row pgx.Row) (*domain.RollbackToken, error) {
	var (
		token    domain.RollbackToken
		undoneAt *time.Time
		entries  []byte
	)
	if err := row.Scan(&token.ID, &token.SolutionID, &token.CreatedAt, &token.Undone, &undoneAt, &entries); err != nil {
		return nil, err
	}
	token.CreatedAt = token.CreatedAt.UTC()
	if undoneAt != nil {
		at := undoneAt.UTC()
		token.UndoneAt = &at
	}
	if err := json.Unmarshal(entries, &token.Entries); err != nil {
		return nil, fmt.Errorf("invalid stored token entries: %w", err)
	}
	return &token, nil
}

var _ domain.RollbackTokenRepository = (*PostgresRollbackTokenRepository)(nil)
