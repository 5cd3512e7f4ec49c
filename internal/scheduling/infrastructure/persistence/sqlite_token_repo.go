package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

// SQLiteRollbackTokenRepository keeps rollback tokens so an apply can be
// undone from a later CLI invocation.
type SQLiteRollbackTokenRepository struct {
	db *sql.DB
}

// NewSQLiteRollbackTokenRepository creates a new SQLite token repository.
func NewSQLiteRollbackTokenRepository(db *sql.DB) *SQLiteRollbackTokenRepository {
	return &SQLiteRollbackTokenRepository{db: db}
}

// Save inserts a token or updates its undo state.
func (r *SQLiteRollbackTokenRepository) Save(ctx context.Context, token *domain.RollbackToken) error {
	entries, err := json.Marshal(token.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode token entries: %w", err)
	}

	var undoneAt sql.NullString
	if token.UndoneAt != nil {
		undoneAt = sql.NullString{String: formatTime(*token.UndoneAt), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rollback_tokens (id, solution_id, created_at, undone, undone_at, entries)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			undone = excluded.undone,
			undone_at = excluded.undone_at,
			entries = excluded.entries
	`,
		token.ID,
		token.SolutionID,
		formatTime(token.CreatedAt),
		boolToInt(token.Undone),
		undoneAt,
		string(entries),
	)
	if err != nil {
		return fmt.Errorf("failed to save rollback token %s: %w", token.ID, err)
	}
	return nil
}

// FindByID loads a token.
func (r *SQLiteRollbackTokenRepository) FindByID(ctx context.Context, id string) (*domain.RollbackToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, solution_id, created_at, undone, undone_at, entries
		FROM rollback_tokens WHERE id = ?
	`, id)
	token, err := scanToken(row)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenNotFound, id)
	}
	return token, err
}

// ListRecent returns up to limit tokens, newest first.
func (r *SQLiteRollbackTokenRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RollbackToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, solution_id, created_at, undone, undone_at, entries
		FROM rollback_tokens
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*domain.RollbackToken, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func scanToken(row rowScanner) (*domain.RollbackToken, error) {
	var (
		token      domain.RollbackToken
		createdStr string
		undone     int
		undoneAt   sql.NullString
		entries    string
	)
	if err := row.Scan(&token.ID, &token.SolutionID, &createdStr, &undone, &undoneAt, &entries); err != nil {
		return nil, err
	}

	var err error
	if token.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	token.Undone = undone == 1
	if undoneAt.Valid {
		at, err := parseTime(undoneAt.String)
		if err != nil {
			return nil, err
		}
		token.UndoneAt = &at
	}
	if err := json.Unmarshal([]byte(entries), &token.Entries); err != nil {
		return nil, fmt.Errorf("invalid stored token entries: %w", err)
	}
	return &token, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.RollbackTokenRepository = (*SQLiteRollbackTokenRepository)(nil)
