package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// MemoryRollbackTokenRepository keeps tokens for the lifetime of the process.
type MemoryRollbackTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string][]byte
}

// NewMemoryRollbackTokenRepository creates an empty repository.
func NewMemoryRollbackTokenRepository() *MemoryRollbackTokenRepository {
	return &MemoryRollbackTokenRepository{tokens: make(map[string][]byte)}
}

// Save stores a snapshot of token; later mutations by the caller are not seen.
func (r *MemoryRollbackTokenRepository) Save(_ context.Context, token *domain.RollbackToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = data
	return nil
}

func (r *MemoryRollbackTokenRepository) FindByID(_ context.Context, id string) (*domain.RollbackToken, error) {
	r.mu.RLock()
	data, ok := r.tokens[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenNotFound, id)
	}
	var token domain.RollbackToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *MemoryRollbackTokenRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RollbackToken, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.tokens))
	for id := range r.tokens {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	tokens := make([]*domain.RollbackToken, 0, len(ids))
	for _, id := range ids {
		token, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	sortNewestFirst(tokens)
	if limit > 0 && len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens, nil
}

func sortNewestFirst(tokens []*domain.RollbackToken) {
	slices.SortFunc(tokens, func(a, b *domain.RollbackToken) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

var _ domain.RollbackTokenRepository = (*MemoryRollbackTokenRepository)(nil)
