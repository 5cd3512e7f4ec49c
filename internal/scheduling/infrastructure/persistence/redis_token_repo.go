package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// DefaultTokenTTL bounds how long an apply stays undoable in Redis.
const DefaultTokenTTL = 7 * 24 * time.Hour

// RedisRollbackTokenRepository stores tokens as JSON under a TTL, with a
// sorted set indexing them by creation time.
type RedisRollbackTokenRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRollbackTokenRepository creates a repository. A ttl <= 0 uses
// DefaultTokenTTL.
func NewRedisRollbackTokenRepository(client *redis.Client, prefix string, ttl time.Duration) *RedisRollbackTokenRepository {
	if prefix == "" {
		prefix = "slotwise"
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &RedisRollbackTokenRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRollbackTokenRepository) tokenKey(id string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, id)
}

func (r *RedisRollbackTokenRepository) indexKey() string {
	return r.prefix + ":tokens"
}

// Save writes the token and refreshes its TTL.
func (r *RedisRollbackTokenRepository) Save(ctx context.Context, token *domain.RollbackToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode rollback token: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(token.ID), data, r.ttl)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(token.CreatedAt.UnixNano()), Member: token.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save rollback token %s: %w", token.ID, err)
	}
	return nil
}

// FindByID loads a token; expired tokens are reported as not found.
func (r *RedisRollbackTokenRepository) FindByID(ctx context.Context, id string) (*domain.RollbackToken, error) {
	data, err := r.client.Get(ctx, r.tokenKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var token domain.RollbackToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid stored rollback token %s: %w", id, err)
	}
	return &token, nil
}

// ListRecent returns up to limit live tokens, newest first. Index entries
// whose token expired are pruned on the way.
func (r *RedisRollbackTokenRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RollbackToken, error) {
	if limit <= 0 {
		return []*domain.RollbackToken{}, nil
	}
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	tokens := make([]*domain.RollbackToken, 0, len(ids))
	var expired []any
	for _, id := range ids {
		token, err := r.FindByID(ctx, id)
		if errors.Is(err, domain.ErrTokenNotFound) {
			expired = append(expired, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if len(expired) > 0 {
		if err := r.client.ZRem(ctx, r.indexKey(), expired...).Err(); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

var _ domain.RollbackTokenRepository = (*RedisRollbackTokenRepository)(nil)
