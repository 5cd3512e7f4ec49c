package app

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/outbox"
)

// RedisTokenPrefix namespaces rollback token keys.
const RedisTokenPrefix = "slotwise"

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	driver   database.Driver
	sqlite   *sql.DB
	pool     *pgxpool.Pool
	redis    *redis.Client
	tokenTTL time.Duration

	memEntities *persistence.MemoryEntityStore
	memTokens   *persistence.MemoryRollbackTokenRepository
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(driver database.Driver) *RepositoryFactory {
	return &RepositoryFactory{driver: driver}
}

// WithSQLite sets the SQLite handle used by the sqlite driver.
func (f *RepositoryFactory) WithSQLite(db *sql.DB) *RepositoryFactory {
	f.sqlite = db
	return f
}

// WithPostgres sets the pool used by the postgres driver.
func (f *RepositoryFactory) WithPostgres(pool *pgxpool.Pool) *RepositoryFactory {
	f.pool = pool
	return f
}

// WithRedis moves rollback tokens to Redis regardless of the driver.
func (f *RepositoryFactory) WithRedis(client *redis.Client, ttl time.Duration) *RepositoryFactory {
	f.redis = client
	f.tokenTTL = ttl
	return f
}

// EntityRepository creates an entity repository for the configured driver.
func (f *RepositoryFactory) EntityRepository() (domain.EntityRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		if f.pool == nil {
			return nil, fmt.Errorf("postgres pool not configured")
		}
		return persistence.NewPostgresEntityRepository(f.pool), nil

	case database.DriverSQLite:
		if f.sqlite == nil {
			return nil, fmt.Errorf("sqlite database not configured")
		}
		return persistence.NewSQLiteEntityRepository(f.sqlite), nil

	case database.DriverMemory:
		if f.memEntities == nil {
			f.memEntities = persistence.NewMemoryEntityStore()
		}
		return f.memEntities, nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// RollbackTokenRepository creates a token repository. Redis wins when configured.
func (f *RepositoryFactory) RollbackTokenRepository() (domain.RollbackTokenRepository, error) {
	if f.redis != nil {
		return persistence.NewRedisRollbackTokenRepository(f.redis, RedisTokenPrefix, f.tokenTTL), nil
	}

	switch f.driver {
	case database.DriverPostgres:
		if f.pool == nil {
			return nil, fmt.Errorf("postgres pool not configured")
		}
		return persistence.NewPostgresRollbackTokenRepository(f.pool), nil

	case database.DriverSQLite:
		if f.sqlite == nil {
			return nil, fmt.Errorf("sqlite database not configured")
		}
		return persistence.NewSQLiteRollbackTokenRepository(f.sqlite), nil

	case database.DriverMemory:
		if f.memTokens == nil {
			f.memTokens = persistence.NewMemoryRollbackTokenRepository()
		}
		return f.memTokens, nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// OutboxRepository returns the outbox for durable drivers. The memory driver
// has none; its events go straight to the broker.
func (f *RepositoryFactory) OutboxRepository() (outbox.Repository, bool) {
	switch {
	case f.driver == database.DriverPostgres && f.pool != nil:
		return outbox.NewPostgresRepository(f.pool), true
	case f.driver == database.DriverSQLite && f.sqlite != nil:
		return outbox.NewSQLiteRepository(f.sqlite), true
	default:
		return nil, false
	}
}

// Driver returns the configured driver.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}
