package persistence

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/sqlite"
)

var day = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func entity(id string, startHour, endHour int, refs ...string) domain.ScheduledEntity {
	return domain.ScheduledEntity{
		ID:           id,
		Title:        "Entity " + id,
		Interval:     domain.MustInterval(at(startHour, 0), at(endHour, 0)),
		Category:     domain.CategoryMeeting,
		Priority:     3,
		ResourceRefs: refs,
	}
}

func setupSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.Open(ctx, dbURL, 2)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v", err)
	}
	_, _ = pool.Exec(ctx, "DELETE FROM scheduled_entities")
	_, _ = pool.Exec(ctx, "DELETE FROM rollback_tokens")
	t.Cleanup(pool.Close)
	return pool
}

// exerciseEntityRepository runs the behavior every EntityRepository shares.
func exerciseEntityRepository(t *testing.T, repo domain.EntityRepository) {
	ctx := context.Background()

	standup := entity("standup", 9, 10, "room-1")
	standup.Attendees = []string{"ana@example.com"}
	standup.Tags = []string{"daily"}
	review := entity("review", 14, 15)
	late := entity("late", 18, 19)

	for _, e := range []domain.ScheduledEntity{review, late, standup} {
		require.NoError(t, repo.Save(ctx, e))
	}

	t.Run("get round trips every field", func(t *testing.T) {
		got, err := repo.Get(ctx, "standup")
		require.NoError(t, err)
		assert.Equal(t, standup, got)
	})

	t.Run("missing entity", func(t *testing.T) {
		_, err := repo.Get(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
		assert.ErrorIs(t, repo.UpdateInterval(ctx, "ghost", standup.Interval), domain.ErrEntityNotFound)
		assert.ErrorIs(t, repo.UpdateResources(ctx, "ghost", []string{"x"}), domain.ErrEntityNotFound)
	})

	t.Run("list is ordered by start", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"standup", "review", "late"}, []string{all[0].ID, all[1].ID, all[2].ID})
	})

	t.Run("range uses half-open overlap", func(t *testing.T) {
		got, err := repo.ListInRange(ctx, domain.MustInterval(at(10, 0), at(18, 0)))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "review", got[0].ID)
	})

	t.Run("updates", func(t *testing.T) {
		moved := domain.MustInterval(at(11, 30), at(12, 30))
		require.NoError(t, repo.UpdateInterval(ctx, "review", moved))
		require.NoError(t, repo.UpdateResources(ctx, "review", []string{"room-2", " room-2", ""}))

		got, err := repo.Get(ctx, "review")
		require.NoError(t, err)
		assert.Equal(t, moved, got.Interval)
		assert.Equal(t, []string{"room-2"}, got.ResourceRefs)
		assert.Equal(t, review.Title, got.Title)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "late"))
		assert.ErrorIs(t, repo.Delete(ctx, "late"), domain.ErrEntityNotFound)
		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestMemoryEntityStore(t *testing.T) {
	exerciseEntityRepository(t, NewMemoryEntityStore())
}

func TestMemoryEntityStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEntityStore(entity("a", 9, 10, "room-1"))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	got.ResourceRefs[0] = "mutated"

	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"room-1"}, again.ResourceRefs)
}

func TestSQLiteEntityRepository(t *testing.T) {
	exerciseEntityRepository(t, NewSQLiteEntityRepository(setupSQLite(t)))
}

func TestSQLiteEntityRepository_SubSecondPrecision(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEntityRepository(setupSQLite(t))
	e := entity("precise", 9, 10)
	e.Interval = domain.MustInterval(at(9, 0).Add(1500*time.Microsecond), at(10, 0))
	require.NoError(t, repo.Save(ctx, e))

	got, err := repo.Get(ctx, "precise")
	require.NoError(t, err)
	assert.True(t, e.Interval.Start.Equal(got.Interval.Start))
}

func TestPostgresEntityRepository(t *testing.T) {
	exerciseEntityRepository(t, NewPostgresEntityRepository(setupPostgres(t)))
}
