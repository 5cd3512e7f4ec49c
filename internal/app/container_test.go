package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/slotwise/pkg/config"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

func testConfig(store string) *config.Config {
	return &config.Config{
		AppEnv:                    "development",
		Store:                     store,
		TokenTTL:                  time.Hour,
		Timezone:                  "UTC",
		WorkStart:                 "08:30",
		WorkEnd:                   "16:00",
		BufferMinutes:             10,
		HorizonDays:               3,
		SlotStep:                  30 * time.Minute,
		MaxSuggestions:            2,
		MaxAlternatives:           1,
		MaxDurationMinutes:        240,
		AttendeeOverlapIsConflict: true,
	}
}

func TestNewContainer_Memory(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig("memory"), nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, database.DriverMemory, c.Driver)
	assert.IsType(t, &eventbus.NoopPublisher{}, c.EventPublisher)
	assert.Nil(t, c.RedisClient)
	assert.Empty(t, c.Health.Names())

	assert.NotNil(t, c.AddEntityHandler)
	assert.NotNil(t, c.SuggestPlacementHandler)
	assert.NotNil(t, c.ApplySolutionHandler)
	assert.NotNil(t, c.UndoSolutionHandler)
	assert.NotNil(t, c.ImportCalendarHandler)
	assert.NotNil(t, c.ProposeSolutionsHandler)
	assert.NotNil(t, c.ListRollbackTokensHandler)
}

func TestNewContainer_SQLite(t *testing.T) {
	cfg := testConfig("sqlite")
	cfg.SQLitePath = filepath.Join(t.TempDir(), "slotwise.db")

	c, err := NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"sqlite"}, c.Health.Names())
	report := c.Health.Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, report.Status)

	ctx := context.Background()
	added, err := c.AddEntityHandler.Handle(ctx, commands.AddEntityCommand{
		Title: "Planning",
		Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	listed, err := c.ListEntitiesHandler.Handle(ctx, queries.ListEntitiesQuery{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, added.Entity.ID, listed[0].ID)
}

func TestNewContainer_UnknownStore(t *testing.T) {
	_, err := NewContainer(context.Background(), testConfig("cassandra"), nil)
	assert.Error(t, err)
}

func TestNewContainer_RedisFallsBackInDevelopment(t *testing.T) {
	cfg := testConfig("memory")
	cfg.RedisURL = "not a url"

	c, err := NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.RedisClient)

	cfg.AppEnv = "production"
	_, err = NewContainer(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Redis"))
}

func TestContainer_OptionsFollowConfig(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig("memory"), nil)
	require.NoError(t, err)
	defer c.Close()

	working := domain.NewDayWindow(8, 30, 16, 0)
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	slots := c.SlotFinderConfig()
	assert.Equal(t, working, slots.WorkingHours)
	assert.Equal(t, 10, slots.BufferMinutes)
	assert.True(t, slots.RespectWorkingHours)

	sched := c.ScheduleOptions(now)
	assert.Equal(t, now, sched.Now)
	assert.Equal(t, 3, sched.HorizonDays)
	assert.Equal(t, 30*time.Minute, sched.SlotStep)
	assert.Equal(t, 2, sched.MaxSuggestions)
	assert.Equal(t, 1, sched.MaxAlternatives)
	assert.Equal(t, 4*time.Hour, sched.MaxDuration)

	detector := c.DetectorConfig()
	require.NotNil(t, detector.BusinessHours)
	assert.Equal(t, working, *detector.BusinessHours)
	assert.Equal(t, 4*time.Hour, detector.MaxDuration)

	solutions := c.SolutionOptions(now)
	assert.Equal(t, now, solutions.Now)
	assert.Equal(t, 3, solutions.HorizonDays)
	assert.Equal(t, working, solutions.SlotFinder.WorkingHours)
	assert.Equal(t, 4*time.Hour, solutions.MaxDuration)
}

func TestNewContainer_OutboxRelaysApplierEvents(t *testing.T) {
	cfg := testConfig("sqlite")
	cfg.SQLitePath = filepath.Join(t.TempDir(), "slotwise.db")
	cfg.OutboxEnabled = true
	cfg.OutboxPollInterval = time.Second
	cfg.OutboxMaxRetries = 3

	c, err := NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Outbox)
	assert.Contains(t, c.Health.Names(), "outbox")

	ctx := context.Background()
	entity := domain.ScheduledEntity{
		ID:       "standup",
		Interval: domain.MustInterval(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)),
		Category: domain.CategoryMeeting,
		Priority: 3,
	}
	require.NoError(t, c.Entities.Save(ctx, entity))

	solution := domain.NewOptimizationSolution("move standup", 0.9, 1, domain.Operation{
		Kind:     domain.OperationMove,
		EntityID: entity.ID,
		From:     entity.Interval,
		To:       domain.MustInterval(time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)),
	})
	result, err := c.Applier.Apply(ctx, c.Entities, solution, services.ApplyOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)

	pending, err := c.Outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	relayed, err := c.Outbox.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, relayed)

	pending, err = c.Outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestNewContainer_MemoryHasNoOutbox(t *testing.T) {
	cfg := testConfig("memory")
	cfg.OutboxEnabled = true
	cfg.OutboxPollInterval = time.Second

	c, err := NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Outbox)
}

func TestNewContainer_CalDAV(t *testing.T) {
	cfg := testConfig("memory")
	c, err := NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, c.CalDAV)
	c.Close()

	cfg.CalDAVURL = "https://caldav.example.com"
	cfg.CalDAVCalendar = "/calendars/ana/work/"
	c, err = NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.NotNil(t, c.CalDAV)
}

func TestRepositoryFactory(t *testing.T) {
	t.Run("memory shares one store", func(t *testing.T) {
		f := NewRepositoryFactory(database.DriverMemory)
		first, err := f.EntityRepository()
		require.NoError(t, err)
		second, err := f.EntityRepository()
		require.NoError(t, err)
		assert.Same(t, first, second)

		tokens, err := f.RollbackTokenRepository()
		require.NoError(t, err)
		assert.NotNil(t, tokens)
	})

	t.Run("sqlite without handle", func(t *testing.T) {
		f := NewRepositoryFactory(database.DriverSQLite)
		_, err := f.EntityRepository()
		assert.Error(t, err)
		_, err = f.RollbackTokenRepository()
		assert.Error(t, err)
	})

	t.Run("postgres without pool", func(t *testing.T) {
		f := NewRepositoryFactory(database.DriverPostgres)
		_, err := f.EntityRepository()
		assert.Error(t, err)
	})
}
