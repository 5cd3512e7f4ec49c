// Package app wires configuration, storage, messaging and the scheduling
// services into the handlers the CLI and HTTP adapters call.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/caldav"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/ical"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/slotwise/pkg/config"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.PrometheusMetrics
	Health  *observability.HealthRegistry
	Driver  database.Driver

	// Repositories
	Entities domain.EntityRepository
	Tokens   domain.RollbackTokenRepository

	// Redis
	RedisClient *redis.Client

	// Publishers. The applier writes to the outbox when there is one and
	// Outbox relays to EventPublisher.
	EventPublisher eventbus.Publisher
	Outbox         *outbox.Processor

	// Services
	Engine    *services.SchedulingEngine
	Detector  *services.ConflictDetector
	Generator *services.SolutionGenerator
	Applier   *services.Applier
	Importer  *ical.Importer
	// CalDAV is nil unless CALDAV_URL is set.
	CalDAV *caldav.Source

	// Command Handlers
	AddEntityHandler        *commands.AddEntityHandler
	RemoveEntityHandler     *commands.RemoveEntityHandler
	SuggestPlacementHandler *commands.SuggestPlacementHandler
	ApplySolutionHandler    *commands.ApplySolutionHandler
	UndoSolutionHandler     *commands.UndoSolutionHandler
	ImportCalendarHandler   *commands.ImportCalendarHandler

	// Query Handlers
	ListEntitiesHandler       *queries.ListEntitiesHandler
	FindAvailableSlotsHandler *queries.FindAvailableSlotsHandler
	DetectConflictsHandler    *queries.DetectConflictsHandler
	ProposeSolutionsHandler   *queries.ProposeSolutionsHandler
	ListRollbackTokensHandler *queries.ListRollbackTokensHandler

	applierPublisher services.EventPublisher
	closers          []func() error
}

// NewContainer connects the configured backends and builds every handler.
// Optional backends (Redis, RabbitMQ) degrade to local fallbacks in
// development and fail the container otherwise.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewPrometheusMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	driver, err := database.ParseDriver(cfg.Store)
	if err != nil {
		return nil, err
	}
	c.Driver = driver

	factory, err := c.openStore(ctx, driver)
	if err != nil {
		return nil, err
	}
	if err := c.connectRedis(ctx, factory); err != nil {
		c.Close()
		return nil, err
	}

	if c.Entities, err = factory.EntityRepository(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create entity repository: %w", err)
	}
	if c.Tokens, err = factory.RollbackTokenRepository(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create rollback token repository: %w", err)
	}

	if err := c.connectPublisher(); err != nil {
		c.Close()
		return nil, err
	}
	c.wireOutbox(factory)
	if err := c.connectCalDAV(); err != nil {
		c.Close()
		return nil, err
	}

	c.wireHandlers()
	logger.Info("container ready",
		"store", driver,
		"redis_tokens", c.RedisClient != nil,
		"outbox", c.Outbox != nil,
		"health_checks", c.Health.Names(),
	)
	return c, nil
}

func (c *Container) openStore(ctx context.Context, driver database.Driver) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(driver)
	switch driver {
	case database.DriverSQLite:
		path := c.Config.SQLitePath
		if path == "" {
			path = sqlite.DefaultPath()
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		c.Health.Register("sqlite", observability.PingChecker("sqlite", observability.HealthStatusUnhealthy, db.PingContext))
		c.Logger.Info("opened SQLite store", "path", path)
		factory.WithSQLite(db)

	case database.DriverPostgres:
		pool, err := postgres.Open(ctx, c.Config.DatabaseURL, c.Config.DatabaseMaxConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		c.Health.Register("postgres", observability.PingChecker("postgres", observability.HealthStatusUnhealthy, pool.Ping))
		c.Logger.Info("connected to database")
		factory.WithPostgres(pool)

	case database.DriverMemory:
		c.Logger.Info("using in-memory store; nothing is persisted")
	}
	return factory, nil
}

func (c *Container) connectRedis(ctx context.Context, factory *RepositoryFactory) error {
	if c.Config.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, rollback tokens stay in the primary store", "error", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, rollback tokens stay in the primary store", "error", err)
		return nil
	}

	c.RedisClient = client
	c.closers = append(c.closers, client.Close)
	c.Health.Register("redis", observability.PingChecker("redis", observability.HealthStatusUnhealthy,
		func(ctx context.Context) error { return client.Ping(ctx).Err() }))
	factory.WithRedis(client, c.Config.TokenTTL)
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) connectPublisher() error {
	if c.Config.RabbitMQURL == "" {
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	rabbit, err := eventbus.NewRabbitMQPublisher(eventbus.RabbitMQConfig{
		URL:            c.Config.RabbitMQURL,
		ConfirmTimeout: c.Config.PublishTimeout,
	}, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return err
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	// A broker outage must not fail an apply, so events are best effort.
	c.Health.Register("rabbitmq", observability.PingChecker("rabbitmq", observability.HealthStatusDegraded, rabbit.Ping))
	c.EventPublisher = eventbus.NewBreakerPublisher(rabbit, eventbus.DefaultBreakerConfig(), c.Logger, c.Metrics)
	c.closers = append(c.closers, c.EventPublisher.Close)
	c.Logger.Info("connected to RabbitMQ")
	return nil
}

func (c *Container) connectCalDAV() error {
	if c.Config.CalDAVURL == "" {
		return nil
	}
	source, err := caldav.NewSource(caldav.Config{
		URL:          c.Config.CalDAVURL,
		Username:     c.Config.CalDAVUsername,
		Password:     c.Config.CalDAVPassword,
		CalendarPath: c.Config.CalDAVCalendar,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.CalDAV = source
	return nil
}

func (c *Container) wireOutbox(factory *RepositoryFactory) {
	if !c.Config.OutboxEnabled {
		return
	}
	repo, ok := factory.OutboxRepository()
	if !ok {
		return
	}

	cfg := outbox.DefaultProcessorConfig()
	cfg.PollInterval = c.Config.OutboxPollInterval
	cfg.MaxRetries = c.Config.OutboxMaxRetries
	c.Outbox = outbox.NewProcessor(repo, c.EventPublisher, cfg, c.Logger, c.Metrics)
	c.closers = append(c.closers, func() error { c.Outbox.Stop(); return nil })
	c.Health.Register("outbox", observability.PingChecker("outbox", observability.HealthStatusDegraded,
		func(ctx context.Context) error {
			_, err := repo.CountPending(ctx)
			return err
		}))
	c.applierPublisher = outbox.NewWriter(repo)
}

func (c *Container) wireHandlers() {
	publisher := c.applierPublisher
	if publisher == nil {
		publisher = c.EventPublisher
	}

	c.Engine = services.NewSchedulingEngine(c.Logger, c.Metrics)
	c.Detector = services.NewConflictDetector(c.Logger, c.Metrics)
	c.Generator = services.NewSolutionGenerator(c.Logger, c.Metrics)
	c.Applier = services.NewApplier(publisher, c.Logger, c.Metrics)
	c.Importer = ical.NewImporter(ical.Options{Location: c.Config.Location()}, c.Logger)

	c.AddEntityHandler = commands.NewAddEntityHandler(c.Entities)
	c.RemoveEntityHandler = commands.NewRemoveEntityHandler(c.Entities)
	c.SuggestPlacementHandler = commands.NewSuggestPlacementHandler(c.Entities, c.Engine, c.Logger)
	c.ApplySolutionHandler = commands.NewApplySolutionHandler(c.Entities, c.Tokens, c.Applier, c.Logger).
		WithMaxDuration(c.maxDuration())
	c.UndoSolutionHandler = commands.NewUndoSolutionHandler(c.Entities, c.Tokens, c.Applier, c.Logger)
	c.ImportCalendarHandler = commands.NewImportCalendarHandler(c.Entities, c.Importer, c.Logger)

	c.ListEntitiesHandler = queries.NewListEntitiesHandler(c.Entities)
	c.FindAvailableSlotsHandler = queries.NewFindAvailableSlotsHandler(c.Entities, c.Logger)
	c.DetectConflictsHandler = queries.NewDetectConflictsHandler(c.Entities, c.Detector, c.Logger)
	c.ProposeSolutionsHandler = queries.NewProposeSolutionsHandler(c.Entities, c.Detector, c.Generator, c.Logger)
	c.ListRollbackTokensHandler = queries.NewListRollbackTokensHandler(c.Tokens)
}

// Close releases every connection, newest first.
func (c *Container) Close() {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if err := errors.Join(errs...); err != nil {
		c.Logger.Warn("error closing container", "error", err)
	}
}

// SlotFinderConfig returns the configured working-hours policy.
func (c *Container) SlotFinderConfig() services.SlotFinderConfig {
	cfg := services.DefaultSlotFinderConfig()
	cfg.WorkingHours = c.workingHours()
	cfg.IncludeWeekends = c.Config.IncludeWeekends
	cfg.BufferMinutes = c.Config.BufferMinutes
	cfg.Location = c.Config.Location()
	return cfg
}

// ScheduleOptions returns engine options anchored at now.
func (c *Container) ScheduleOptions(now time.Time) services.ScheduleOptions {
	opts := services.DefaultScheduleOptions(now)
	opts.HorizonDays = c.Config.HorizonDays
	opts.SlotStep = c.Config.SlotStep
	opts.MaxSuggestions = c.Config.MaxSuggestions
	opts.MaxAlternatives = c.Config.MaxAlternatives
	opts.MaxDuration = c.maxDuration()
	opts.SlotFinder = c.SlotFinderConfig()
	return opts
}

// DetectorConfig returns the configured audit policy.
func (c *Container) DetectorConfig() services.ConflictDetectorConfig {
	cfg := services.DefaultConflictDetectorConfig()
	business := c.workingHours()
	cfg.BusinessHours = &business
	cfg.AttendeeOverlapIsConflict = c.Config.AttendeeOverlapIsConflict
	cfg.MaxDuration = c.maxDuration()
	cfg.Location = c.Config.Location()
	return cfg
}

// SolutionOptions returns remediation options anchored at now.
func (c *Container) SolutionOptions(now time.Time) services.SolutionOptions {
	opts := services.DefaultSolutionOptions()
	opts.Now = now
	opts.HorizonDays = c.Config.HorizonDays
	opts.MaxDuration = c.maxDuration()
	opts.SlotFinder = c.SlotFinderConfig()
	return opts
}

func (c *Container) maxDuration() time.Duration {
	return time.Duration(c.Config.MaxDurationMinutes) * time.Minute
}

func (c *Container) workingHours() domain.DayWindow {
	start, err := config.ParseClock(c.Config.WorkStart)
	if err != nil {
		start = config.Clock{Hour: 9}
	}
	end, err := config.ParseClock(c.Config.WorkEnd)
	if err != nil {
		end = config.Clock{Hour: 17}
	}
	return domain.NewDayWindow(start.Hour, start.Minute, end.Hour, end.Minute)
}
