// Package config loads slotwise settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for SLOTWISE_TIMEZONE on minimal hosts

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Storage
	Store            string
	SQLitePath       string
	DatabaseURL      string
	DatabaseMaxConns int

	// Rollback tokens in Redis; SQLite or memory is used when unset.
	RedisURL string
	TokenTTL time.Duration

	// Events
	RabbitMQURL    string
	PublishTimeout time.Duration

	// Outbox relay for the sqlite and postgres stores
	OutboxEnabled      bool
	OutboxPollInterval time.Duration
	OutboxMaxRetries   int

	// CalDAV source for "schedule sync"
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string

	// Scheduling defaults
	Timezone                  string
	WorkStart                 string
	WorkEnd                   string
	IncludeWeekends           bool
	BufferMinutes             int
	HorizonDays               int
	SlotStep                  time.Duration
	MaxSuggestions            int
	MaxAlternatives           int
	MaxDurationMinutes        int
	AttendeeOverlapIsConflict bool

	// Observability
	MetricsAddr string
}

// Load loads configuration from environment variables and validates it.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("SLOTWISE_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Store:            getEnv("SLOTWISE_STORE", "sqlite"),
		SQLitePath:       getEnv("SQLITE_PATH", ""),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 4),

		RedisURL: getEnv("REDIS_URL", ""),
		TokenTTL: getDurationEnv("SLOTWISE_TOKEN_TTL", 7*24*time.Hour),

		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),
		PublishTimeout: getDurationEnv("SLOTWISE_PUBLISH_TIMEOUT", 5*time.Second),

		OutboxEnabled:      getBoolEnv("SLOTWISE_OUTBOX", true),
		OutboxPollInterval: getDurationEnv("SLOTWISE_OUTBOX_POLL", time.Second),
		OutboxMaxRetries:   getIntEnv("SLOTWISE_OUTBOX_MAX_RETRIES", 5),

		CalDAVURL:      getEnv("CALDAV_URL", ""),
		CalDAVUsername: getEnv("CALDAV_USERNAME", ""),
		CalDAVPassword: getEnv("CALDAV_PASSWORD", ""),
		CalDAVCalendar: getEnv("CALDAV_CALENDAR", ""),

		Timezone:                  getEnv("SLOTWISE_TIMEZONE", "UTC"),
		WorkStart:                 getEnv("SLOTWISE_WORK_START", "09:00"),
		WorkEnd:                   getEnv("SLOTWISE_WORK_END", "17:00"),
		IncludeWeekends:           getBoolEnv("SLOTWISE_INCLUDE_WEEKENDS", false),
		BufferMinutes:             getIntEnv("SLOTWISE_BUFFER_MINUTES", 0),
		HorizonDays:               getIntEnv("SLOTWISE_HORIZON_DAYS", 7),
		SlotStep:                  getDurationEnv("SLOTWISE_SLOT_STEP", 15*time.Minute),
		MaxSuggestions:            getIntEnv("SLOTWISE_MAX_SUGGESTIONS", 5),
		MaxAlternatives:           getIntEnv("SLOTWISE_MAX_ALTERNATIVES", 5),
		MaxDurationMinutes:        getIntEnv("SLOTWISE_MAX_DURATION_MINUTES", 480),
		AttendeeOverlapIsConflict: getBoolEnv("SLOTWISE_ATTENDEE_CONFLICTS", true),

		MetricsAddr: getEnv("SLOTWISE_METRICS_ADDR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("SLOTWISE_TIMEZONE: %w", err))
	}
	start, startErr := ParseClock(c.WorkStart)
	if startErr != nil {
		errs = append(errs, fmt.Errorf("SLOTWISE_WORK_START: %w", startErr))
	}
	end, endErr := ParseClock(c.WorkEnd)
	if endErr != nil {
		errs = append(errs, fmt.Errorf("SLOTWISE_WORK_END: %w", endErr))
	}
	if startErr == nil && endErr == nil && start.Minutes() >= end.Minutes() {
		errs = append(errs, errors.New("working hours must end after they start"))
	}
	if c.HorizonDays < 1 {
		errs = append(errs, errors.New("SLOTWISE_HORIZON_DAYS must be positive"))
	}
	if c.SlotStep < time.Minute {
		errs = append(errs, errors.New("SLOTWISE_SLOT_STEP must be at least 1m"))
	}
	if c.BufferMinutes < 0 {
		errs = append(errs, errors.New("SLOTWISE_BUFFER_MINUTES must not be negative"))
	}
	if c.OutboxEnabled && c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("SLOTWISE_OUTBOX_POLL must be positive"))
	}
	if c.Store == "postgres" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required when SLOTWISE_STORE=postgres"))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// ParseClock parses "HH:MM". "24:00" is accepted as end of day.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return Clock{}, fmt.Errorf("time of day %q out of range", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
