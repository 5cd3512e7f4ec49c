package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"SLOTWISE_ENV", "LOG_LEVEL", "LOG_FORMAT",
	"SLOTWISE_STORE", "SQLITE_PATH", "DATABASE_URL", "DATABASE_MAX_CONNS",
	"REDIS_URL", "SLOTWISE_TOKEN_TTL", "RABBITMQ_URL", "SLOTWISE_PUBLISH_TIMEOUT",
	"SLOTWISE_TIMEZONE", "SLOTWISE_WORK_START", "SLOTWISE_WORK_END", "SLOTWISE_INCLUDE_WEEKENDS",
	"SLOTWISE_BUFFER_MINUTES", "SLOTWISE_HORIZON_DAYS", "SLOTWISE_SLOT_STEP",
	"SLOTWISE_MAX_SUGGESTIONS", "SLOTWISE_MAX_ALTERNATIVES", "SLOTWISE_MAX_DURATION_MINUTES",
	"SLOTWISE_ATTENDEE_CONFLICTS", "SLOTWISE_METRICS_ADDR",
}

// clearEnv blanks every slotwise variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)

	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, "09:00", cfg.WorkStart)
	assert.Equal(t, "17:00", cfg.WorkEnd)
	assert.False(t, cfg.IncludeWeekends)
	assert.Equal(t, 7, cfg.HorizonDays)
	assert.Equal(t, 15*time.Minute, cfg.SlotStep)
	assert.Equal(t, 5, cfg.MaxSuggestions)
	assert.Equal(t, 480, cfg.MaxDurationMinutes)
	assert.True(t, cfg.AttendeeOverlapIsConflict)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLOTWISE_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://slotwise@localhost/slotwise")
	t.Setenv("SLOTWISE_TIMEZONE", "Europe/Berlin")
	t.Setenv("SLOTWISE_WORK_START", "08:30")
	t.Setenv("SLOTWISE_BUFFER_MINUTES", "10")
	t.Setenv("SLOTWISE_SLOT_STEP", "30m")
	t.Setenv("SLOTWISE_ATTENDEE_CONFLICTS", "false")
	t.Setenv("SLOTWISE_HORIZON_DAYS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.Equal(t, "08:30", cfg.WorkStart)
	assert.Equal(t, 10, cfg.BufferMinutes)
	assert.Equal(t, 30*time.Minute, cfg.SlotStep)
	assert.False(t, cfg.AttendeeOverlapIsConflict)
	assert.Equal(t, 7, cfg.HorizonDays, "unparsable values fall back to the default")
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown timezone", map[string]string{"SLOTWISE_TIMEZONE": "Mars/Olympus"}, "SLOTWISE_TIMEZONE"},
		{"malformed work start", map[string]string{"SLOTWISE_WORK_START": "nine"}, "SLOTWISE_WORK_START"},
		{"inverted hours", map[string]string{"SLOTWISE_WORK_START": "18:00"}, "end after they start"},
		{"zero horizon", map[string]string{"SLOTWISE_HORIZON_DAYS": "0"}, "HORIZON"},
		{"postgres without url", map[string]string{"SLOTWISE_STORE": "postgres"}, "DATABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 30}, c)
	assert.Equal(t, 570, c.Minutes())

	c, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 1440, c.Minutes())

	for _, bad := range []string{"", "9", "25:00", "24:30", "10:75", "aa:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}
