package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDriver(t *testing.T) {
	tests := []struct {
		in      string
		want    Driver
		wantErr bool
	}{
		{"", DriverSQLite, false},
		{"sqlite", DriverSQLite, false},
		{" Memory ", DriverMemory, false},
		{"postgresql", DriverPostgres, false},
		{"mysql", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDriver(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectDriver(t *testing.T) {
	assert.Equal(t, DriverPostgres, DetectDriver("postgres://u:p@localhost:5432/slotwise"))
	assert.Equal(t, DriverPostgres, DetectDriver("postgresql://localhost/slotwise"))
	assert.Equal(t, DriverMemory, DetectDriver(":memory:"))
	assert.Equal(t, DriverSQLite, DetectDriver("/var/lib/slotwise/slotwise.db"))
}

func TestIsNoRows(t *testing.T) {
	assert.False(t, IsNoRows(nil))
	assert.True(t, IsNoRows(sql.ErrNoRows))
	assert.True(t, IsNoRows(fmt.Errorf("load: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("boom")))
}
