package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 15, hour, minute, 0, 0, time.UTC)
}

func TestNewTimeInterval(t *testing.T) {
	iv, err := domain.NewTimeInterval(at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, iv.Duration())
	assert.Equal(t, 60, iv.Minutes())

	_, err = domain.NewTimeInterval(at(10, 0), at(10, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	_, err = domain.NewTimeInterval(at(10, 0), at(9, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	_, err = domain.NewTimeInterval(time.Time{}, at(9, 0))
	assert.ErrorIs(t, err, domain.ErrZeroTime)
}

func TestTimeInterval_Overlaps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     domain.TimeInterval
		overlaps bool
	}{
		{"identical", domain.MustInterval(at(9, 0), at(10, 0)), domain.MustInterval(at(9, 0), at(10, 0)), true},
		{"partial", domain.MustInterval(at(9, 0), at(10, 0)), domain.MustInterval(at(9, 30), at(10, 30)), true},
		{"contained", domain.MustInterval(at(9, 0), at(12, 0)), domain.MustInterval(at(10, 0), at(11, 0)), true},
		{"touching endpoints", domain.MustInterval(at(10, 0), at(11, 0)), domain.MustInterval(at(11, 0), at(12, 0)), false},
		{"disjoint", domain.MustInterval(at(8, 0), at(9, 0)), domain.MustInterval(at(13, 0), at(14, 0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlaps, tt.a.Overlaps(tt.b))
			// symmetry
			assert.Equal(t, tt.a.Overlaps(tt.b), tt.b.Overlaps(tt.a))
		})
	}
}

func TestTimeInterval_Transformations(t *testing.T) {
	iv := domain.MustInterval(at(9, 0), at(10, 0))

	moved := iv.Shift(90 * time.Minute)
	assert.Equal(t, at(10, 30), moved.Start)
	assert.Equal(t, at(11, 30), moved.End)
	assert.Equal(t, at(9, 0), iv.Start, "shift must not mutate the original")

	re := iv.StartingAt(at(14, 0))
	assert.Equal(t, at(15, 0), re.End)

	part, ok := iv.Intersect(domain.MustInterval(at(9, 30), at(11, 0)))
	require.True(t, ok)
	assert.Equal(t, domain.MustInterval(at(9, 30), at(10, 0)), part)

	_, ok = iv.Intersect(domain.MustInterval(at(10, 0), at(11, 0)))
	assert.False(t, ok)

	assert.True(t, iv.Contains(at(9, 0)))
	assert.False(t, iv.Contains(at(10, 0)))
	assert.True(t, domain.MustInterval(at(8, 0), at(12, 0)).Covers(iv))
}
