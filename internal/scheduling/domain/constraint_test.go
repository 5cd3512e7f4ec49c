package domain_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placement(start, end time.Time) domain.Placement {
	return domain.Placement{
		Interval: domain.MustInterval(start, end),
		Category: domain.CategoryTask,
		Priority: 3,
	}
}

func TestWorkingHoursConstraint(t *testing.T) {
	// Working hours: 9am to 5pm
	constraint := domain.WorkingHours(domain.NewDayWindow(9, 0, 17, 0))

	tests := []struct {
		name      string
		startHour int
		duration  time.Duration
		satisfied bool
	}{
		{"within hours", 10, time.Hour, true},
		{"at start", 9, time.Hour, true},
		{"ends at boundary", 16, time.Hour, true},
		{"before hours", 7, time.Hour, false},
		{"after hours", 18, time.Hour, false},
		{"spans outside", 16, 2 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := at(tt.startHour, 0)
			p := placement(start, start.Add(tt.duration))

			assert.Equal(t, tt.satisfied, constraint.Satisfied(p, nil))
			if tt.satisfied {
				assert.Equal(t, 0.0, constraint.PenaltyFor(p, nil))
			} else {
				assert.Greater(t, constraint.PenaltyFor(p, nil), 0.0)
			}
		})
	}
}

func TestDayWindow_OnKeepsWallClockAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	window := domain.NewDayWindow(9, 0, 17, 0)

	days := []struct {
		name string
		day  time.Time
	}{
		{"spring forward", time.Date(2026, time.March, 8, 12, 0, 0, 0, ny)},
		{"fall back", time.Date(2026, time.November, 1, 12, 0, 0, 0, ny)},
		{"ordinary day", time.Date(2026, time.March, 9, 12, 0, 0, 0, ny)},
	}
	for _, tt := range days {
		t.Run(tt.name, func(t *testing.T) {
			iv := window.On(tt.day)
			assert.Equal(t, 9, iv.Start.Hour())
			assert.Equal(t, 0, iv.Start.Minute())
			assert.Equal(t, 17, iv.End.Hour())
			assert.Equal(t, tt.day.Day(), iv.End.Day())
		})
	}

	constraint := domain.WorkingHours(window)
	ctx := &domain.EvaluationContext{Location: ny}
	evening := placement(time.Date(2026, time.March, 8, 17, 0, 0, 0, ny), time.Date(2026, time.March, 8, 18, 0, 0, 0, ny))
	morning := placement(time.Date(2026, time.March, 8, 9, 0, 0, 0, ny), time.Date(2026, time.March, 8, 10, 0, 0, 0, ny))
	assert.False(t, constraint.Satisfied(evening, ctx))
	assert.True(t, constraint.Satisfied(morning, ctx))
}

func TestDefaultHardConstraints(t *testing.T) {
	working := domain.NewDayWindow(9, 0, 17, 0)

	names := func(cs []domain.Constraint) []string {
		out := make([]string, len(cs))
		for i, c := range cs {
			out[i] = c.Name
		}
		return out
	}
	assert.Equal(t, []string{"no_double_booking", "working_hours", "min_duration", "max_duration"},
		names(domain.DefaultHardConstraints(working, 0)))
	assert.Equal(t, []string{"no_double_booking", "min_duration", "max_duration"},
		names(domain.DefaultHardConstraints(domain.DayWindow{}, 0)))

	set := domain.NewConstraintSet(domain.DefaultHardConstraints(working, 4*time.Hour)...)
	ctx := &domain.EvaluationContext{Index: domain.NewIntervalIndex()}
	result := set.Validate(placement(at(9, 0), at(14, 0)), ctx)
	assert.Equal(t, []string{"max_duration"}, result.ViolatedHard)
	assert.True(t, set.Validate(placement(at(9, 0), at(13, 0)), ctx).Valid)
}

func TestDayOfWeekConstraint(t *testing.T) {
	// Only weekdays
	constraint := domain.DaysOfWeek(domain.ConstraintTypeHard, 10,
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)

	tests := []struct {
		name      string
		day       time.Weekday
		satisfied bool
	}{
		{"Monday", time.Monday, true},
		{"Friday", time.Friday, true},
		{"Saturday", time.Saturday, false},
		{"Sunday", time.Sunday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := at(10, 0) // Monday
			for start.Weekday() != tt.day {
				start = start.Add(24 * time.Hour)
			}
			assert.Equal(t, tt.satisfied, constraint.Satisfied(placement(start, start.Add(time.Hour)), nil))
		})
	}
}

func TestDurationConstraints(t *testing.T) {
	minC := domain.MinDuration(domain.DefaultMinDuration)
	maxC := domain.MaxDuration(domain.DefaultMaxDuration)

	short := placement(at(9, 0), at(9, 10))
	ok := placement(at(9, 0), at(9, 15))
	long := placement(at(0, 0), at(12, 0))

	assert.False(t, minC.Satisfied(short, nil))
	assert.True(t, minC.Satisfied(ok, nil))
	assert.True(t, maxC.Satisfied(ok, nil))
	assert.False(t, maxC.Satisfied(long, nil))

	// 720 minutes is 240 over a 480 limit: half the base penalty.
	assert.InDelta(t, 50.0, maxC.PenaltyFor(long, nil), 0.001)
}

func TestNoDoubleBookingConstraint(t *testing.T) {
	idx := domain.NewIntervalIndex(entity("busy", at(10, 0), at(11, 0)))
	ctx := &domain.EvaluationContext{Index: idx}
	c := domain.NoDoubleBooking()

	assert.False(t, c.Satisfied(placement(at(10, 30), at(11, 30)), ctx))
	assert.True(t, c.Satisfied(placement(at(11, 0), at(12, 0)), ctx), "touching is not a double booking")

	ctx.Ignore = map[string]bool{"busy": true}
	assert.True(t, c.Satisfied(placement(at(10, 30), at(11, 30)), ctx))
}

func TestAvailabilityConstraints(t *testing.T) {
	busy := entity("standup", at(10, 0), at(10, 30))
	busy.Attendees = []string{"ana@example.com"}
	busy.ResourceRefs = []string{"room-1"}
	ctx := &domain.EvaluationContext{Index: domain.NewIntervalIndex(busy)}
	p := placement(at(10, 0), at(11, 0))

	assert.False(t, domain.AttendeeAvailability(domain.ConstraintTypeHard, 0, "ana@example.com").Satisfied(p, ctx))
	assert.True(t, domain.AttendeeAvailability(domain.ConstraintTypeHard, 0, "bo@example.com").Satisfied(p, ctx))
	assert.False(t, domain.ResourceAvailability(domain.ConstraintTypeHard, 0, "room-1").Satisfied(p, ctx))

	// Falls back to the placement's own refs.
	p.Resources = []string{"room-2"}
	assert.True(t, domain.ResourceAvailability(domain.ConstraintTypeHard, 0).Satisfied(p, ctx))
}

func TestDeadlineConstraint(t *testing.T) {
	c := domain.Deadline(at(12, 0))
	assert.True(t, c.Satisfied(placement(at(11, 0), at(12, 0)), nil))
	assert.False(t, c.Satisfied(placement(at(11, 30), at(12, 30)), nil))
}

func TestBusinessHoursPenaltyIsProportional(t *testing.T) {
	c := domain.BusinessHours(domain.NewDayWindow(9, 0, 17, 0), 20)

	assert.Equal(t, 0.0, c.PenaltyFor(placement(at(10, 0), at(11, 0)), nil))
	assert.InDelta(t, 10.0, c.PenaltyFor(placement(at(16, 30), at(17, 30)), nil), 0.001)
	assert.InDelta(t, 20.0, c.PenaltyFor(placement(at(18, 0), at(19, 0)), nil), 0.001)
}

func TestFocusTimeProtection(t *testing.T) {
	c := domain.FocusTimeProtection(domain.ConstraintTypeSoft, domain.NewDayWindow(9, 0, 11, 0), 15)

	meeting := placement(at(10, 0), at(10, 30))
	meeting.Category = domain.CategoryMeeting
	assert.False(t, c.Satisfied(meeting, nil))
	assert.Equal(t, 15.0, c.PenaltyFor(meeting, nil))

	focus := meeting
	focus.Category = domain.CategoryFocus
	assert.True(t, c.Satisfied(focus, nil))
}

func TestRecurrencePatternConstraint(t *testing.T) {
	// 2024-01-15 is a Monday.
	weekly := domain.RecurrencePattern(domain.ConstraintTypeHard, "FREQ=WEEKLY;BYDAY=MO,WE", 0)
	assert.True(t, weekly.Satisfied(placement(at(10, 0), at(11, 0)), nil))

	tuesday := at(10, 0).AddDate(0, 0, 1)
	assert.False(t, weekly.Satisfied(placement(tuesday, tuesday.Add(time.Hour)), nil))

	timed := domain.RecurrencePattern(domain.ConstraintTypeHard, "FREQ=DAILY;BYHOUR=9;BYMINUTE=0", 0)
	assert.True(t, timed.Satisfied(placement(at(9, 0), at(10, 0)), nil))
	assert.False(t, timed.Satisfied(placement(at(9, 30), at(10, 30)), nil))

	broken := domain.RecurrencePattern(domain.ConstraintTypeHard, "FREQ=SOMETIMES", 0)
	assert.False(t, broken.Satisfied(placement(at(9, 0), at(10, 0)), nil))
}

func TestCustomConstraintUsesRegistry(t *testing.T) {
	registry := domain.NewPredicateRegistry()
	require.NoError(t, registry.Register("not_before_noon", domain.CustomPredicate{
		Evaluate: func(p domain.Placement, _ *domain.EvaluationContext, _ domain.Constraint) bool {
			return p.Interval.Start.Hour() >= 12
		},
		Penalty: func(_ domain.Placement, _ *domain.EvaluationContext, c domain.Constraint) float64 {
			return c.Penalty * 2
		},
	}))
	assert.Error(t, registry.Register("not_before_noon", domain.CustomPredicate{
		Evaluate: func(domain.Placement, *domain.EvaluationContext, domain.Constraint) bool { return true },
	}))

	c := domain.Custom("afternoon", domain.ConstraintTypeSoft, "not_before_noon", 5, nil)
	ctx := &domain.EvaluationContext{Registry: registry}

	assert.True(t, c.Satisfied(placement(at(13, 0), at(14, 0)), ctx))
	assert.Equal(t, 10.0, c.PenaltyFor(placement(at(9, 0), at(10, 0)), ctx))

	unknown := domain.Custom("ghost", domain.ConstraintTypeHard, "missing", 5, nil)
	assert.False(t, unknown.Satisfied(placement(at(13, 0), at(14, 0)), ctx), "unregistered predicates fail closed")
}

func TestConstraintSet_ValidateCollectsAllViolations(t *testing.T) {
	idx := domain.NewIntervalIndex(entity("busy", at(18, 0), at(19, 0)))
	ctx := &domain.EvaluationContext{Index: idx}
	set := domain.NewConstraintSet(domain.DefaultHardConstraints(domain.NewDayWindow(9, 0, 17, 0), 0)...)

	// Outside working hours, double-booked and too short.
	result := set.Validate(placement(at(18, 0), at(18, 10)), ctx)

	assert.False(t, result.Valid)
	assert.ElementsMatch(t, []string{"no_double_booking", "working_hours", "min_duration"}, result.ViolatedHard)

	extra := domain.Deadline(at(12, 0))
	result = set.Validate(placement(at(13, 0), at(14, 0)), ctx, extra)
	assert.Equal(t, []string{"deadline"}, result.ViolatedHard)

	result = set.Validate(placement(at(10, 0), at(11, 0)), ctx, extra)
	assert.True(t, result.Valid)
	assert.Empty(t, result.ViolatedHard)
}

func TestConstraintSet_SoftPenaltyAndScore(t *testing.T) {
	set := domain.NewConstraintSet(
		domain.BusinessHours(domain.NewDayWindow(9, 0, 17, 0), 30),
		domain.DaysOfWeek(domain.ConstraintTypeSoft, 25, time.Tuesday),
	)

	total, reasons := set.SoftPenalty(placement(at(18, 0), at(19, 0)), nil)
	assert.InDelta(t, 55.0, total, 0.001)
	assert.Len(t, reasons, 2)
	assert.Equal(t, 45, domain.ScoreFromPenalty(total))

	assert.Equal(t, 0, domain.ScoreFromPenalty(250))
	assert.Equal(t, 100, domain.ScoreFromPenalty(0))
}
