package services

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detect(t *testing.T, cfg ConflictDetectorConfig, entities ...domain.ScheduledEntity) []domain.ConflictViolation {
	t.Helper()
	violations, err := NewConflictDetector(nil, nil).DetectConflicts(context.Background(), entities, cfg)
	require.NoError(t, err)
	return violations
}

func TestConflictDetector_SharedResourceIsCritical(t *testing.T) {
	a := meeting("A", at(0, 10, 0), at(0, 11, 0), "room-1")
	b := meeting("B", at(0, 10, 30), at(0, 11, 30), "room-1")

	violations := detect(t, DefaultConflictDetectorConfig(), a, b)

	require.Len(t, violations, 1)
	v := violations[0]
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.Equal(t, domain.RuleDoubleBooking, v.Rule)
	assert.True(t, v.IsHard())
	assert.Equal(t, []string{"A", "B"}, v.EntityIDs)
	assert.Equal(t, at(0, 10, 0), v.EarliestStart)
	assert.Contains(t, v.Justification, "room-1")
	assert.NotEmpty(t, v.ID)
}

func TestConflictDetector_NoViolationWithoutSharedRefs(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.ScheduledEntity
	}{
		{"touching endpoints", meeting("A", at(0, 10, 0), at(0, 11, 0), "room-1"), meeting("B", at(0, 11, 0), at(0, 12, 0), "room-1")},
		{"different rooms", meeting("A", at(0, 10, 0), at(0, 11, 0), "room-1"), meeting("B", at(0, 10, 0), at(0, 11, 0), "room-2")},
		{"no refs at all", meeting("A", at(0, 10, 0), at(0, 11, 0)), meeting("B", at(0, 10, 0), at(0, 11, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, detect(t, DefaultConflictDetectorConfig(), tt.a, tt.b))
		})
	}
}

func TestConflictDetector_AttendeeOverlapPolicy(t *testing.T) {
	a := meeting("A", at(0, 10, 0), at(0, 11, 0))
	a.Attendees = []string{"ana@example.com", "bo@example.com"}
	b := meeting("B", at(0, 10, 30), at(0, 11, 0))
	b.Attendees = []string{"bo@example.com"}

	cfg := DefaultConflictDetectorConfig()
	violations := detect(t, cfg, a, b)
	require.Len(t, violations, 1)
	assert.Equal(t, domain.SeverityHigh, violations[0].Severity)
	assert.Equal(t, domain.RuleAttendeeClash, violations[0].Rule)

	cfg.AttendeeOverlapIsConflict = false
	assert.Empty(t, detect(t, cfg, a, b))
}

func TestConflictDetector_EachPairReportedOnce(t *testing.T) {
	violations := detect(t, DefaultConflictDetectorConfig(),
		meeting("A", at(0, 10, 0), at(0, 12, 0), "room-1"),
		meeting("B", at(0, 10, 30), at(0, 11, 30), "room-1"),
		meeting("C", at(0, 11, 0), at(0, 13, 0), "room-1"),
	)

	require.Len(t, violations, 3)
	pairs := make(map[[2]string]bool)
	for _, v := range violations {
		require.Len(t, v.EntityIDs, 2)
		key := [2]string{v.EntityIDs[0], v.EntityIDs[1]}
		assert.False(t, pairs[key], "pair %v reported twice", key)
		pairs[key] = true
	}
}

func TestConflictDetector_MalformedEntity(t *testing.T) {
	bad := domain.ScheduledEntity{
		ID:       "broken",
		Interval: domain.TimeInterval{Start: at(0, 11, 0), End: at(0, 10, 0)},
		Priority: 3,
	}

	violations := detect(t, DefaultConflictDetectorConfig(), bad, meeting("ok", at(0, 10, 0), at(0, 11, 0)))

	require.Len(t, violations, 1)
	assert.Equal(t, domain.RuleInvalidInterval, violations[0].Rule)
	assert.Equal(t, domain.SeverityHigh, violations[0].Severity)
	assert.True(t, violations[0].IsHard())
}

func TestConflictDetector_SingleEntityAudits(t *testing.T) {
	focus := domain.NewDayWindow(9, 0, 11, 0)
	cfg := DefaultConflictDetectorConfig()
	cfg.FocusWindow = &focus

	late := meeting("late", at(0, 18, 0), at(0, 19, 0))
	intrusive := meeting("intrusive", at(0, 9, 30), at(0, 10, 0))
	marathon := meeting("marathon", at(1, 8, 0), at(1, 18, 0))

	violations := detect(t, cfg, late, intrusive, marathon)

	rules := make(map[string]domain.ConflictViolation)
	for _, v := range violations {
		rules[v.EntityIDs[0]+"/"+v.Rule] = v
	}
	assert.Equal(t, domain.SeverityLow, rules["late/business_hours"].Severity)
	assert.False(t, rules["late/business_hours"].IsHard())
	assert.Equal(t, domain.SeverityMedium, rules["intrusive/focus_time_protection"].Severity)
	assert.Equal(t, domain.SeverityMedium, rules["marathon/max_duration"].Severity)
	assert.True(t, rules["marathon/max_duration"].IsHard())
}

func TestConflictDetector_SortedByPenaltyThenStart(t *testing.T) {
	cfg := DefaultConflictDetectorConfig()
	violations := detect(t, cfg,
		meeting("late", at(0, 18, 0), at(0, 19, 0)),
		meeting("A", at(0, 14, 0), at(0, 15, 0), "room-1"),
		meeting("B", at(0, 14, 0), at(0, 15, 0), "room-1"),
		meeting("C", at(0, 10, 0), at(0, 11, 0), "room-2"),
		meeting("D", at(0, 10, 0), at(0, 11, 0), "room-2"),
	)

	require.Len(t, violations, 3)
	assert.Equal(t, []string{"C", "D"}, violations[0].EntityIDs)
	assert.Equal(t, []string{"A", "B"}, violations[1].EntityIDs)
	assert.Equal(t, domain.RuleBusinessHours, violations[2].Rule)
	for i := 1; i < len(violations); i++ {
		assert.GreaterOrEqual(t, violations[i-1].Penalty, violations[i].Penalty)
	}
}

func TestConflictDetector_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConflictDetector(nil, nil).DetectConflicts(ctx,
		[]domain.ScheduledEntity{meeting("A", at(0, 9, 0), at(0, 10, 0))}, DefaultConflictDetectorConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
