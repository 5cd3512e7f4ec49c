package domain

import (
	"slices"
	"time"
)

// Severity grades a conflict violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities, Low = 1 .. Critical = 4.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Violation rules emitted by the conflict detector.
const (
	RuleDoubleBooking   = "double_booking"
	RuleAttendeeClash   = "attendee_clash"
	RuleInvalidInterval = "invalid_interval"
	RuleBusinessHours   = "business_hours"
	RuleFocusTime       = "focus_time_protection"
	RuleMaxDuration     = "max_duration"
)

// ConflictViolation is one existing breach found in a snapshot.
type ConflictViolation struct {
	ID            string         `json:"id"`
	Type          ConstraintType `json:"type"`
	Severity      Severity       `json:"severity"`
	Rule          string         `json:"rule"`
	EntityIDs     []string       `json:"entity_ids"`
	Justification string         `json:"justification"`
	Penalty       float64        `json:"penalty"`

	// EarliestStart is the earliest start among the affected entities.
	EarliestStart time.Time `json:"earliest_start"`
}

// IsHard reports whether the violation must be fixed.
func (v ConflictViolation) IsHard() bool {
	return v.Type == ConstraintTypeHard
}

// Involves reports whether the entity participates in the violation.
func (v ConflictViolation) Involves(entityID string) bool {
	return slices.Contains(v.EntityIDs, entityID)
}

// SortViolations orders by penalty descending, then earliest affected start.
func SortViolations(vs []ConflictViolation) {
	sortStable(vs, func(a, b ConflictViolation) int {
		if a.Penalty != b.Penalty {
			if a.Penalty > b.Penalty {
				return -1
			}
			return 1
		}
		return a.EarliestStart.Compare(b.EarliestStart)
	})
}

func sortStable[T any](s []T, cmp func(a, b T) int) {
	slices.SortStableFunc(s, cmp)
}
