package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	ErrZeroTime         = errors.New("interval bounds must be set")
)

// TimeInterval is a half-open time range [Start, End).
// Values are immutable; every transformation returns a new interval.
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeInterval creates an interval, rejecting zero or negative durations.
func NewTimeInterval(start, end time.Time) (TimeInterval, error) {
	if start.IsZero() || end.IsZero() {
		return TimeInterval{}, ErrZeroTime
	}
	if !end.After(start) {
		return TimeInterval{}, fmt.Errorf("%w: %s >= %s", ErrInvalidTimeRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeInterval{Start: start, End: end}, nil
}

// MustInterval is NewTimeInterval for literals known to be valid.
func MustInterval(start, end time.Time) TimeInterval {
	iv, err := NewTimeInterval(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Valid reports whether the interval satisfies start < end.
func (t TimeInterval) Valid() bool {
	return !t.Start.IsZero() && !t.End.IsZero() && t.End.After(t.Start)
}

// Duration returns the length of the interval.
func (t TimeInterval) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Minutes returns the length of the interval in whole minutes.
func (t TimeInterval) Minutes() int {
	return int(t.Duration() / time.Minute)
}

// Overlaps is the single overlap predicate used across the engine.
// Touching endpoints do not overlap.
func (t TimeInterval) Overlaps(other TimeInterval) bool {
	return t.Start.Before(other.End) && other.Start.Before(t.End)
}

// Contains reports whether the instant falls inside the interval.
func (t TimeInterval) Contains(at time.Time) bool {
	return !at.Before(t.Start) && at.Before(t.End)
}

// Covers reports whether other lies entirely inside t.
func (t TimeInterval) Covers(other TimeInterval) bool {
	return !other.Start.Before(t.Start) && !other.End.After(t.End)
}

// Shift returns a copy moved by d.
func (t TimeInterval) Shift(d time.Duration) TimeInterval {
	return TimeInterval{Start: t.Start.Add(d), End: t.End.Add(d)}
}

// StartingAt returns a copy of the same length beginning at start.
func (t TimeInterval) StartingAt(start time.Time) TimeInterval {
	return TimeInterval{Start: start, End: start.Add(t.Duration())}
}

// Equal compares instants, ignoring location.
func (t TimeInterval) Equal(other TimeInterval) bool {
	return t.Start.Equal(other.Start) && t.End.Equal(other.End)
}

func (t TimeInterval) String() string {
	return t.Start.Format(time.RFC3339) + "/" + t.End.Format(time.RFC3339)
}

// Intersect returns the overlapping part of two intervals.
func (t TimeInterval) Intersect(other TimeInterval) (TimeInterval, bool) {
	if !t.Overlaps(other) {
		return TimeInterval{}, false
	}
	start := t.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := t.End
	if other.End.Before(end) {
		end = other.End
	}
	return TimeInterval{Start: start, End: end}, true
}
