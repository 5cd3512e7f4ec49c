package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ConstraintType represents the strength of a scheduling constraint
type ConstraintType string

const (
	ConstraintTypeHard ConstraintType = "hard" // Must be satisfied
	ConstraintTypeSoft ConstraintType = "soft" // Preferred but not required
)

// ConstraintKind tags the variant of a Constraint.
type ConstraintKind string

const (
	KindNoDoubleBooking      ConstraintKind = "no_double_booking"
	KindWorkingHours         ConstraintKind = "working_hours"
	KindMinDuration          ConstraintKind = "min_duration"
	KindMaxDuration          ConstraintKind = "max_duration"
	KindDeadline             ConstraintKind = "deadline"
	KindAttendeeAvailability ConstraintKind = "attendee_availability"
	KindResourceAvailability ConstraintKind = "resource_availability"
	KindRecurrencePattern    ConstraintKind = "recurrence_pattern"
	KindBusinessHours        ConstraintKind = "business_hours"
	KindFocusTimeProtection  ConstraintKind = "focus_time_protection"
	KindDayOfWeek            ConstraintKind = "day_of_week"
	KindCustom               ConstraintKind = "custom"
)

// Default battery limits.
const (
	DefaultMinDuration = 15 * time.Minute
	DefaultMaxDuration = 480 * time.Minute
)

// Constraint is a serializable rule over a candidate placement.
// Only the fields relevant to Kind are read.
type Constraint struct {
	Name    string         `json:"name"`
	Type    ConstraintType `json:"type"`
	Kind    ConstraintKind `json:"kind"`
	Penalty float64        `json:"penalty,omitempty"`

	// Window is a time-of-day range (working hours, business hours, focus time).
	Window    DayWindow         `json:"window"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Deadline  *time.Time        `json:"deadline,omitempty"`
	Attendees []string          `json:"attendees,omitempty"`
	Resources []string          `json:"resources,omitempty"`
	RRule     string            `json:"rrule,omitempty"`
	Days      []time.Weekday    `json:"days,omitempty"`
	Predicate string            `json:"predicate,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// DayWindow is a range of minutes from local midnight, [StartMinute, EndMinute).
type DayWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// NewDayWindow builds a window from hour/minute pairs.
func NewDayWindow(startHour, startMinute, endHour, endMinute int) DayWindow {
	return DayWindow{StartMinute: startHour*60 + startMinute, EndMinute: endHour*60 + endMinute}
}

// IsZero reports whether no window is configured.
func (w DayWindow) IsZero() bool {
	return w.StartMinute == 0 && w.EndMinute == 0
}

// On returns the window as an interval on the day containing day. Bounds
// are wall-clock times, so a window keeps its hours across DST changes.
func (w DayWindow) On(day time.Time) TimeInterval {
	y, m, d := day.Date()
	loc := day.Location()
	return TimeInterval{
		Start: time.Date(y, m, d, w.StartMinute/60, w.StartMinute%60, 0, 0, loc),
		End:   time.Date(y, m, d, w.EndMinute/60, w.EndMinute%60, 0, 0, loc),
	}
}

// Placement is the thing a constraint is evaluated against.
type Placement struct {
	EntityID  string
	Interval  TimeInterval
	Category  Category
	Priority  int
	Attendees []string
	Resources []string
}

// EvaluationContext is the read-only snapshot constraints see.
type EvaluationContext struct {
	Index    *IntervalIndex
	Location *time.Location
	Registry *PredicateRegistry

	// Ignore lists entity ids that do not count as busy, such as the entity being moved.
	Ignore map[string]bool
}

func (ctx *EvaluationContext) location() *time.Location {
	if ctx == nil || ctx.Location == nil {
		return time.UTC
	}
	return ctx.Location
}

func (ctx *EvaluationContext) overlapping(p Placement) []ScheduledEntity {
	if ctx == nil || ctx.Index == nil {
		return nil
	}
	found := ctx.Index.QueryOverlapping(p.Interval)
	out := found[:0]
	for _, e := range found {
		if e.ID == p.EntityID || ctx.Ignore[e.ID] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Constructors for the known variants.

// NoDoubleBooking forbids overlap with any indexed entity.
func NoDoubleBooking() Constraint {
	return Constraint{Name: "no_double_booking", Type: ConstraintTypeHard, Kind: KindNoDoubleBooking, Penalty: 100}
}

// WorkingHours requires the placement to sit inside window on a single day.
func WorkingHours(window DayWindow) Constraint {
	return Constraint{Name: "working_hours", Type: ConstraintTypeHard, Kind: KindWorkingHours, Window: window, Penalty: 100}
}

// MinDuration rejects placements shorter than d.
func MinDuration(d time.Duration) Constraint {
	return Constraint{Name: "min_duration", Type: ConstraintTypeHard, Kind: KindMinDuration, Duration: d, Penalty: 100}
}

// MaxDuration rejects placements longer than d.
func MaxDuration(d time.Duration) Constraint {
	return Constraint{Name: "max_duration", Type: ConstraintTypeHard, Kind: KindMaxDuration, Duration: d, Penalty: 100}
}

// Deadline requires the placement to end by at.
func Deadline(at time.Time) Constraint {
	return Constraint{Name: "deadline", Type: ConstraintTypeHard, Kind: KindDeadline, Deadline: &at, Penalty: 100}
}

// AttendeeAvailability requires the named attendees to be free.
// With no attendees listed, the placement's own attendees are checked.
func AttendeeAvailability(ct ConstraintType, penalty float64, attendees ...string) Constraint {
	return Constraint{Name: "attendee_availability", Type: ct, Kind: KindAttendeeAvailability,
		Attendees: NormalizeRefs(attendees), Penalty: penalty}
}

// ResourceAvailability requires the named resources or locations to be free.
func ResourceAvailability(ct ConstraintType, penalty float64, resources ...string) Constraint {
	return Constraint{Name: "resource_availability", Type: ct, Kind: KindResourceAvailability,
		Resources: NormalizeRefs(resources), Penalty: penalty}
}

// RecurrencePattern requires the placement start to conform to an RFC 5545 RRULE.
func RecurrencePattern(ct ConstraintType, rule string, penalty float64) Constraint {
	return Constraint{Name: "recurrence_pattern", Type: ct, Kind: KindRecurrencePattern, RRule: rule, Penalty: penalty}
}

// BusinessHours prefers placements inside window; penalty scales with the share outside.
func BusinessHours(window DayWindow, penalty float64) Constraint {
	return Constraint{Name: "business_hours", Type: ConstraintTypeSoft, Kind: KindBusinessHours, Window: window, Penalty: penalty}
}

// FocusTimeProtection keeps non-focus work out of the daily focus window.
func FocusTimeProtection(ct ConstraintType, window DayWindow, penalty float64) Constraint {
	return Constraint{Name: "focus_time_protection", Type: ct, Kind: KindFocusTimeProtection, Window: window, Penalty: penalty}
}

// DaysOfWeek restricts placements to the given weekdays.
func DaysOfWeek(ct ConstraintType, penalty float64, days ...time.Weekday) Constraint {
	return Constraint{Name: "day_of_week", Type: ct, Kind: KindDayOfWeek, Days: days, Penalty: penalty}
}

// Custom references a predicate registered under name.
func Custom(name string, ct ConstraintType, predicate string, penalty float64, params map[string]string) Constraint {
	return Constraint{Name: name, Type: ct, Kind: KindCustom, Predicate: predicate, Penalty: penalty, Params: params}
}

// Satisfied evaluates the constraint. Unknown kinds, unregistered predicates
// and unparseable rules are never satisfied.
func (c Constraint) Satisfied(p Placement, ctx *EvaluationContext) bool {
	loc := ctx.location()
	switch c.Kind {
	case KindNoDoubleBooking:
		return len(ctx.overlapping(p)) == 0
	case KindWorkingHours:
		return withinWindow(p.Interval, c.Window, loc)
	case KindMinDuration:
		return p.Interval.Duration() >= c.Duration
	case KindMaxDuration:
		return p.Interval.Duration() <= c.Duration
	case KindDeadline:
		return c.Deadline != nil && !p.Interval.End.After(*c.Deadline)
	case KindAttendeeAvailability:
		want := c.Attendees
		if len(want) == 0 {
			want = p.Attendees
		}
		for _, e := range ctx.overlapping(p) {
			if len(intersectRefs(want, e.Attendees)) > 0 {
				return false
			}
		}
		return true
	case KindResourceAvailability:
		want := c.Resources
		if len(want) == 0 {
			want = p.Resources
		}
		for _, e := range ctx.overlapping(p) {
			if len(intersectRefs(want, e.ResourceRefs)) > 0 {
				return false
			}
		}
		return true
	case KindRecurrencePattern:
		ok, err := conformsToRule(c.RRule, p.Interval.Start.In(loc))
		return err == nil && ok
	case KindBusinessHours:
		return withinWindow(p.Interval, c.Window, loc)
	case KindFocusTimeProtection:
		if p.Category == CategoryFocus {
			return true
		}
		start := p.Interval.Start.In(loc)
		return !p.Interval.Overlaps(c.Window.On(start))
	case KindDayOfWeek:
		return slices.Contains(c.Days, p.Interval.Start.In(loc).Weekday())
	case KindCustom:
		pred, ok := ctx.predicate(c.Predicate)
		return ok && pred.Evaluate(p, ctx, c)
	}
	return false
}

// PenaltyFor returns 0 when satisfied, otherwise the violation cost.
func (c Constraint) PenaltyFor(p Placement, ctx *EvaluationContext) float64 {
	if c.Satisfied(p, ctx) {
		return 0
	}
	switch c.Kind {
	case KindMaxDuration:
		if c.Duration <= 0 {
			return c.Penalty
		}
		// Penalty proportional to how much over the limit
		over := p.Interval.Duration() - c.Duration
		return c.Penalty * float64(over) / float64(c.Duration)
	case KindBusinessHours:
		outside := outsideFraction(p.Interval, c.Window, ctx.location())
		return c.Penalty * outside
	case KindCustom:
		if pred, ok := ctx.predicate(c.Predicate); ok && pred.Penalty != nil {
			return pred.Penalty(p, ctx, c)
		}
	}
	return c.Penalty
}

// Describe renders the constraint for reasoning strings.
func (c Constraint) Describe() string {
	name := c.Name
	if name == "" {
		name = string(c.Kind)
	}
	return fmt.Sprintf("%s (%s)", name, c.Type)
}

func withinWindow(iv TimeInterval, w DayWindow, loc *time.Location) bool {
	if w.IsZero() {
		return true
	}
	day := w.On(iv.Start.In(loc))
	return day.Covers(iv)
}

func outsideFraction(iv TimeInterval, w DayWindow, loc *time.Location) float64 {
	total := iv.Duration()
	if total <= 0 {
		return 0
	}
	inside, ok := iv.Intersect(w.On(iv.Start.In(loc)))
	if !ok {
		return 1
	}
	return math.Max(0, float64(total-inside.Duration())/float64(total))
}

func conformsToRule(rule string, start time.Time) (bool, error) {
	if strings.TrimSpace(rule) == "" {
		return false, ErrInvalidRecurrence
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	if !strings.Contains(strings.ToUpper(rule), "DTSTART") {
		r.DTStart(dayStart)
	}
	timed := strings.Contains(strings.ToUpper(rule), "BYHOUR")
	dayEnd := dayStart.AddDate(0, 0, 1)
	for _, occ := range r.Between(dayStart, dayEnd, true) {
		if !occ.Before(dayEnd) {
			continue
		}
		if !timed || occ.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

// ValidationResult is the outcome of hard-constraint validation.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	ViolatedHard []string `json:"violated_hard,omitempty"`
}

// ConstraintSet holds a collection of constraints
type ConstraintSet struct {
	constraints []Constraint
}

// NewConstraintSet creates a new constraint set
func NewConstraintSet(constraints ...Constraint) *ConstraintSet {
	return &ConstraintSet{constraints: slices.Clone(constraints)}
}

// DefaultHardConstraints is the battery every placement must pass. A zero
// working-hours window drops the working-hours check, and a non-positive
// maxDuration falls back to DefaultMaxDuration.
func DefaultHardConstraints(workingHours DayWindow, maxDuration time.Duration) []Constraint {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	out := []Constraint{NoDoubleBooking()}
	if !workingHours.IsZero() {
		out = append(out, WorkingHours(workingHours))
	}
	return append(out, MinDuration(DefaultMinDuration), MaxDuration(maxDuration))
}

// Add adds a constraint to the set
func (cs *ConstraintSet) Add(c ...Constraint) {
	cs.constraints = append(cs.constraints, c...)
}

// Constraints returns a copy of the set's constraints.
func (cs *ConstraintSet) Constraints() []Constraint {
	return slices.Clone(cs.constraints)
}

// Validate evaluates every hard constraint, including extra, without short-circuiting.
func (cs *ConstraintSet) Validate(p Placement, ctx *EvaluationContext, extra ...Constraint) ValidationResult {
	result := ValidationResult{Valid: true}
	if !p.Interval.Valid() {
		result.Valid = false
		result.ViolatedHard = append(result.ViolatedHard, "valid_interval")
	}
	for _, c := range cs.all(extra) {
		if c.Type != ConstraintTypeHard {
			continue
		}
		if !c.Satisfied(p, ctx) {
			result.Valid = false
			result.ViolatedHard = append(result.ViolatedHard, c.Name)
		}
	}
	return result
}

// SoftPenalty sums soft-constraint penalties and explains each deduction.
func (cs *ConstraintSet) SoftPenalty(p Placement, ctx *EvaluationContext, extra ...Constraint) (float64, []string) {
	total := 0.0
	var reasons []string
	for _, c := range cs.all(extra) {
		if c.Type != ConstraintTypeSoft {
			continue
		}
		pen := c.PenaltyFor(p, ctx)
		if pen <= 0 {
			continue
		}
		total += pen
		reasons = append(reasons, fmt.Sprintf("-%.0f %s", pen, c.Name))
	}
	return total, reasons
}

func (cs *ConstraintSet) all(extra []Constraint) []Constraint {
	if cs == nil {
		return extra
	}
	if len(extra) == 0 {
		return cs.constraints
	}
	out := make([]Constraint, 0, len(cs.constraints)+len(extra))
	out = append(out, cs.constraints...)
	return append(out, extra...)
}

// ScoreFromPenalty converts a soft penalty total into a 0..100 integer score.
func ScoreFromPenalty(total float64) int {
	score := math.Round(100 - total)
	return int(math.Max(0, math.Min(100, score)))
}
