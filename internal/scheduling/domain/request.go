package domain

import (
	"strings"
	"time"
)

// SchedulingRequest asks the engine to place a new item.
// Relative dates must already be resolved to instants.
type SchedulingRequest struct {
	Title            string         `json:"title"`
	DurationMinutes  int            `json:"duration_minutes"`
	Category         Category       `json:"category"`
	Priority         int            `json:"priority"`
	Deadline         *time.Time     `json:"deadline,omitempty"`
	PreferredWindows []TimeInterval `json:"preferred_windows,omitempty"`
	Flexible         bool           `json:"flexible"`
	ResourceRefs     []string       `json:"resource_refs,omitempty"`
	Attendees        []string       `json:"attendees,omitempty"`
}

// Duration returns the requested length.
func (r SchedulingRequest) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// Validate reports every malformed field.
func (r SchedulingRequest) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, ValidationError{Field: "title", Message: "title is required"})
	}
	if r.DurationMinutes <= 0 {
		errs = append(errs, ValidationError{Field: "duration_minutes", Message: "duration must be positive"})
	}
	if r.Priority != 0 && (r.Priority < PriorityHighest || r.Priority > PriorityLowest) {
		errs = append(errs, ValidationError{Field: "priority", Message: "priority must be between 1 and 5"})
	}
	if r.Category != "" && !r.Category.Valid() {
		errs = append(errs, ValidationError{Field: "category", Message: "unknown category " + string(r.Category)})
	}
	for _, w := range r.PreferredWindows {
		if !w.Valid() {
			errs = append(errs, ValidationError{Field: "preferred_windows", Message: ErrInvalidTimeRange.Error()})
			break
		}
	}
	if r.Deadline != nil && r.Deadline.IsZero() {
		errs = append(errs, ValidationError{Field: "deadline", Message: "deadline must be a valid instant"})
	}
	return errs
}

// EffectivePriority defaults an unset priority to medium.
func (r SchedulingRequest) EffectivePriority() int {
	if r.Priority == 0 {
		return 3
	}
	return r.Priority
}

// PlacementAt builds the placement the request would occupy at iv.
func (r SchedulingRequest) PlacementAt(iv TimeInterval) Placement {
	category := r.Category
	if category == "" {
		category = CategoryTask
	}
	return Placement{
		Interval:  iv,
		Category:  category,
		Priority:  r.EffectivePriority(),
		Attendees: NormalizeRefs(r.Attendees),
		Resources: NormalizeRefs(r.ResourceRefs),
	}
}

// Candidate is a ranked placement suggestion.
type Candidate struct {
	Slot      TimeInterval `json:"slot"`
	Score     int          `json:"score"`
	Reasoning []string     `json:"reasoning"`
}

// SortCandidates orders by score descending, then earliest start.
func SortCandidates(cs []Candidate) {
	sortStable(cs, func(a, b Candidate) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return a.Slot.Start.Compare(b.Slot.Start)
	})
}
