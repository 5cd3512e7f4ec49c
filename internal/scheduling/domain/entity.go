package domain

import (
	"slices"
	"strings"
)

// Category classifies a scheduled entity.
type Category string

const (
	CategoryTask     Category = "task"
	CategoryMeeting  Category = "meeting"
	CategoryFocus    Category = "focus"
	CategoryHabit    Category = "habit"
	CategoryBreak    Category = "break"
	CategoryPersonal Category = "personal"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTask, CategoryMeeting, CategoryFocus, CategoryHabit, CategoryBreak, CategoryPersonal:
		return true
	}
	return false
}

// Priority bounds. 1 = urgent, 5 = none.
const (
	PriorityHighest = 1
	PriorityLowest  = 5
)

// ScheduledEntity is a time-bound item owned by the caller.
// The engine only ever proposes new intervals for it.
type ScheduledEntity struct {
	ID           string       `json:"id"`
	Title        string       `json:"title,omitempty"`
	Interval     TimeInterval `json:"interval"`
	Category     Category     `json:"category"`
	Priority     int          `json:"priority"`
	ResourceRefs []string     `json:"resource_refs,omitempty"`
	Attendees    []string     `json:"attendees,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
}

// Validate reports every structural problem with the entity.
func (e ScheduledEntity) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(e.ID) == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "id is required"})
	}
	if !e.Interval.Valid() {
		errs = append(errs, ValidationError{Field: "interval", Message: ErrInvalidTimeRange.Error()})
	}
	if e.Priority < PriorityHighest || e.Priority > PriorityLowest {
		errs = append(errs, ValidationError{Field: "priority", Message: "priority must be between 1 and 5"})
	}
	if e.Category != "" && !e.Category.Valid() {
		errs = append(errs, ValidationError{Field: "category", Message: "unknown category " + string(e.Category)})
	}
	return errs
}

// WithInterval returns a copy placed at iv.
func (e ScheduledEntity) WithInterval(iv TimeInterval) ScheduledEntity {
	e.Interval = iv
	return e.cloneRefs()
}

// WithResources returns a copy holding refs.
func (e ScheduledEntity) WithResources(refs []string) ScheduledEntity {
	c := e.cloneRefs()
	c.ResourceRefs = NormalizeRefs(refs)
	return c
}

// Clone returns a deep copy.
func (e ScheduledEntity) Clone() ScheduledEntity {
	return e.cloneRefs()
}

func (e ScheduledEntity) cloneRefs() ScheduledEntity {
	e.ResourceRefs = slices.Clone(e.ResourceRefs)
	e.Attendees = slices.Clone(e.Attendees)
	e.Tags = slices.Clone(e.Tags)
	return e
}

// HasTag reports whether the entity carries the tag (case-insensitive).
func (e ScheduledEntity) HasTag(tag string) bool {
	return slices.ContainsFunc(e.Tags, func(t string) bool { return strings.EqualFold(t, tag) })
}

// SharedResources returns resource ids held by both entities.
func (e ScheduledEntity) SharedResources(other ScheduledEntity) []string {
	return intersectRefs(e.ResourceRefs, other.ResourceRefs)
}

// SharedAttendees returns attendees present on both entities.
func (e ScheduledEntity) SharedAttendees(other ScheduledEntity) []string {
	return intersectRefs(e.Attendees, other.Attendees)
}

// NormalizeRefs trims, drops empties and deduplicates while keeping order.
func NormalizeRefs(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func intersectRefs(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, r := range b {
		set[r] = struct{}{}
	}
	var out []string
	for _, r := range NormalizeRefs(a) {
		if _, ok := set[r]; ok {
			out = append(out, r)
		}
	}
	return out
}
