package services

import (
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// SlotFinderConfig controls which parts of the day count as bookable.
type SlotFinderConfig struct {
	RespectWorkingHours bool
	WorkingHours        domain.DayWindow
	IncludeWeekends     bool
	// BufferMinutes pads every busy interval on both sides.
	BufferMinutes int
	// TimeOfDayFilter further restricts slots to a daily window when set.
	TimeOfDayFilter *domain.DayWindow
	Location        *time.Location
	// ExcludeIDs are treated as free, e.g. the entity being moved.
	ExcludeIDs map[string]bool
}

// DefaultSlotFinderConfig returns a 9 to 5, weekdays-only configuration.
func DefaultSlotFinderConfig() SlotFinderConfig {
	return SlotFinderConfig{
		RespectWorkingHours: true,
		WorkingHours:        domain.NewDayWindow(9, 0, 17, 0),
		IncludeWeekends:     false,
		BufferMinutes:       0,
		Location:            time.UTC,
	}
}

func (c SlotFinderConfig) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// SlotFinder enumerates free gaps over an interval index.
type SlotFinder struct {
	index  *domain.IntervalIndex
	logger *slog.Logger
}

// NewSlotFinder creates a slot finder over index.
func NewSlotFinder(index *domain.IntervalIndex, logger *slog.Logger) *SlotFinder {
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = domain.NewIntervalIndex()
	}
	return &SlotFinder{index: index, logger: logger}
}

// FindSlots yields maximal free gaps of at least duration, in chronological
// order. The sequence is lazy; stopping early skips the remaining days.
func (f *SlotFinder) FindSlots(rangeStart, rangeEnd time.Time, duration time.Duration, cfg SlotFinderConfig) iter.Seq[domain.TimeInterval] {
	return func(yield func(domain.TimeInterval) bool) {
		if duration <= 0 || !rangeEnd.After(rangeStart) {
			return
		}
		search := domain.TimeInterval{Start: rangeStart, End: rangeEnd}
		busy := f.busy(search, cfg)

		for seg := range allowedSegments(search, cfg) {
			cursor := seg.Start
			for _, b := range busy {
				if !b.End.After(seg.Start) || !b.Start.Before(seg.End) {
					continue
				}
				gapEnd := b.Start
				if gapEnd.After(seg.End) {
					gapEnd = seg.End
				}
				if gapEnd.Sub(cursor) >= duration {
					if !yield(domain.TimeInterval{Start: cursor, End: gapEnd}) {
						return
					}
				}
				if b.End.After(cursor) {
					cursor = b.End
				}
				if !cursor.Before(seg.End) {
					break
				}
			}
			if seg.End.Sub(cursor) >= duration {
				if !yield(domain.TimeInterval{Start: cursor, End: seg.End}) {
					return
				}
			}
		}
	}
}

// busy returns the padded busy intervals touching search, ordered by start.
func (f *SlotFinder) busy(search domain.TimeInterval, cfg SlotFinderConfig) []domain.TimeInterval {
	pad := time.Duration(cfg.BufferMinutes) * time.Minute
	query := domain.TimeInterval{Start: search.Start.Add(-pad), End: search.End.Add(pad)}

	found := f.index.QueryOverlapping(query)
	out := make([]domain.TimeInterval, 0, len(found))
	for _, e := range found {
		if cfg.ExcludeIDs[e.ID] {
			continue
		}
		out = append(out, domain.TimeInterval{
			Start: e.Interval.Start.Add(-pad),
			End:   e.Interval.End.Add(pad),
		})
	}
	f.logger.Debug("slot search",
		"range", search.String(),
		"busy", len(out),
	)
	return out
}

// allowedSegments yields the bookable parts of search day by day, merging
// segments that touch across midnight.
func allowedSegments(search domain.TimeInterval, cfg SlotFinderConfig) iter.Seq[domain.TimeInterval] {
	return func(yield func(domain.TimeInterval) bool) {
		loc := cfg.location()
		start := search.Start.In(loc)
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

		var pending *domain.TimeInterval
		for day.Before(search.End) {
			next := day.AddDate(0, 0, 1)
			for _, seg := range daySegments(day, next, search, cfg) {
				if pending != nil && pending.End.Equal(seg.Start) {
					pending.End = seg.End
					continue
				}
				if pending != nil && !yield(*pending) {
					return
				}
				s := seg
				pending = &s
			}
			day = next
		}
		if pending != nil {
			yield(*pending)
		}
	}
}

func daySegments(day, next time.Time, search domain.TimeInterval, cfg SlotFinderConfig) []domain.TimeInterval {
	if !cfg.IncludeWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
		return nil
	}
	seg := domain.TimeInterval{Start: day, End: next}
	if cfg.RespectWorkingHours && !cfg.WorkingHours.IsZero() {
		var ok bool
		if seg, ok = seg.Intersect(cfg.WorkingHours.On(day)); !ok {
			return nil
		}
	}
	if cfg.TimeOfDayFilter != nil && !cfg.TimeOfDayFilter.IsZero() {
		var ok bool
		if seg, ok = seg.Intersect(cfg.TimeOfDayFilter.On(day)); !ok {
			return nil
		}
	}
	seg, ok := seg.Intersect(search)
	if !ok {
		return nil
	}
	return []domain.TimeInterval{seg}
}

// CollectSlots drains a slot sequence, stopping after limit items when limit > 0.
func CollectSlots(seq iter.Seq[domain.TimeInterval], limit int) []domain.TimeInterval {
	if limit <= 0 {
		return slices.Collect(seq)
	}
	out := make([]domain.TimeInterval, 0, limit)
	for iv := range seq {
		out = append(out, iv)
		if len(out) == limit {
			break
		}
	}
	return out
}
