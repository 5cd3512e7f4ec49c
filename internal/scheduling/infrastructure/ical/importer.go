// Package ical turns iCalendar feeds into entity snapshots for the engine.
package ical

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// ErrEmptyCalendar is returned by ImportBytes for an empty payload.
var ErrEmptyCalendar = errors.New("empty calendar payload")

// Skip reasons.
const (
	SkipRecurring   = "recurring"
	SkipAllDay      = "all_day"
	SkipCancelled   = "cancelled"
	SkipTransparent = "transparent"
	SkipInvalid     = "invalid"
)

// SkippedEvent is a VEVENT the importer did not turn into an entity.
type SkippedEvent struct {
	UID     string `json:"uid"`
	Summary string `json:"summary,omitempty"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// ImportResult holds the imported snapshot.
type ImportResult struct {
	Entities []domain.ScheduledEntity `json:"entities"`
	Skipped  []SkippedEvent           `json:"skipped,omitempty"`
}

// Options controls how VEVENTs map to entities.
type Options struct {
	// Location is applied to every imported instant. Defaults to UTC.
	Location        *time.Location
	DefaultPriority int
	// IncludeAllDay imports all-day events as entities spanning the day.
	IncludeAllDay bool
}

// Importer parses ICS payloads.
type Importer struct {
	opts   Options
	logger *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(opts Options, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultPriority < domain.PriorityHighest || opts.DefaultPriority > domain.PriorityLowest {
		opts.DefaultPriority = 3
	}
	return &Importer{opts: opts, logger: logger.With("component", "ical_importer")}
}

// Import reads one calendar. Events that cannot become entities are listed
// in Skipped rather than failing the import; only an unparsable calendar is
// an error. Recurring events are skipped since expansion is out of scope.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	result := &ImportResult{Entities: make([]domain.ScheduledEntity, 0)}
	for _, ve := range cal.Events() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entity, skip := i.convert(ve)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		result.Entities = append(result.Entities, entity)
	}

	i.logger.InfoContext(ctx, "calendar imported",
		"entities", len(result.Entities),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (i *Importer) convert(ve *ics.VEvent) (domain.ScheduledEntity, *SkippedEvent) {
	uid := propValue(ve, ics.ComponentPropertyUniqueId)
	summary := propValue(ve, ics.ComponentPropertySummary)
	skip := func(reason, detail string) (domain.ScheduledEntity, *SkippedEvent) {
		return domain.ScheduledEntity{}, &SkippedEvent{UID: uid, Summary: summary, Reason: reason, Detail: detail}
	}

	if uid == "" {
		return skip(SkipInvalid, "missing UID")
	}
	if propValue(ve, ics.ComponentPropertyRrule) != "" {
		return skip(SkipRecurring, "")
	}
	if strings.EqualFold(propValue(ve, ics.ComponentPropertyStatus), "CANCELLED") {
		return skip(SkipCancelled, "")
	}
	if strings.EqualFold(propValue(ve, ics.ComponentPropertyTransp), "TRANSPARENT") {
		return skip(SkipTransparent, "")
	}

	allDay := isAllDay(ve.GetProperty(ics.ComponentPropertyDtStart))
	if allDay && !i.opts.IncludeAllDay {
		return skip(SkipAllDay, "")
	}

	var start, end time.Time
	var err error
	if allDay {
		if start, err = ve.GetAllDayStartAt(); err != nil {
			return skip(SkipInvalid, "DTSTART: "+err.Error())
		}
		start, end = i.dayBounds(start)
	} else {
		if start, err = ve.GetStartAt(); err != nil {
			return skip(SkipInvalid, "DTSTART: "+err.Error())
		}
		if end, err = ve.GetEndAt(); err != nil {
			return skip(SkipInvalid, "DTEND: "+err.Error())
		}
	}

	interval, err := domain.NewTimeInterval(start.In(i.opts.Location), end.In(i.opts.Location))
	if err != nil {
		return skip(SkipInvalid, err.Error())
	}

	attendees := make([]string, 0)
	for _, a := range ve.Attendees() {
		if email := strings.ToLower(strings.TrimSpace(a.Email())); email != "" {
			attendees = append(attendees, email)
		}
	}

	entity := domain.ScheduledEntity{
		ID:        uid,
		Title:     summary,
		Interval:  interval,
		Category:  domain.CategoryPersonal,
		Priority:  i.priority(propValue(ve, ics.ComponentPropertyPriority)),
		Attendees: domain.NormalizeRefs(attendees),
	}
	if loc := propValue(ve, ics.ComponentPropertyLocation); loc != "" {
		entity.ResourceRefs = domain.NormalizeRefs([]string{loc})
	}
	if len(entity.Attendees) > 0 {
		entity.Category = domain.CategoryMeeting
	}
	for _, tag := range strings.Split(propValue(ve, ics.ComponentPropertyCategories), ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if c := domain.Category(tag); c.Valid() {
			entity.Category = c
		}
		entity.Tags = append(entity.Tags, tag)
	}
	entity.Tags = domain.NormalizeRefs(entity.Tags)

	if errs := entity.Validate(); len(errs) > 0 {
		return skip(SkipInvalid, domain.JoinValidationErrors(errs))
	}
	return entity, nil
}

// priority maps RFC 5545 PRIORITY (1 highest .. 9 lowest, 0 undefined)
// onto the 1..5 scale.
func (i *Importer) priority(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 || n > 9 {
		return i.opts.DefaultPriority
	}
	return (n + 1) / 2
}

func (i *Importer) dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, i.opts.Location)
	return start, start.AddDate(0, 0, 1)
}

func isAllDay(p *ics.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propValue(ve *ics.VEvent, prop ics.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// ImportBytes is Import for an in-memory payload.
func (i *Importer) ImportBytes(ctx context.Context, body []byte) (*ImportResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyCalendar
	}
	return i.Import(ctx, bytes.NewReader(body))
}
