// Package caldav reads events from a CalDAV server (Fastmail, iCloud,
// Nextcloud) and hands them to the ICS importer as one calendar.
package caldav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

// Common CalDAV server URLs.
const (
	AppleCalDAVURL    = "https://caldav.icloud.com"
	FastmailCalDAVURL = "https://caldav.fastmail.com"
)

// ErrNoCalendars is returned when discovery finds no calendar collection.
var ErrNoCalendars = errors.New("caldav: no calendars found")

// Config identifies the server and calendar to read.
type Config struct {
	URL      string
	Username string
	// Password is usually an app-specific password.
	Password string
	// CalendarPath skips discovery when set.
	CalendarPath string
	Timeout      time.Duration
}

// Source fetches events in a time range.
type Source struct {
	client       *caldav.Client
	calendarPath string
	logger       *slog.Logger
}

// NewSource creates a source. No request is made until Fetch.
func NewSource(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.URL == "" {
		return nil, errors.New("caldav: URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: cfg.Timeout}, cfg.Username, cfg.Password)
	client, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	return &Source{
		client:       client,
		calendarPath: cfg.CalendarPath,
		logger:       logger.With("component", "caldav"),
	}, nil
}

// Fetch queries VEVENTs overlapping [start, end) and returns them encoded as
// a single VCALENDAR.
func (s *Source) Fetch(ctx context.Context, start, end time.Time) (io.Reader, error) {
	path, err := s.findCalendarPath(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar: %w", err)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start.UTC(),
				End:   end.UTC(),
			}},
		},
	}

	objects, err := s.client.QueryCalendar(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}
	s.logger.DebugContext(ctx, "fetched calendar objects", "path", path, "objects", len(objects))

	body, err := Encode(Merge(objects))
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(body), nil
}

func (s *Source) findCalendarPath(ctx context.Context) (string, error) {
	if s.calendarPath != "" {
		return s.calendarPath, nil
	}

	principal, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := s.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	cals, err := s.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", ErrNoCalendars
	}

	// The first collection is the account default on the common servers.
	s.calendarPath = cals[0].Path
	return s.calendarPath, nil
}

// Merge combines the VEVENTs of every object into one calendar. Time zone
// definitions are kept once per TZID so floating TZID references resolve.
func Merge(objects []caldav.CalendarObject) *ical.Calendar {
	merged := ical.NewCalendar()
	merged.Props.SetText(ical.PropVersion, "2.0")
	merged.Props.SetText(ical.PropProductID, "-//slotwise//CalDAV import//EN")

	zones := make(map[string]bool)
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, child := range obj.Data.Children {
			switch child.Name {
			case ical.CompTimezone:
				tzid := child.Props.Get(ical.PropTimezoneID)
				if tzid == nil || zones[tzid.Value] {
					continue
				}
				zones[tzid.Value] = true
				merged.Children = append(merged.Children, child)
			case ical.CompEvent:
				merged.Children = append(merged.Children, child)
			}
		}
	}
	return merged
}

// Encode serializes cal in the iCalendar format.
func Encode(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if len(cal.Children) == 0 {
		// The encoder insists on at least one component.
		buf.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//slotwise//CalDAV import//EN\r\nEND:VCALENDAR\r\n")
		return buf.Bytes(), nil
	}
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}
