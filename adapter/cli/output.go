package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// notConfigured is printed when a command runs before the app is wired.
const notConfigured = "slotwise is not initialized; check SLOTWISE_STORE and the database settings."

// RequireApp returns the app or prints why it is missing.
func RequireApp(cmd *cobra.Command) (*App, bool) {
	a := GetApp()
	if a == nil {
		fmt.Fprintln(cmd.OutOrStdout(), notConfigured)
		return nil, false
	}
	return a, true
}

// PrintJSON writes v as indented JSON.
func PrintJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Rule prints a horizontal separator.
func Rule(cmd *cobra.Command, width int) {
	fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("-", width))
}

// FormatDuration renders d as "1h 30m".
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 && minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}

// ParseDate parses YYYY-MM-DD in loc; empty means today.
func ParseDate(value string, now time.Time, loc *time.Location) (time.Time, error) {
	if value == "" {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
	}
	return d, nil
}

// AtClock combines a date with an HH:MM clock time.
func AtClock(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time format %q, use HH:MM: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// ParseRange reads a --from/--to date pair. An empty to spans days from from.
func ParseRange(from, to string, days int, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	start, err := ParseDate(from, now, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to == "" {
		return start, start.AddDate(0, 0, days), nil
	}
	end, err := ParseDate(to, now, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	// --to is inclusive.
	end = end.AddDate(0, 0, 1)
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must not be before --from")
	}
	return start, end, nil
}
