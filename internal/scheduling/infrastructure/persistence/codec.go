package persistence

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// timeLayout is fixed width so that SQLite text comparison orders instants.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func encodeRefs(refs []string) (string, error) {
	if refs == nil {
		refs = []string{}
	}
	b, err := json.Marshal(refs)
	return string(b), err
}

func decodeRefs(s string) ([]string, error) {
	var refs []string
	if err := json.Unmarshal([]byte(s), &refs); err != nil {
		return nil, fmt.Errorf("invalid stored refs: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return refs, nil
}

func sortByStart(entities []domain.ScheduledEntity) {
	slices.SortFunc(entities, func(a, b domain.ScheduledEntity) int {
		if c := a.Interval.Start.Compare(b.Interval.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
