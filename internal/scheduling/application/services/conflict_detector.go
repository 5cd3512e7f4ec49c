package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
	"github.com/google/uuid"
)

// Base penalties per severity; overlap length adds up to 10 on top.
var severityPenalty = map[domain.Severity]float64{
	domain.SeverityCritical: 100,
	domain.SeverityHigh:     75,
	domain.SeverityMedium:   40,
	domain.SeverityLow:      15,
}

// ConflictDetectorConfig configures which audits run.
type ConflictDetectorConfig struct {
	// AttendeeOverlapIsConflict treats a shared attendee as a shared resource.
	AttendeeOverlapIsConflict bool
	// BusinessHours enables the outside-business-hours audit when set.
	BusinessHours *domain.DayWindow
	// FocusWindow enables the meeting-in-focus-time audit when set.
	FocusWindow *domain.DayWindow
	MaxDuration time.Duration
	Location    *time.Location
}

// DefaultConflictDetectorConfig returns the default audit configuration.
func DefaultConflictDetectorConfig() ConflictDetectorConfig {
	business := domain.NewDayWindow(9, 0, 17, 0)
	return ConflictDetectorConfig{
		AttendeeOverlapIsConflict: true,
		BusinessHours:             &business,
		MaxDuration:               domain.DefaultMaxDuration,
		Location:                  time.UTC,
	}
}

// ConflictDetector audits a snapshot for existing violations.
type ConflictDetector struct {
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewConflictDetector creates a conflict detector.
func NewConflictDetector(logger *slog.Logger, metrics observability.Metrics) *ConflictDetector {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &ConflictDetector{logger: logger, metrics: metrics}
}

// DetectConflicts returns every violation in entities, sorted by penalty
// descending then earliest affected start. Each overlapping pair is
// reported once.
func (d *ConflictDetector) DetectConflicts(
	ctx context.Context,
	entities []domain.ScheduledEntity,
	cfg ConflictDetectorConfig,
) ([]domain.ConflictViolation, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	violations := make([]domain.ConflictViolation, 0)

	valid := make([]domain.ScheduledEntity, 0, len(entities))
	for _, e := range entities {
		if errs := e.Validate(); len(errs) > 0 {
			violations = append(violations, newViolation(
				domain.ConstraintTypeHard, domain.SeverityHigh, domain.RuleInvalidInterval,
				fmt.Sprintf("%q is malformed: %s", e.Title, domain.JoinValidationErrors(errs)),
				0, e,
			))
			continue
		}
		valid = append(valid, e)
	}

	// Sweep in start order; only entities starting before a's end can overlap it.
	slices.SortStableFunc(valid, func(a, b domain.ScheduledEntity) int {
		if c := a.Interval.Start.Compare(b.Interval.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	for i := range valid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a := valid[i]
		for j := i + 1; j < len(valid); j++ {
			b := valid[j]
			if !b.Interval.Start.Before(a.Interval.End) {
				break
			}
			if v, ok := d.pairViolation(a, b, cfg); ok {
				violations = append(violations, v)
			}
		}
		violations = append(violations, d.singleViolations(a, cfg, loc)...)
	}

	domain.SortViolations(violations)
	d.metrics.Counter(observability.MetricConflictsDetected, int64(len(violations)))
	d.logger.Debug("conflict audit complete",
		"entities", len(entities),
		"violations", len(violations),
	)
	return violations, nil
}

func (d *ConflictDetector) pairViolation(a, b domain.ScheduledEntity, cfg ConflictDetectorConfig) (domain.ConflictViolation, bool) {
	overlap, ok := a.Interval.Intersect(b.Interval)
	if !ok {
		return domain.ConflictViolation{}, false
	}
	bonus := min(float64(overlap.Minutes()), 240) / 24

	if shared := a.SharedResources(b); len(shared) > 0 {
		return newViolation(
			domain.ConstraintTypeHard, domain.SeverityCritical, domain.RuleDoubleBooking,
			fmt.Sprintf("%q and %q both book %s for %d minutes from %s",
				a.Title, b.Title, strings.Join(shared, ", "), overlap.Minutes(), overlap.Start.Format(time.RFC3339)),
			bonus, a, b,
		), true
	}
	if !cfg.AttendeeOverlapIsConflict {
		return domain.ConflictViolation{}, false
	}
	if shared := a.SharedAttendees(b); len(shared) > 0 {
		return newViolation(
			domain.ConstraintTypeHard, domain.SeverityHigh, domain.RuleAttendeeClash,
			fmt.Sprintf("%s would attend %q and %q at once for %d minutes",
				strings.Join(shared, ", "), a.Title, b.Title, overlap.Minutes()),
			bonus, a, b,
		), true
	}
	return domain.ConflictViolation{}, false
}

func (d *ConflictDetector) singleViolations(e domain.ScheduledEntity, cfg ConflictDetectorConfig, loc *time.Location) []domain.ConflictViolation {
	var out []domain.ConflictViolation
	p := domain.Placement{EntityID: e.ID, Interval: e.Interval, Category: e.Category, Priority: e.Priority}

	if cfg.BusinessHours != nil {
		c := domain.BusinessHours(*cfg.BusinessHours, severityPenalty[domain.SeverityLow])
		if !c.Satisfied(p, &domain.EvaluationContext{Location: loc}) {
			out = append(out, newViolation(
				domain.ConstraintTypeSoft, domain.SeverityLow, domain.RuleBusinessHours,
				fmt.Sprintf("%q runs outside business hours", e.Title),
				0, e,
			))
		}
	}
	if cfg.FocusWindow != nil && e.Category == domain.CategoryMeeting {
		c := domain.FocusTimeProtection(domain.ConstraintTypeSoft, *cfg.FocusWindow, severityPenalty[domain.SeverityMedium])
		if !c.Satisfied(p, &domain.EvaluationContext{Location: loc}) {
			out = append(out, newViolation(
				domain.ConstraintTypeSoft, domain.SeverityMedium, domain.RuleFocusTime,
				fmt.Sprintf("meeting %q intrudes on protected focus time", e.Title),
				0, e,
			))
		}
	}
	if cfg.MaxDuration > 0 && e.Interval.Duration() > cfg.MaxDuration {
		out = append(out, newViolation(
			domain.ConstraintTypeHard, domain.SeverityMedium, domain.RuleMaxDuration,
			fmt.Sprintf("%q lasts %d minutes, over the %d minute limit",
				e.Title, e.Interval.Minutes(), int(cfg.MaxDuration/time.Minute)),
			0, e,
		))
	}
	return out
}

func newViolation(
	ct domain.ConstraintType,
	severity domain.Severity,
	rule, justification string,
	bonus float64,
	entities ...domain.ScheduledEntity,
) domain.ConflictViolation {
	ids := make([]string, 0, len(entities))
	var earliest time.Time
	for i, e := range entities {
		ids = append(ids, e.ID)
		if i == 0 || e.Interval.Start.Before(earliest) {
			earliest = e.Interval.Start
		}
	}
	return domain.ConflictViolation{
		ID:            uuid.NewString(),
		Type:          ct,
		Severity:      severity,
		Rule:          rule,
		EntityIDs:     ids,
		Justification: justification,
		Penalty:       severityPenalty[severity] + bonus,
		EarliestStart: earliest,
	}
}
