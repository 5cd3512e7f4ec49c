package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// EngineState is the phase a scheduling run is in.
type EngineState string

const (
	StateIdle      EngineState = "idle"
	StateSearching EngineState = "searching"
	StateScoring   EngineState = "scoring"
	StateRanked    EngineState = "ranked"
)

// ScheduleOptions tune one scheduling run.
type ScheduleOptions struct {
	Now             time.Time
	HorizonDays     int
	SlotStep        time.Duration
	MaxSuggestions  int
	MaxAlternatives int
	// MaxCandidates bounds how many placements are evaluated.
	MaxCandidates int
	PreferMorning bool
	// MaxDuration caps a placement's length; zero uses domain.DefaultMaxDuration.
	MaxDuration time.Duration
	SlotFinder  SlotFinderConfig
	// Constraints are evaluated in addition to the default battery.
	Constraints []domain.Constraint
	Registry    *domain.PredicateRegistry
}

// DefaultScheduleOptions returns the standard options anchored at now.
func DefaultScheduleOptions(now time.Time) ScheduleOptions {
	return ScheduleOptions{
		Now:             now,
		HorizonDays:     7,
		SlotStep:        15 * time.Minute,
		MaxSuggestions:  5,
		MaxAlternatives: 5,
		MaxCandidates:   2000,
		PreferMorning:   true,
		MaxDuration:     domain.DefaultMaxDuration,
		SlotFinder:      DefaultSlotFinderConfig(),
	}
}

func (o ScheduleOptions) withDefaults() ScheduleOptions {
	d := DefaultScheduleOptions(o.Now)
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = d.HorizonDays
	}
	if o.SlotStep <= 0 {
		o.SlotStep = d.SlotStep
	}
	if o.MaxSuggestions <= 0 {
		o.MaxSuggestions = d.MaxSuggestions
	}
	if o.MaxAlternatives < 0 {
		o.MaxAlternatives = 0
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = d.MaxCandidates
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = d.MaxDuration
	}
	return o
}

// ConstraintFailure tallies how often a hard constraint rejected a candidate.
type ConstraintFailure struct {
	Constraint string `json:"constraint"`
	Rejected   int    `json:"rejected"`
	Message    string `json:"message"`
}

// ScheduleResult is the engine's answer to a scheduling request.
type ScheduleResult struct {
	Success            bool                     `json:"success"`
	State              EngineState              `json:"state"`
	Suggestions        []domain.Candidate       `json:"suggestions"`
	AlternativeOptions []domain.Candidate       `json:"alternative_options"`
	Conflicts          []ConstraintFailure      `json:"conflicts,omitempty"`
	ValidationErrors   []domain.ValidationError `json:"validation_errors,omitempty"`
	Evaluated          int                      `json:"evaluated"`
}

// SchedulingEngine finds and ranks placements for new requests.
type SchedulingEngine struct {
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewSchedulingEngine creates a scheduling engine.
func NewSchedulingEngine(logger *slog.Logger, metrics observability.Metrics) *SchedulingEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &SchedulingEngine{logger: logger, metrics: metrics}
}

// Schedule proposes placements for request against the snapshot. Every
// suggestion satisfies all hard constraints. Failure and malformed requests
// are reported in the result; errors are reserved for cancellation.
func (e *SchedulingEngine) Schedule(
	ctx context.Context,
	snapshot []domain.ScheduledEntity,
	request domain.SchedulingRequest,
	opts ScheduleOptions,
) (*ScheduleResult, error) {
	started := time.Now()
	defer func() {
		e.metrics.Timing(observability.MetricScheduleDuration, time.Since(started))
	}()
	e.metrics.Counter(observability.MetricScheduleRequests, 1)

	opts = opts.withDefaults()
	result := &ScheduleResult{
		State:              StateIdle,
		Suggestions:        []domain.Candidate{},
		AlternativeOptions: []domain.Candidate{},
	}

	if errs := request.Validate(); len(errs) > 0 {
		result.ValidationErrors = errs
		e.logger.Info("rejected scheduling request",
			"request", request.Title,
			"errors", domain.JoinValidationErrors(errs),
		)
		return result, nil
	}

	index := domain.NewIntervalIndex(snapshot...)
	evalCtx := &domain.EvaluationContext{
		Index:    index,
		Location: opts.SlotFinder.location(),
		Registry: opts.Registry,
	}
	set := domain.NewConstraintSet(e.battery(opts)...)
	extra := requestConstraints(request)

	e.transition(result, StateSearching, "request", request.Title)
	window := searchWindow(request, opts)
	finder := NewSlotFinder(index, e.logger)

	placements, gaps := e.expand(finder, window, request, opts)
	if len(gaps) == 0 {
		e.transition(result, StateRanked, "request", request.Title)
		result.Conflicts = []ConstraintFailure{{
			Constraint: "availability",
			Message: fmt.Sprintf("no free window of %d minutes between %s and %s",
				request.DurationMinutes, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339)),
		}}
		e.metrics.Counter(observability.MetricScheduleFailures, 1)
		return result, nil
	}

	e.transition(result, StateScoring, "placements", len(placements))
	tally := make(map[string]int)
	survivors := make([]domain.Candidate, 0, len(placements))
	for _, pl := range placements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Evaluated++
		p := request.PlacementAt(pl.slot)
		v := set.Validate(p, evalCtx, extra...)
		if !v.Valid {
			for _, name := range v.ViolatedHard {
				tally[name]++
			}
			continue
		}
		survivors = append(survivors, e.score(p, pl.gap, set, evalCtx, extra, request, opts))
	}

	domain.SortCandidates(survivors)
	e.transition(result, StateRanked, "survivors", len(survivors))

	if len(survivors) == 0 {
		result.Conflicts = failures(tally, request)
		e.metrics.Counter(observability.MetricScheduleFailures, 1)
		e.logger.Info("no placement satisfies hard constraints",
			"request", request.Title,
			"evaluated", result.Evaluated,
			"limiting", result.Conflicts[0].Constraint,
		)
		return result, nil
	}

	result.Success = true
	n := min(opts.MaxSuggestions, len(survivors))
	result.Suggestions = slices.Clone(survivors[:n])
	rest := survivors[n:]
	result.AlternativeOptions = slices.Clone(rest[:min(opts.MaxAlternatives, len(rest))])
	return result, nil
}

func (e *SchedulingEngine) transition(result *ScheduleResult, to EngineState, args ...any) {
	e.logger.Debug("engine state",
		append([]any{"from", result.State, "to", to}, args...)...,
	)
	result.State = to
}

// battery is the hard default set plus any caller constraints.
func (e *SchedulingEngine) battery(opts ScheduleOptions) []domain.Constraint {
	var working domain.DayWindow
	if opts.SlotFinder.RespectWorkingHours {
		working = opts.SlotFinder.WorkingHours
	}
	return append(domain.DefaultHardConstraints(working, opts.MaxDuration), opts.Constraints...)
}

// requestConstraints turns request fields into hard constraints.
func requestConstraints(r domain.SchedulingRequest) []domain.Constraint {
	var out []domain.Constraint
	if r.Deadline != nil {
		out = append(out, domain.Deadline(*r.Deadline))
	}
	if len(r.Attendees) > 0 {
		out = append(out, domain.AttendeeAvailability(domain.ConstraintTypeHard, 0, r.Attendees...))
	}
	if len(r.ResourceRefs) > 0 {
		out = append(out, domain.ResourceAvailability(domain.ConstraintTypeHard, 0, r.ResourceRefs...))
	}
	return out
}

// searchWindow spans from now, or the earliest preferred window, to the
// later of the horizon and the deadline. Candidates past the deadline are
// left for the deadline constraint to reject so it shows up in the tally.
func searchWindow(r domain.SchedulingRequest, opts ScheduleOptions) domain.TimeInterval {
	start := opts.Now
	if aligned := start.Truncate(opts.SlotStep); aligned.Before(start) {
		start = aligned.Add(opts.SlotStep)
	}
	if len(r.PreferredWindows) > 0 {
		earliest := r.PreferredWindows[0].Start
		for _, w := range r.PreferredWindows[1:] {
			if w.Start.Before(earliest) {
				earliest = w.Start
			}
		}
		if earliest.After(start) {
			start = earliest
		}
	}
	end := start.AddDate(0, 0, opts.HorizonDays)
	if r.Deadline != nil && r.Deadline.After(end) {
		end = *r.Deadline
	}
	for _, w := range r.PreferredWindows {
		if r.Deadline == nil && w.End.After(end) {
			end = w.End
		}
	}
	return domain.TimeInterval{Start: start, End: end}
}

type placementCandidate struct {
	slot domain.TimeInterval
	gap  domain.TimeInterval
}

// expand steps through each free gap, honoring preferred windows. A flexible
// request falls back to the whole window when no preferred window has room.
func (e *SchedulingEngine) expand(
	finder *SlotFinder,
	window domain.TimeInterval,
	r domain.SchedulingRequest,
	opts ScheduleOptions,
) ([]placementCandidate, []domain.TimeInterval) {
	duration := r.Duration()
	gaps := CollectSlots(finder.FindSlots(window.Start, window.End, duration, opts.SlotFinder), 0)

	restricted := len(r.PreferredWindows) > 0
	out := e.stepGaps(gaps, duration, r.PreferredWindows, restricted, opts)
	if len(out) == 0 && restricted && r.Flexible {
		e.logger.Debug("no room in preferred windows, widening search", "request", r.Title)
		out = e.stepGaps(gaps, duration, nil, false, opts)
	}
	return out, gaps
}

func (e *SchedulingEngine) stepGaps(
	gaps []domain.TimeInterval,
	duration time.Duration,
	preferred []domain.TimeInterval,
	restricted bool,
	opts ScheduleOptions,
) []placementCandidate {
	var out []placementCandidate
	for _, gap := range gaps {
		starts := make([]time.Time, 0)
		for t := gap.Start; !t.Add(duration).After(gap.End); t = t.Add(opts.SlotStep) {
			starts = append(starts, t)
		}
		for _, w := range preferred {
			if !w.Start.Before(gap.Start) && !w.Start.Add(duration).After(gap.End) {
				starts = append(starts, w.Start)
			}
		}
		slices.SortFunc(starts, time.Time.Compare)
		starts = slices.CompactFunc(starts, time.Time.Equal)

		for _, s := range starts {
			slot := domain.TimeInterval{Start: s, End: s.Add(duration)}
			if restricted && !insideAny(slot, preferred) {
				continue
			}
			out = append(out, placementCandidate{slot: slot, gap: gap})
			if len(out) >= opts.MaxCandidates {
				return out
			}
		}
	}
	return out
}

func insideAny(slot domain.TimeInterval, windows []domain.TimeInterval) bool {
	for _, w := range windows {
		if w.Covers(slot) {
			return true
		}
	}
	return false
}

// score applies soft penalties and the morning preference for urgent work.
func (e *SchedulingEngine) score(
	p domain.Placement,
	gap domain.TimeInterval,
	set *domain.ConstraintSet,
	evalCtx *domain.EvaluationContext,
	extra []domain.Constraint,
	r domain.SchedulingRequest,
	opts ScheduleOptions,
) domain.Candidate {
	loc := opts.SlotFinder.location()
	reasons := []string{
		fmt.Sprintf("fits %d min in free window %s-%s", r.DurationMinutes,
			gap.Start.In(loc).Format("Mon 15:04"), gap.End.In(loc).Format("15:04")),
		"satisfies all hard constraints",
	}
	penalty, deductions := set.SoftPenalty(p, evalCtx, extra...)
	reasons = append(reasons, deductions...)

	if opts.PreferMorning && p.Priority <= 2 && p.Interval.Start.In(loc).Hour() >= 12 {
		penalty += 10
		reasons = append(reasons, "-10 prefer_morning")
	}
	score := domain.ScoreFromPenalty(penalty)
	reasons = append(reasons, fmt.Sprintf("score %d", score))
	return domain.Candidate{Slot: p.Interval, Score: score, Reasoning: reasons}
}

// failures orders the tally by rejection count, most limiting first.
func failures(tally map[string]int, r domain.SchedulingRequest) []ConstraintFailure {
	out := make([]ConstraintFailure, 0, len(tally))
	for name, n := range tally {
		msg := fmt.Sprintf("%s rejected %d candidate placements", name, n)
		if name == string(domain.KindDeadline) && r.Deadline != nil {
			msg = fmt.Sprintf("no free slot of %d minutes ends before the deadline %s",
				r.DurationMinutes, r.Deadline.Format(time.RFC3339))
		}
		out = append(out, ConstraintFailure{Constraint: name, Rejected: n, Message: msg})
	}
	if len(out) == 0 {
		out = append(out, ConstraintFailure{
			Constraint: "preferred_windows",
			Message:    "no free slot falls inside a preferred window",
		})
	}
	slices.SortFunc(out, func(a, b ConstraintFailure) int {
		if a.Rejected != b.Rejected {
			return b.Rejected - a.Rejected
		}
		if a.Constraint < b.Constraint {
			return -1
		}
		if a.Constraint > b.Constraint {
			return 1
		}
		return 0
	})
	return out
}
