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

// Confidence levels for generated remediations.
const (
	confidenceCleanMove   = 0.9
	confidenceNoisyMove   = 0.7
	confidenceReassign    = 0.75
	confidenceResize      = 0.6
	confidenceTrimToMax   = 0.8
	confidenceFloor       = 0.3
	otherSideMoveDiscount = 0.85
)

// SolutionOptions configure remediation search.
type SolutionOptions struct {
	// Now keeps moves out of the past when set.
	Now             time.Time
	SlotFinder      SlotFinderConfig
	HorizonDays     int
	MaxPerViolation int
	// MaxDuration is the length over-long entities are trimmed to; zero uses
	// domain.DefaultMaxDuration.
	MaxDuration time.Duration
	// Constraints are extra hard constraints a moved entity must pass.
	Constraints []domain.Constraint
	// Preferences are soft constraints that lower a move's confidence.
	Preferences []domain.Constraint
	// AlternativeResources lists interchangeable resources, keyed by resource id.
	AlternativeResources map[string][]string
	Registry             *domain.PredicateRegistry
}

// DefaultSolutionOptions returns the standard remediation options.
func DefaultSolutionOptions() SolutionOptions {
	return SolutionOptions{
		SlotFinder:      DefaultSlotFinderConfig(),
		HorizonDays:     7,
		MaxPerViolation: 3,
		MaxDuration:     domain.DefaultMaxDuration,
	}
}

// SolutionGenerator proposes remediations for hard violations.
type SolutionGenerator struct {
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewSolutionGenerator creates a solution generator.
func NewSolutionGenerator(logger *slog.Logger, metrics observability.Metrics) *SolutionGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &SolutionGenerator{logger: logger, metrics: metrics}
}

type generation struct {
	byID       map[string]domain.ScheduledEntity
	index      *domain.IntervalIndex
	violations []domain.ConflictViolation
	opts       SolutionOptions
}

// Generate returns remediations for every hard violation, sorted by
// confidence then conflicts resolved. Soft violations get no solutions.
func (g *SolutionGenerator) Generate(
	ctx context.Context,
	entities []domain.ScheduledEntity,
	violations []domain.ConflictViolation,
	opts SolutionOptions,
) ([]domain.OptimizationSolution, error) {
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 7
	}
	if opts.MaxPerViolation <= 0 {
		opts.MaxPerViolation = 3
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = domain.DefaultMaxDuration
	}
	gen := &generation{
		byID:       make(map[string]domain.ScheduledEntity, len(entities)),
		index:      domain.NewIntervalIndex(entities...),
		violations: violations,
		opts:       opts,
	}
	for _, e := range entities {
		gen.byID[e.ID] = e
	}

	out := make([]domain.OptimizationSolution, 0)
	for _, v := range violations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !v.IsHard() {
			continue
		}
		var found []domain.OptimizationSolution
		switch v.Rule {
		case domain.RuleDoubleBooking, domain.RuleAttendeeClash:
			found = g.pairSolutions(gen, v)
		case domain.RuleMaxDuration:
			found = g.trimSolutions(gen, v)
		}
		domain.SortSolutions(found)
		if len(found) > opts.MaxPerViolation {
			found = found[:opts.MaxPerViolation]
		}
		for i := range found {
			found[i].ViolationID = v.ID
		}
		g.logger.Debug("remediations proposed",
			"violation", v.ID,
			"rule", v.Rule,
			"solutions", len(found),
		)
		out = append(out, found...)
	}

	domain.SortSolutions(out)
	g.metrics.Counter(observability.MetricSolutionsGenerated, int64(len(out)))
	return out, nil
}

func (g *SolutionGenerator) pairSolutions(gen *generation, v domain.ConflictViolation) []domain.OptimizationSolution {
	if len(v.EntityIDs) != 2 {
		return nil
	}
	a, okA := gen.byID[v.EntityIDs[0]]
	b, okB := gen.byID[v.EntityIDs[1]]
	if !okA || !okB {
		return nil
	}
	mover, stayer := a, b
	if movesFirst(b, a) {
		mover, stayer = b, a
	}

	var out []domain.OptimizationSolution
	if s, ok := g.moveSolution(gen, mover, 1); ok {
		out = append(out, s)
	}
	if s, ok := g.moveSolution(gen, stayer, otherSideMoveDiscount); ok {
		out = append(out, s)
	}
	if s, ok := g.resizeSolution(gen, a, b); ok {
		out = append(out, s)
	}
	if v.Rule == domain.RuleDoubleBooking {
		if s, ok := g.reassignSolution(gen, mover, stayer); ok {
			out = append(out, s)
		}
	}
	return out
}

// movesFirst reports whether x should yield to y: lower priority first,
// then the later booking, then id.
func movesFirst(x, y domain.ScheduledEntity) bool {
	if x.Priority != y.Priority {
		return x.Priority > y.Priority
	}
	if !x.Interval.Start.Equal(y.Interval.Start) {
		return x.Interval.Start.After(y.Interval.Start)
	}
	return x.ID > y.ID
}

// moveSolution relocates e to the feasible gap nearest its current start.
func (g *SolutionGenerator) moveSolution(gen *generation, e domain.ScheduledEntity, discount float64) (domain.OptimizationSolution, bool) {
	loc := gen.opts.SlotFinder.location()
	local := e.Interval.Start.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	from := dayStart
	if gen.opts.Now.After(from) {
		from = gen.opts.Now
	}
	duration := e.Interval.Duration()

	cfg := gen.opts.SlotFinder
	cfg.ExcludeIDs = map[string]bool{e.ID: true}
	finder := NewSlotFinder(gen.index, g.logger)

	evalCtx := &domain.EvaluationContext{
		Index:    gen.index,
		Location: loc,
		Registry: gen.opts.Registry,
		Ignore:   cfg.ExcludeIDs,
	}
	set := domain.NewConstraintSet(moveBattery(cfg)...)
	p := domain.Placement{
		EntityID:  e.ID,
		Category:  e.Category,
		Priority:  e.Priority,
		Attendees: e.Attendees,
		Resources: e.ResourceRefs,
	}

	var best domain.TimeInterval
	var bestShift time.Duration
	found := false
	for gap := range finder.FindSlots(from, dayStart.AddDate(0, 0, gen.opts.HorizonDays), duration, cfg) {
		start := clampTime(e.Interval.Start, gap.Start, gap.End.Add(-duration))
		p.Interval = domain.TimeInterval{Start: start, End: start.Add(duration)}
		if p.Interval.Equal(e.Interval) {
			continue
		}
		if !set.Validate(p, evalCtx, gen.opts.Constraints...).Valid {
			continue
		}
		shift := absDuration(start.Sub(e.Interval.Start))
		if !found || shift < bestShift {
			best, bestShift, found = p.Interval, shift, true
		}
	}
	if !found {
		return domain.OptimizationSolution{}, false
	}

	p.Interval = best
	penalty, _ := domain.NewConstraintSet(gen.opts.Preferences...).SoftPenalty(p, evalCtx)
	confidence := confidenceCleanMove
	if penalty > 0 {
		confidence = max(confidenceFloor, confidenceNoisyMove-penalty/200)
	}
	confidence *= priorityFactor(e.Priority) * discount

	op := domain.Operation{
		Kind:      domain.OperationMove,
		EntityID:  e.ID,
		From:      e.Interval,
		To:        best,
		Reasoning: fmt.Sprintf("move %q to the nearest free slot %s", e.Title, best.String()),
	}
	moved := e.WithInterval(best)
	return domain.NewOptimizationSolution(
		fmt.Sprintf("Move %q by %d minutes", e.Title, int(bestShift/time.Minute)),
		confidence, gen.resolvedBy(moved), op,
	), true
}

func moveBattery(cfg SlotFinderConfig) []domain.Constraint {
	out := []domain.Constraint{
		domain.NoDoubleBooking(),
		domain.AttendeeAvailability(domain.ConstraintTypeHard, 0),
		domain.ResourceAvailability(domain.ConstraintTypeHard, 0),
	}
	if cfg.RespectWorkingHours && !cfg.WorkingHours.IsZero() {
		out = append(out, domain.WorkingHours(cfg.WorkingHours))
	}
	return out
}

// resizeSolution ends the earlier entity where the later one starts.
func (g *SolutionGenerator) resizeSolution(gen *generation, a, b domain.ScheduledEntity) (domain.OptimizationSolution, bool) {
	earlier, later := a, b
	if b.Interval.Start.Before(a.Interval.Start) {
		earlier, later = b, a
	}
	if !later.Interval.Start.After(earlier.Interval.Start) {
		return domain.OptimizationSolution{}, false
	}
	target := domain.TimeInterval{Start: earlier.Interval.Start, End: later.Interval.Start}
	if target.Duration() < domain.DefaultMinDuration {
		return domain.OptimizationSolution{}, false
	}
	op := domain.Operation{
		Kind:      domain.OperationResize,
		EntityID:  earlier.ID,
		From:      earlier.Interval,
		To:        target,
		Reasoning: fmt.Sprintf("end %q when %q starts", earlier.Title, later.Title),
	}
	return domain.NewOptimizationSolution(
		fmt.Sprintf("Shorten %q to %d minutes", earlier.Title, target.Minutes()),
		confidenceResize, gen.resolvedBy(earlier.WithInterval(target)), op,
	), true
}

// reassignSolution swaps a shared resource for a free interchangeable one.
func (g *SolutionGenerator) reassignSolution(gen *generation, mover, stayer domain.ScheduledEntity) (domain.OptimizationSolution, bool) {
	if len(gen.opts.AlternativeResources) == 0 {
		return domain.OptimizationSolution{}, false
	}
	busy := make(map[string]bool)
	for _, e := range gen.index.QueryOverlapping(mover.Interval) {
		if e.ID == mover.ID {
			continue
		}
		for _, r := range e.ResourceRefs {
			busy[r] = true
		}
	}
	for _, shared := range mover.SharedResources(stayer) {
		for _, alt := range gen.opts.AlternativeResources[shared] {
			if busy[alt] || slices.Contains(mover.ResourceRefs, alt) {
				continue
			}
			refs := slices.Clone(mover.ResourceRefs)
			refs[slices.Index(refs, shared)] = alt
			op := domain.Operation{
				Kind:          domain.OperationReassign,
				EntityID:      mover.ID,
				From:          mover.Interval,
				To:            mover.Interval,
				FromResources: slices.Clone(mover.ResourceRefs),
				ToResources:   refs,
				Reasoning:     fmt.Sprintf("use %s instead of %s for %q", alt, shared, mover.Title),
			}
			return domain.NewOptimizationSolution(
				fmt.Sprintf("Reassign %q from %s to %s", mover.Title, shared, alt),
				confidenceReassign*priorityFactor(mover.Priority),
				gen.resolvedBy(mover.WithResources(refs)), op,
			), true
		}
	}
	return domain.OptimizationSolution{}, false
}

// trimSolutions shortens an over-long entity to the maximum duration.
func (g *SolutionGenerator) trimSolutions(gen *generation, v domain.ConflictViolation) []domain.OptimizationSolution {
	if len(v.EntityIDs) != 1 {
		return nil
	}
	limit := gen.opts.MaxDuration
	e, ok := gen.byID[v.EntityIDs[0]]
	if !ok || e.Interval.Duration() <= limit {
		return nil
	}
	target := domain.TimeInterval{Start: e.Interval.Start, End: e.Interval.Start.Add(limit)}
	op := domain.Operation{
		Kind:      domain.OperationResize,
		EntityID:  e.ID,
		From:      e.Interval,
		To:        target,
		Reasoning: fmt.Sprintf("trim %q to %d minutes", e.Title, target.Minutes()),
	}
	return []domain.OptimizationSolution{domain.NewOptimizationSolution(
		fmt.Sprintf("Trim %q to the maximum duration", e.Title),
		confidenceTrimToMax, 1, op,
	)}
}

// resolvedBy counts hard pair violations the changed entity would no longer cause.
func (gen *generation) resolvedBy(changed domain.ScheduledEntity) int {
	n := 0
	for _, v := range gen.violations {
		if !v.IsHard() || len(v.EntityIDs) != 2 || !v.Involves(changed.ID) {
			continue
		}
		otherID := v.EntityIDs[0]
		if otherID == changed.ID {
			otherID = v.EntityIDs[1]
		}
		other, ok := gen.byID[otherID]
		if !ok {
			continue
		}
		if !changed.Interval.Overlaps(other.Interval) ||
			(len(changed.SharedResources(other)) == 0 && len(changed.SharedAttendees(other)) == 0) {
			n++
		}
	}
	return n
}

// priorityFactor discounts moving important work: 1.0 for priority 5, 0.8 for 1.
func priorityFactor(priority int) float64 {
	priority = min(domain.PriorityLowest, max(domain.PriorityHighest, priority))
	return 0.8 + 0.05*float64(priority-1)
}

func clampTime(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
