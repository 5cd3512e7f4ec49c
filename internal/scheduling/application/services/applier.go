package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

var (
	ErrEmptySolution = errors.New("solution has no operations")
	ErrNilToken      = errors.New("rollback token is required")
	ErrStaleEntity   = errors.New("entity changed since the solution was generated")
)

// EventPublisher publishes applier events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// ApplyOptions control a single apply.
type ApplyOptions struct {
	DryRun bool
	// Snapshot enables a no-double-booking re-check of the target intervals.
	Snapshot []domain.ScheduledEntity
	// Constraints are extra hard constraints every target must satisfy.
	Constraints []domain.Constraint
	Registry    *domain.PredicateRegistry
	Location    *time.Location
	// MaxDuration bounds resize targets; zero uses domain.DefaultMaxDuration.
	MaxDuration time.Duration
}

// ApplyResult reports the outcome of Apply.
type ApplyResult struct {
	Success           bool                  `json:"success"`
	DryRun            bool                  `json:"dry_run"`
	AppliedOperations []domain.Operation    `json:"applied_operations"`
	RollbackToken     *domain.RollbackToken `json:"rollback_token,omitempty"`
	Error             string                `json:"error,omitempty"`
	// FailedOperation is the index of the operation that failed, or -1.
	FailedOperation int `json:"failed_operation"`
}

// StaleEntity describes an entity undo refused to touch.
type StaleEntity struct {
	EntityID string              `json:"entity_id"`
	Expected domain.TimeInterval `json:"expected"`
	Actual   domain.TimeInterval `json:"actual"`
	Reason   string              `json:"reason"`
}

// UndoResult reports the outcome of Undo.
type UndoResult struct {
	Success           bool          `json:"success"`
	Partial           bool          `json:"partial"`
	AlreadyUndone     bool          `json:"already_undone"`
	RestoredEntityIDs []string      `json:"restored_entity_ids"`
	StaleEntityIDs    []string      `json:"stale_entity_ids"`
	Stale             []StaleEntity `json:"stale,omitempty"`
	// FailedEntityID names the entity whose restore failed, leaving the token pending.
	FailedEntityID string `json:"failed_entity_id,omitempty"`
}

// Applier executes solutions against a caller-owned store with
// all-or-nothing semantics and undoes them through rollback tokens.
type Applier struct {
	publisher EventPublisher
	logger    *slog.Logger
	metrics   observability.Metrics
	now       func() time.Time
}

// NewApplier creates an applier. A nil publisher disables events.
func NewApplier(publisher EventPublisher, logger *slog.Logger, metrics observability.Metrics) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Applier{
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// WithClock overrides the clock used for token and event timestamps.
func (a *Applier) WithClock(now func() time.Time) *Applier {
	a.now = now
	return a
}

// Apply validates every operation up front, then applies them in order.
// If any step fails, completed steps are reverted in reverse order and the
// result reports failure. A dry run validates without touching the store.
// The returned error is non-nil only when rollback itself failed.
func (a *Applier) Apply(
	ctx context.Context,
	store domain.EntityStore,
	solution domain.OptimizationSolution,
	opts ApplyOptions,
) (*ApplyResult, error) {
	result := &ApplyResult{
		DryRun:            opts.DryRun,
		AppliedOperations: []domain.Operation{},
		FailedOperation:   -1,
	}
	if err := a.prevalidate(solution, opts); err != nil {
		result.Error = err.Error()
		return result, nil
	}

	if opts.DryRun {
		result.Success = true
		result.AppliedOperations = slices.Clone(solution.Operations)
		a.logger.Info("dry run validated solution",
			"solution_id", solution.ID,
			"operations", len(solution.Operations),
		)
		return result, nil
	}

	token := domain.NewRollbackToken(solution.ID, a.now().UTC())
	for i, op := range solution.Operations {
		entry, err := a.applyOne(ctx, store, op)
		if err != nil {
			a.logger.Warn("operation failed, rolling back",
				"solution_id", solution.ID,
				"operation", i,
				"entity_id", op.EntityID,
				"error", err,
			)
			result.Error = err.Error()
			result.FailedOperation = i
			if rbErr := a.rollback(ctx, store, token); rbErr != nil {
				return result, fmt.Errorf("rollback after failed operation %d: %w", i, rbErr)
			}
			a.metrics.Counter(observability.MetricSolutionsRolledBack, 1)
			a.publish(ctx, domain.NewSolutionRolledBack(solution, err.Error(), a.now()))
			return result, nil
		}
		token.Record(entry)
		result.AppliedOperations = append(result.AppliedOperations, op)
	}

	result.Success = true
	result.RollbackToken = token
	a.metrics.Counter(observability.MetricSolutionsApplied, 1)
	a.logger.Info("solution applied",
		"solution_id", solution.ID,
		"token_id", token.ID,
		"operations", len(solution.Operations),
	)
	a.publish(ctx, domain.NewSolutionApplied(solution, token, a.now()))
	return result, nil
}

func (a *Applier) prevalidate(solution domain.OptimizationSolution, opts ApplyOptions) error {
	if len(solution.Operations) == 0 {
		return ErrEmptySolution
	}
	for i, op := range solution.Operations {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}

	set := domain.NewConstraintSet(opts.Constraints...)
	maxDuration := opts.MaxDuration
	if maxDuration <= 0 {
		maxDuration = domain.DefaultMaxDuration
	}
	bounds := []domain.Constraint{
		domain.MinDuration(domain.DefaultMinDuration),
		domain.MaxDuration(maxDuration),
	}

	var index *domain.IntervalIndex
	if opts.Snapshot != nil {
		set.Add(domain.NoDoubleBooking())
		index = domain.NewIntervalIndex(opts.Snapshot...)
	}
	evalCtx := &domain.EvaluationContext{Index: index, Location: opts.Location, Registry: opts.Registry}

	for i, op := range solution.Operations {
		if op.Kind == domain.OperationReassign {
			continue
		}
		p := domain.Placement{EntityID: op.EntityID, Interval: op.To}
		if index != nil {
			if current, ok := index.Get(op.EntityID); ok {
				p.Category, p.Priority = current.Category, current.Priority
				p.Attendees, p.Resources = current.Attendees, current.ResourceRefs
				// Later operations see earlier targets.
				index.Insert(current.WithInterval(op.To))
			}
		}
		var extra []domain.Constraint
		if op.Kind == domain.OperationResize {
			extra = bounds
		}
		if v := set.Validate(p, evalCtx, extra...); !v.Valid {
			return fmt.Errorf("operation %d on %s violates %v", i, op.EntityID, v.ViolatedHard)
		}
	}
	return nil
}

func (a *Applier) applyOne(ctx context.Context, store domain.EntityStore, op domain.Operation) (domain.RollbackEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.RollbackEntry{}, err
	}
	current, err := store.Get(ctx, op.EntityID)
	if err != nil {
		return domain.RollbackEntry{}, fmt.Errorf("load %s: %w", op.EntityID, err)
	}
	if op.From.Valid() && !current.Interval.Equal(op.From) {
		return domain.RollbackEntry{}, fmt.Errorf("%w: %s is at %s, expected %s",
			ErrStaleEntity, op.EntityID, current.Interval, op.From)
	}

	entry := domain.RollbackEntry{
		EntityID: op.EntityID,
		Kind:     op.Kind,
		Before:   current.Interval,
		After:    current.Interval,
	}
	switch op.Kind {
	case domain.OperationMove, domain.OperationResize:
		entry.After = op.To
		if err := store.UpdateInterval(ctx, op.EntityID, op.To); err != nil {
			return domain.RollbackEntry{}, fmt.Errorf("update %s: %w", op.EntityID, err)
		}
	case domain.OperationReassign:
		entry.BeforeResources = current.ResourceRefs
		entry.AfterResources = domain.NormalizeRefs(op.ToResources)
		if err := store.UpdateResources(ctx, op.EntityID, entry.AfterResources); err != nil {
			return domain.RollbackEntry{}, fmt.Errorf("reassign %s: %w", op.EntityID, err)
		}
	}
	return entry, nil
}

// rollback reverts recorded entries, newest first.
func (a *Applier) rollback(ctx context.Context, store domain.EntityStore, token *domain.RollbackToken) error {
	var errs []error
	for i := len(token.Entries) - 1; i >= 0; i-- {
		if err := revert(context.WithoutCancel(ctx), store, token.Entries[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func revert(ctx context.Context, store domain.EntityStore, entry domain.RollbackEntry) error {
	if entry.Kind == domain.OperationReassign {
		return store.UpdateResources(ctx, entry.EntityID, entry.BeforeResources)
	}
	return store.UpdateInterval(ctx, entry.EntityID, entry.Before)
}

// Undo restores the pre-apply state recorded in token. Entities modified
// since the apply are left alone and reported as stale. Undoing an already
// undone token is a no-op. If the store fails mid-way, restored entities are
// re-applied, the token stays pending and the partial result comes back
// with the error.
func (a *Applier) Undo(ctx context.Context, store domain.EntityStore, token *domain.RollbackToken) (*UndoResult, error) {
	if token == nil {
		return nil, ErrNilToken
	}
	result := &UndoResult{
		RestoredEntityIDs: []string{},
		StaleEntityIDs:    []string{},
	}
	if token.Undone {
		result.Success = true
		result.AlreadyUndone = true
		return result, nil
	}

	var restored []domain.RollbackEntry
	for i := len(token.Entries) - 1; i >= 0; i-- {
		entry := token.Entries[i]
		current, err := store.Get(ctx, entry.EntityID)
		if err != nil {
			if errors.Is(err, domain.ErrEntityNotFound) {
				result.markStale(entry, domain.TimeInterval{}, "entity no longer exists")
				continue
			}
			return a.abortUndo(ctx, store, token, result, restored, entry.EntityID, fmt.Errorf("load %s: %w", entry.EntityID, err))
		}
		if reason, stale := staleReason(entry, current); stale {
			result.markStale(entry, current.Interval, reason)
			continue
		}
		if err := revert(ctx, store, entry); err != nil {
			return a.abortUndo(ctx, store, token, result, restored, entry.EntityID, fmt.Errorf("restore %s: %w", entry.EntityID, err))
		}
		restored = append(restored, entry)
		result.RestoredEntityIDs = append(result.RestoredEntityIDs, entry.EntityID)
	}

	token.MarkUndone(a.now().UTC())
	result.Partial = len(result.StaleEntityIDs) > 0
	result.Success = !result.Partial
	a.metrics.Counter(observability.MetricUndoTotal, 1, observability.T("partial", fmt.Sprint(result.Partial)))
	a.logger.Info("rollback token undone",
		"token_id", token.ID,
		"restored", len(result.RestoredEntityIDs),
		"stale", len(result.StaleEntityIDs),
	)
	a.publish(ctx, domain.NewSolutionUndone(token, result.RestoredEntityIDs, a.now()))
	return result, nil
}

// abortUndo puts restored entities back to their applied state so the token
// can be retried as a whole. Entities that could not be re-applied stay in
// RestoredEntityIDs.
func (a *Applier) abortUndo(
	ctx context.Context,
	store domain.EntityStore,
	token *domain.RollbackToken,
	result *UndoResult,
	restored []domain.RollbackEntry,
	failedID string,
	cause error,
) (*UndoResult, error) {
	ctx = context.WithoutCancel(ctx)
	result.FailedEntityID = failedID
	result.RestoredEntityIDs = []string{}

	errs := []error{cause}
	for i := len(restored) - 1; i >= 0; i-- {
		if err := reapply(ctx, store, restored[i]); err != nil {
			result.RestoredEntityIDs = append(result.RestoredEntityIDs, restored[i].EntityID)
			errs = append(errs, fmt.Errorf("re-apply %s: %w", restored[i].EntityID, err))
		}
	}
	result.Partial = len(result.RestoredEntityIDs) > 0
	a.logger.Warn("undo aborted",
		"token_id", token.ID,
		"failed_entity_id", failedID,
		"left_restored", len(result.RestoredEntityIDs),
		"error", cause,
	)
	return result, errors.Join(errs...)
}

func reapply(ctx context.Context, store domain.EntityStore, entry domain.RollbackEntry) error {
	if entry.Kind == domain.OperationReassign {
		return store.UpdateResources(ctx, entry.EntityID, entry.AfterResources)
	}
	return store.UpdateInterval(ctx, entry.EntityID, entry.After)
}

func staleReason(entry domain.RollbackEntry, current domain.ScheduledEntity) (string, bool) {
	if entry.Kind == domain.OperationReassign {
		if !slices.Equal(domain.NormalizeRefs(current.ResourceRefs), domain.NormalizeRefs(entry.AfterResources)) {
			return "resources changed since apply", true
		}
		return "", false
	}
	if !current.Interval.Equal(entry.After) {
		return "interval changed since apply", true
	}
	return "", false
}

func (r *UndoResult) markStale(entry domain.RollbackEntry, actual domain.TimeInterval, reason string) {
	r.StaleEntityIDs = append(r.StaleEntityIDs, entry.EntityID)
	r.Stale = append(r.Stale, StaleEntity{
		EntityID: entry.EntityID,
		Expected: entry.After,
		Actual:   actual,
		Reason:   reason,
	})
}

func (a *Applier) publish(ctx context.Context, event domain.SolutionEvent) {
	if a.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		a.logger.Error("failed to encode event", "routing_key", event.RoutingKey, "error", err)
		return
	}
	if err := a.publisher.Publish(ctx, event.RoutingKey, payload); err != nil {
		a.logger.Warn("failed to publish event",
			"routing_key", event.RoutingKey,
			"solution_id", event.SolutionID,
			"error", err,
		)
	}
}
