package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// OperationKind is the mutation a remediation step performs.
type OperationKind string

const (
	OperationMove     OperationKind = "move"
	OperationResize   OperationKind = "resize"
	OperationReassign OperationKind = "reassign"
)

// Operation is one step of a solution. From/To are intervals for move and
// resize; FromResources/ToResources are resource refs for reassign.
type Operation struct {
	Kind          OperationKind `json:"kind"`
	EntityID      string        `json:"entity_id"`
	From          TimeInterval  `json:"from"`
	To            TimeInterval  `json:"to"`
	FromResources []string      `json:"from_resources,omitempty"`
	ToResources   []string      `json:"to_resources,omitempty"`
	Reasoning     string        `json:"reasoning"`
}

// Validate checks the operation is structurally applicable.
func (op Operation) Validate() error {
	if op.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidOperation)
	}
	switch op.Kind {
	case OperationMove, OperationResize:
		if !op.To.Valid() {
			return fmt.Errorf("%w: %s target for %s: %v", ErrInvalidOperation, op.Kind, op.EntityID, ErrInvalidTimeRange)
		}
	case OperationReassign:
		if len(NormalizeRefs(op.ToResources)) == 0 {
			return fmt.Errorf("%w: reassign of %s needs a target resource", ErrInvalidOperation, op.EntityID)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, op.Kind)
	}
	return nil
}

// ShiftMinutes is the absolute start displacement the operation causes.
func (op Operation) ShiftMinutes() int {
	if op.Kind == OperationReassign {
		return 0
	}
	d := op.To.Start.Sub(op.From.Start)
	if d < 0 {
		d = -d
	}
	end := op.To.End.Sub(op.From.End)
	if end < 0 {
		end = -end
	}
	return int(max(d, end) / time.Minute)
}

// Impact summarizes what a solution changes.
type Impact struct {
	ConflictsResolved int `json:"conflicts_resolved"`
	EntitiesAffected  int `json:"entities_affected"`
	TimeShiftMinutes  int `json:"time_shift_minutes"`
}

// OptimizationSolution is a proposed remediation.
type OptimizationSolution struct {
	ID          string      `json:"id"`
	ViolationID string      `json:"violation_id,omitempty"`
	Description string      `json:"description"`
	Confidence  float64     `json:"confidence"`
	Operations  []Operation `json:"operations"`
	Impact      Impact      `json:"impact"`
}

// NewOptimizationSolution builds a solution and derives its impact from ops.
func NewOptimizationSolution(description string, confidence float64, resolved int, ops ...Operation) OptimizationSolution {
	touched := make(map[string]struct{}, len(ops))
	shift := 0
	for _, op := range ops {
		touched[op.EntityID] = struct{}{}
		shift += op.ShiftMinutes()
	}
	return OptimizationSolution{
		ID:          uuid.NewString(),
		Description: description,
		Confidence:  min(1, max(0, confidence)),
		Operations:  slices.Clone(ops),
		Impact: Impact{
			ConflictsResolved: resolved,
			EntitiesAffected:  len(touched),
			TimeShiftMinutes:  shift,
		},
	}
}

// SortSolutions orders by confidence desc, then conflicts resolved desc.
func SortSolutions(ss []OptimizationSolution) {
	sortStable(ss, func(a, b OptimizationSolution) int {
		if a.Confidence != b.Confidence {
			if a.Confidence > b.Confidence {
				return -1
			}
			return 1
		}
		return b.Impact.ConflictsResolved - a.Impact.ConflictsResolved
	})
}

// RollbackEntry captures one entity before and after an operation, by copy.
type RollbackEntry struct {
	EntityID        string        `json:"entity_id"`
	Kind            OperationKind `json:"kind"`
	Before          TimeInterval  `json:"before"`
	After           TimeInterval  `json:"after"`
	BeforeResources []string      `json:"before_resources,omitempty"`
	AfterResources  []string      `json:"after_resources,omitempty"`
}

// RollbackToken records everything needed to reverse an applied solution.
type RollbackToken struct {
	ID         string          `json:"id"`
	SolutionID string          `json:"solution_id"`
	CreatedAt  time.Time       `json:"created_at"`
	Entries    []RollbackEntry `json:"entries"`
	Undone     bool            `json:"undone"`
	UndoneAt   *time.Time      `json:"undone_at,omitempty"`
}

// NewRollbackToken creates an empty token for a solution.
func NewRollbackToken(solutionID string, now time.Time) *RollbackToken {
	return &RollbackToken{
		ID:         uuid.NewString(),
		SolutionID: solutionID,
		CreatedAt:  now,
		Entries:    make([]RollbackEntry, 0),
	}
}

// Record appends an entry.
func (t *RollbackToken) Record(entry RollbackEntry) {
	entry.BeforeResources = slices.Clone(entry.BeforeResources)
	entry.AfterResources = slices.Clone(entry.AfterResources)
	t.Entries = append(t.Entries, entry)
}

// MarkUndone flags the token as consumed.
func (t *RollbackToken) MarkUndone(at time.Time) {
	t.Undone = true
	t.UndoneAt = &at
}
