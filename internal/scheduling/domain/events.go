package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	AggregateType = "Schedule"

	RoutingKeySolutionApplied    = "scheduling.solution.applied"
	RoutingKeySolutionRolledBack = "scheduling.solution.rolled_back"
	RoutingKeySolutionUndone     = "scheduling.solution.undone"
)

// SolutionEvent is published after the applier mutates or restores a store.
type SolutionEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	RoutingKey string          `json:"routing_key"`
	OccurredAt time.Time       `json:"occurred_at"`
	SolutionID string          `json:"solution_id"`
	TokenID    string          `json:"token_id,omitempty"`
	EntityIDs  []string        `json:"entity_ids"`
	Operations []Operation     `json:"operations,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Entries    []RollbackEntry `json:"entries,omitempty"`
}

// NewSolutionApplied creates the event for a committed solution.
func NewSolutionApplied(solution OptimizationSolution, token *RollbackToken, now time.Time) SolutionEvent {
	return SolutionEvent{
		EventID:    uuid.New(),
		RoutingKey: RoutingKeySolutionApplied,
		OccurredAt: now.UTC(),
		SolutionID: solution.ID,
		TokenID:    token.ID,
		EntityIDs:  tokenEntityIDs(token),
		Operations: solution.Operations,
	}
}

// NewSolutionRolledBack creates the event for an apply that failed and was reverted.
func NewSolutionRolledBack(solution OptimizationSolution, reason string, now time.Time) SolutionEvent {
	ids := make([]string, 0, len(solution.Operations))
	for _, op := range solution.Operations {
		ids = append(ids, op.EntityID)
	}
	return SolutionEvent{
		EventID:    uuid.New(),
		RoutingKey: RoutingKeySolutionRolledBack,
		OccurredAt: now.UTC(),
		SolutionID: solution.ID,
		EntityIDs:  ids,
		Reason:     reason,
	}
}

// NewSolutionUndone creates the event for an undo; restored lists reverted entity ids.
func NewSolutionUndone(token *RollbackToken, restored []string, now time.Time) SolutionEvent {
	return SolutionEvent{
		EventID:    uuid.New(),
		RoutingKey: RoutingKeySolutionUndone,
		OccurredAt: now.UTC(),
		SolutionID: token.SolutionID,
		TokenID:    token.ID,
		EntityIDs:  restored,
		Entries:    token.Entries,
	}
}

func tokenEntityIDs(token *RollbackToken) []string {
	ids := make([]string, 0, len(token.Entries))
	for _, e := range token.Entries {
		ids = append(ids, e.EntityID)
	}
	return ids
}
