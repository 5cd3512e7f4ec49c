package queries

import (
	"context"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// DefaultTokenListLimit is used when a query leaves Limit unset.
const DefaultTokenListLimit = 20

// ListRollbackTokensQuery lists recently issued rollback tokens.
type ListRollbackTokensQuery struct {
	Limit int
}

// RollbackTokenDTO summarizes a token for display.
type RollbackTokenDTO struct {
	ID         string   `json:"id"`
	SolutionID string   `json:"solution_id"`
	CreatedAt  string   `json:"created_at"`
	EntityIDs  []string `json:"entity_ids"`
	Undone     bool     `json:"undone"`
}

// ListRollbackTokensHandler handles the ListRollbackTokensQuery.
type ListRollbackTokensHandler struct {
	tokens domain.RollbackTokenRepository
}

// NewListRollbackTokensHandler creates a new ListRollbackTokensHandler.
func NewListRollbackTokensHandler(tokens domain.RollbackTokenRepository) *ListRollbackTokensHandler {
	return &ListRollbackTokensHandler{tokens: tokens}
}

// Handle executes the ListRollbackTokensQuery.
func (h *ListRollbackTokensHandler) Handle(ctx context.Context, query ListRollbackTokensQuery) ([]RollbackTokenDTO, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultTokenListLimit
	}
	tokens, err := h.tokens.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]RollbackTokenDTO, len(tokens))
	for i, t := range tokens {
		ids := make([]string, len(t.Entries))
		for j, e := range t.Entries {
			ids[j] = e.EntityID
		}
		dtos[i] = RollbackTokenDTO{
			ID:         t.ID,
			SolutionID: t.SolutionID,
			CreatedAt:  t.CreatedAt.Format("2006-01-02 15:04:05Z07:00"),
			EntityIDs:  ids,
			Undone:     t.Undone,
		}
	}
	return dtos, nil
}
