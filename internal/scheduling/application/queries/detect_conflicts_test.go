package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConflictsHandler_Handle(t *testing.T) {
	clash := []domain.ScheduledEntity{
		entity("A", at(10, 0), at(11, 0), "room-1"),
		entity("B", at(10, 30), at(11, 30), "room-1"),
		entity("late", at(18, 0), at(19, 0)),
	}

	t.Run("audits the whole store", func(t *testing.T) {
		repo := new(mockEntityRepo)
		handler := NewDetectConflictsHandler(repo, services.NewConflictDetector(nil, nil), nil)
		ctx := context.Background()

		repo.On("List", ctx).Return(clash, nil)

		result, err := handler.Handle(ctx, DetectConflictsQuery{Config: services.DefaultConflictDetectorConfig()})

		require.NoError(t, err)
		assert.Equal(t, 3, result.EntitiesScanned)
		require.Len(t, result.Violations, 2)
		assert.Equal(t, 1, result.HardCount)
		assert.Equal(t, domain.SeverityCritical, result.Violations[0].Severity)
		repo.AssertExpectations(t)
	})

	t.Run("bounded audit loads only the range", func(t *testing.T) {
		repo := new(mockEntityRepo)
		handler := NewDetectConflictsHandler(repo, services.NewConflictDetector(nil, nil), nil)
		ctx := context.Background()
		window := domain.MustInterval(at(9, 0), at(12, 0))

		repo.On("ListInRange", ctx, window).Return(clash[:2], nil)

		result, err := handler.Handle(ctx, DetectConflictsQuery{
			Range:  &window,
			Config: services.DefaultConflictDetectorConfig(),
		})

		require.NoError(t, err)
		assert.Equal(t, 2, result.EntitiesScanned)
		assert.Len(t, result.Violations, 1)
		repo.AssertExpectations(t)
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		repo := new(mockEntityRepo)
		handler := NewDetectConflictsHandler(repo, services.NewConflictDetector(nil, nil), nil)
		ctx := context.Background()

		repo.On("List", ctx).Return(nil, errors.New("connection refused"))

		result, err := handler.Handle(ctx, DetectConflictsQuery{})

		require.Error(t, err)
		assert.Nil(t, result)
	})
}
