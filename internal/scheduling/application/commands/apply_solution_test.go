package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func roomClash() (domain.ScheduledEntity, domain.ScheduledEntity) {
	a := entity("A", at(10, 0), at(11, 0), "room-1")
	b := entity("B", at(10, 30), at(11, 30), "room-1")
	return a, b
}

func move(e domain.ScheduledEntity, to domain.TimeInterval) domain.OptimizationSolution {
	return domain.NewOptimizationSolution("move "+e.ID, 0.9, 1, domain.Operation{
		Kind:     domain.OperationMove,
		EntityID: e.ID,
		From:     e.Interval,
		To:       to,
	})
}

func TestApplySolutionHandler_Handle(t *testing.T) {
	target := domain.MustInterval(at(11, 0), at(12, 0))

	t.Run("applies and persists the rollback token", func(t *testing.T) {
		a, b := roomClash()
		store := persistence.NewMemoryEntityStore(a, b)
		tokens := new(mockTokenRepo)
		pub := eventbus.NewRecordingPublisher()
		handler := NewApplySolutionHandler(store, tokens, services.NewApplier(pub, nil, nil), nil)
		ctx := context.Background()

		tokens.On("Save", ctx, mock.AnythingOfType("*domain.RollbackToken")).Return(nil)

		result, err := handler.Handle(ctx, ApplySolutionCommand{Solution: move(b, target)})

		require.NoError(t, err)
		require.True(t, result.Success)
		require.NotNil(t, result.RollbackToken)
		current, err := store.Get(ctx, "B")
		require.NoError(t, err)
		assert.Equal(t, target, current.Interval)
		assert.Len(t, pub.Messages(), 1)
		tokens.AssertExpectations(t)
	})

	t.Run("dry run leaves store and tokens alone", func(t *testing.T) {
		a, b := roomClash()
		store := persistence.NewMemoryEntityStore(a, b)
		tokens := new(mockTokenRepo)
		handler := NewApplySolutionHandler(store, tokens, services.NewApplier(nil, nil, nil), nil)
		ctx := context.Background()

		result, err := handler.Handle(ctx, ApplySolutionCommand{Solution: move(b, target), DryRun: true})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.DryRun)
		current, err := store.Get(ctx, "B")
		require.NoError(t, err)
		assert.Equal(t, b.Interval, current.Interval)
		tokens.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects a move onto a stored entity", func(t *testing.T) {
		a, b := roomClash()
		store := persistence.NewMemoryEntityStore(a, b)
		tokens := new(mockTokenRepo)
		handler := NewApplySolutionHandler(store, tokens, services.NewApplier(nil, nil, nil), nil)
		ctx := context.Background()

		result, err := handler.Handle(ctx, ApplySolutionCommand{Solution: move(b, a.Interval)})

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
		tokens.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("reverts the apply when the token cannot be stored", func(t *testing.T) {
		a, b := roomClash()
		store := persistence.NewMemoryEntityStore(a, b)
		tokens := new(mockTokenRepo)
		pub := eventbus.NewRecordingPublisher()
		handler := NewApplySolutionHandler(store, tokens, services.NewApplier(pub, nil, nil), nil)
		ctx := context.Background()

		tokens.On("Save", ctx, mock.Anything).Return(errors.New("redis unavailable"))

		result, err := handler.Handle(ctx, ApplySolutionCommand{Solution: move(b, target)})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "persist rollback token")
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Nil(t, result.RollbackToken)
		assert.Contains(t, result.Error, "redis unavailable")

		current, err := store.Get(ctx, "B")
		require.NoError(t, err)
		assert.Equal(t, b.Interval, current.Interval)

		var keys []string
		for _, m := range pub.Messages() {
			keys = append(keys, m.RoutingKey)
		}
		assert.Equal(t, []string{domain.RoutingKeySolutionApplied, domain.RoutingKeySolutionUndone}, keys)
	})

	t.Run("bounds resizes by the configured maximum", func(t *testing.T) {
		a, b := roomClash()
		store := persistence.NewMemoryEntityStore(a, b)
		tokens := new(mockTokenRepo)
		handler := NewApplySolutionHandler(store, tokens, services.NewApplier(nil, nil, nil), nil).
			WithMaxDuration(90 * time.Minute)
		ctx := context.Background()

		stretch := domain.NewOptimizationSolution("stretch A", 0.6, 0, domain.Operation{
			Kind:     domain.OperationResize,
			EntityID: "A",
			From:     a.Interval,
			To:       domain.MustInterval(at(8, 0), at(10, 0)),
		})
		result, err := handler.Handle(ctx, ApplySolutionCommand{Solution: stretch})

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "max_duration")
		tokens.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}
