package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func reportRequest() domain.SchedulingRequest {
	return domain.SchedulingRequest{
		Title:           "Write report",
		DurationMinutes: 60,
		Category:        domain.CategoryTask,
		Priority:        3,
	}
}

func TestSuggestPlacementHandler_Handle(t *testing.T) {
	planning := entity("planning", at(9, 0), at(12, 0))

	t.Run("suggests slots around the stored snapshot", func(t *testing.T) {
		repo := new(mockEntityRepo)
		handler := NewSuggestPlacementHandler(repo, services.NewSchedulingEngine(nil, nil), nil)
		ctx := context.Background()

		repo.On("ListInRange", ctx, mock.Anything).Return([]domain.ScheduledEntity{planning}, nil)

		result, err := handler.Handle(ctx, SuggestPlacementCommand{
			Request: reportRequest(),
			Options: services.DefaultScheduleOptions(at(8, 0)),
		})

		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, at(12, 0), result.Suggestions[0].Slot.Start)
		assert.Nil(t, result.Booked)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("books the top suggestion", func(t *testing.T) {
		repo := new(mockEntityRepo)
		handler := NewSuggestPlacementHandler(repo, services.NewSchedulingEngine(nil, nil), nil)
		ctx := context.Background()

		repo.On("ListInRange", ctx, mock.Anything).Return([]domain.ScheduledEntity{planning}, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(e domain.ScheduledEntity) bool {
			return e.Title == "Write report" && e.Interval.Start.Equal(at(12, 0))
		})).Return(nil)

		result, err := handler.Handle(ctx, SuggestPlacementCommand{
			Request: reportRequest(),
			Options: services.DefaultScheduleOptions(at(8, 0)),
			Book:    true,
		})

		require.NoError(t, err)
		require.NotNil(t, result.Booked)
		assert.NotEmpty(t, result.Booked.ID)
		assert.Equal(t, domain.CategoryTask, result.Booked.Category)
		assert.Equal(t, 60, result.Booked.Interval.Minutes())
		repo.AssertExpectations(t)
	})

	t.Run("malformed request is an unsuccessful result", func(t *testing.T) {
		repo := new(mockEntityRepo)
		handler := NewSuggestPlacementHandler(repo, services.NewSchedulingEngine(nil, nil), nil)
		ctx := context.Background()

		repo.On("ListInRange", ctx, mock.Anything).Return([]domain.ScheduledEntity{}, nil)

		result, err := handler.Handle(ctx, SuggestPlacementCommand{
			Request: domain.SchedulingRequest{Title: "No length"},
			Options: services.DefaultScheduleOptions(at(8, 0)),
			Book:    true,
		})

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.ValidationErrors)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("propagates snapshot errors", func(t *testing.T) {
		repo := new(mockEntityRepo)
		handler := NewSuggestPlacementHandler(repo, services.NewSchedulingEngine(nil, nil), nil)
		ctx := context.Background()

		repo.On("ListInRange", ctx, mock.Anything).Return(nil, errors.New("database locked"))

		_, err := handler.Handle(ctx, SuggestPlacementCommand{Request: reportRequest()})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "database locked")
	})
}

func TestSnapshotWindow(t *testing.T) {
	opts := services.DefaultScheduleOptions(at(8, 0))

	t.Run("covers the horizon", func(t *testing.T) {
		w := snapshotWindow(reportRequest(), opts)

		assert.True(t, w.Start.Before(at(8, 0)))
		assert.True(t, w.End.After(at(8, 0).AddDate(0, 0, 7)))
	})

	t.Run("extends to a far deadline", func(t *testing.T) {
		req := reportRequest()
		deadline := at(8, 0).AddDate(0, 0, 30)
		req.Deadline = &deadline

		w := snapshotWindow(req, opts)

		assert.True(t, w.End.After(deadline))
	})

	t.Run("reaches back to an earlier preferred window", func(t *testing.T) {
		req := reportRequest()
		req.PreferredWindows = []domain.TimeInterval{domain.MustInterval(at(8, 0).Add(-72*time.Hour), at(8, 0).Add(-70*time.Hour))}

		w := snapshotWindow(req, opts)

		assert.True(t, w.Start.Before(req.PreferredWindows[0].Start))
	})
}
