package commands

import (
	"context"
	"io"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/ical"
	"github.com/stretchr/testify/mock"
)

// monday is 2024-01-15 00:00 UTC.
var monday = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func entity(id string, start, end time.Time, refs ...string) domain.ScheduledEntity {
	return domain.ScheduledEntity{
		ID:           id,
		Title:        id,
		Interval:     domain.MustInterval(start, end),
		Category:     domain.CategoryMeeting,
		Priority:     3,
		ResourceRefs: refs,
	}
}

type mockEntityRepo struct {
	mock.Mock
}

func (m *mockEntityRepo) Get(ctx context.Context, id string) (domain.ScheduledEntity, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.ScheduledEntity), args.Error(1)
}

func (m *mockEntityRepo) UpdateInterval(ctx context.Context, id string, interval domain.TimeInterval) error {
	args := m.Called(ctx, id, interval)
	return args.Error(0)
}

func (m *mockEntityRepo) UpdateResources(ctx context.Context, id string, refs []string) error {
	args := m.Called(ctx, id, refs)
	return args.Error(0)
}

func (m *mockEntityRepo) Save(ctx context.Context, entity domain.ScheduledEntity) error {
	args := m.Called(ctx, entity)
	return args.Error(0)
}

func (m *mockEntityRepo) List(ctx context.Context) ([]domain.ScheduledEntity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScheduledEntity), args.Error(1)
}

func (m *mockEntityRepo) ListInRange(ctx context.Context, interval domain.TimeInterval) ([]domain.ScheduledEntity, error) {
	args := m.Called(ctx, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScheduledEntity), args.Error(1)
}

func (m *mockEntityRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) Save(ctx context.Context, token *domain.RollbackToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepo) FindByID(ctx context.Context, id string) (*domain.RollbackToken, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RollbackToken), args.Error(1)
}

func (m *mockTokenRepo) ListRecent(ctx context.Context, limit int) ([]*domain.RollbackToken, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RollbackToken), args.Error(1)
}

type stubImporter struct {
	result *ical.ImportResult
	err    error
}

func (s stubImporter) Import(context.Context, io.Reader) (*ical.ImportResult, error) {
	return s.result, s.err
}
