package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// monday is 2024-01-15 00:00 UTC.
var monday = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func meeting(id string, start, end time.Time, resources ...string) domain.ScheduledEntity {
	return domain.ScheduledEntity{
		ID:           id,
		Title:        id,
		Interval:     domain.MustInterval(start, end),
		Category:     domain.CategoryMeeting,
		Priority:     3,
		ResourceRefs: resources,
	}
}

var errDiskFull = errors.New("disk full")

type fakeStore struct {
	mu       sync.Mutex
	entities map[string]domain.ScheduledEntity
	updates  int
	// failOnUpdate makes the nth update (1-based) fail; 0 never fails.
	failOnUpdate int
}

func newFakeStore(entities ...domain.ScheduledEntity) *fakeStore {
	s := &fakeStore{entities: make(map[string]domain.ScheduledEntity)}
	for _, e := range entities {
		s.entities[e.ID] = e.Clone()
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (domain.ScheduledEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return domain.ScheduledEntity{}, domain.ErrEntityNotFound
	}
	return e.Clone(), nil
}

func (s *fakeStore) UpdateInterval(_ context.Context, id string, iv domain.TimeInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.failOnUpdate == s.updates {
		return errDiskFull
	}
	e, ok := s.entities[id]
	if !ok {
		return domain.ErrEntityNotFound
	}
	s.entities[id] = e.WithInterval(iv)
	return nil
}

func (s *fakeStore) UpdateResources(_ context.Context, id string, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.failOnUpdate == s.updates {
		return errDiskFull
	}
	e, ok := s.entities[id]
	if !ok {
		return domain.ErrEntityNotFound
	}
	s.entities[id] = e.WithResources(refs)
	return nil
}

func (s *fakeStore) interval(id string) domain.TimeInterval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities[id].Interval
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}
