package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// MemoryEntityStore keeps entities in a map. It hands out copies, so callers
// can never alias stored refs.
type MemoryEntityStore struct {
	mu       sync.RWMutex
	entities map[string]domain.ScheduledEntity
}

// NewMemoryEntityStore creates a store seeded with entities.
func NewMemoryEntityStore(entities ...domain.ScheduledEntity) *MemoryEntityStore {
	s := &MemoryEntityStore{entities: make(map[string]domain.ScheduledEntity, len(entities))}
	for _, e := range entities {
		s.entities[e.ID] = e.Clone()
	}
	return s
}

func (s *MemoryEntityStore) Get(_ context.Context, id string) (domain.ScheduledEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return domain.ScheduledEntity{}, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	return e.Clone(), nil
}

func (s *MemoryEntityStore) UpdateInterval(_ context.Context, id string, interval domain.TimeInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	s.entities[id] = e.WithInterval(interval)
	return nil
}

func (s *MemoryEntityStore) UpdateResources(_ context.Context, id string, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	s.entities[id] = e.WithResources(refs)
	return nil
}

func (s *MemoryEntityStore) Save(_ context.Context, entity domain.ScheduledEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[entity.ID] = entity.Clone()
	return nil
}

func (s *MemoryEntityStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	delete(s.entities, id)
	return nil
}

func (s *MemoryEntityStore) List(_ context.Context) ([]domain.ScheduledEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScheduledEntity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.Clone())
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryEntityStore) ListInRange(_ context.Context, interval domain.TimeInterval) ([]domain.ScheduledEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ScheduledEntity
	for _, e := range s.entities {
		if e.Interval.Overlaps(interval) {
			out = append(out, e.Clone())
		}
	}
	sortByStart(out)
	return out, nil
}

var _ domain.EntityRepository = (*MemoryEntityStore)(nil)
