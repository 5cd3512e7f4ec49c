package domain

import (
	"fmt"
	"sort"
	"sync"
)

// CustomPredicate is a named, caller-supplied constraint implementation.
// Penalty may be nil, in which case the constraint's own Penalty is used.
type CustomPredicate struct {
	Evaluate func(p Placement, ctx *EvaluationContext, c Constraint) bool
	Penalty  func(p Placement, ctx *EvaluationContext, c Constraint) float64
}

// PredicateRegistry maps predicate names to implementations so that custom
// constraints stay serializable: the constraint carries only the name.
type PredicateRegistry struct {
	mu         sync.RWMutex
	predicates map[string]CustomPredicate
}

// NewPredicateRegistry creates an empty registry.
func NewPredicateRegistry() *PredicateRegistry {
	return &PredicateRegistry{predicates: make(map[string]CustomPredicate)}
}

// Register adds a predicate. Names are unique.
func (r *PredicateRegistry) Register(name string, pred CustomPredicate) error {
	if name == "" || pred.Evaluate == nil {
		return fmt.Errorf("register predicate %q: evaluate function required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.predicates[name]; exists {
		return fmt.Errorf("register predicate %q: already registered", name)
	}
	r.predicates[name] = pred
	return nil
}

// Lookup returns the predicate registered under name.
func (r *PredicateRegistry) Lookup(name string) (CustomPredicate, bool) {
	if r == nil {
		return CustomPredicate{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	pred, ok := r.predicates[name]
	return pred, ok
}

// Names lists registered predicate names in sorted order.
func (r *PredicateRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.predicates))
	for name := range r.predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (ctx *EvaluationContext) predicate(name string) (CustomPredicate, bool) {
	if ctx == nil {
		return CustomPredicate{}, false
	}
	return ctx.Registry.Lookup(name)
}
