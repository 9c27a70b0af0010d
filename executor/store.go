package executor

import "sync"

// Store is the per-execution variable namespace through which steps exchange
// data. The compiler guarantees a single writer per name within a workflow,
// so one coarse lock is all the synchronization concurrent steps need.
type Store struct {
	mu   sync.RWMutex
	vars map[string]any
}

// NewStore seeds a fresh store with the caller-supplied initial inputs.
func NewStore(initial map[string]any) *Store {
	vars := make(map[string]any, len(initial))
	for k, v := range initial {
		vars[k] = v
	}
	return &Store{vars: vars}
}

// Get returns the value bound to name, if any.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Set binds name to value.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// SetAll binds every entry of values in one critical section.
func (s *Store) SetAll(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.vars[k] = v
	}
}

// Snapshot returns a copy of the current bindings, safe to read without
// further locking.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Len reports the number of bound variables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}
