package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in memory. Used in tests and as the default
// when no backend is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	// FailNext forces the next Append to fail, for exercising the
	// audit-failure-aborts-transition path in tests.
	FailNext error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Append stores a copy of the entry.
func (s *MemoryStore) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return err
	}
	s.entries = append(s.entries, e)
	return nil
}

// Query returns entries matching q in append order.
func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, e := range s.entries {
		if q.matches(e) {
			res = append(res, e)
		}
	}
	return res, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
