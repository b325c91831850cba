package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process counter store. Entries for windows older than
// the immediately previous one are evicted by Sweep; eviction is
// opportunistic, piggybacked on request handling rather than timer-driven.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int
	nowFn    func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(nowFn func() time.Time) *MemoryStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStore{
		counters: make(map[string]int),
		nowFn:    nowFn,
	}
}

// Get returns the current count for key, 0 if absent.
func (s *MemoryStore) Get(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key], nil
}

// Increment adds one to the count for key and returns the new value.
func (s *MemoryStore) Increment(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

// Sweep removes entries whose window is older than the immediately previous
// one. O(n) over tracked windows; n stays bounded because stale entries are
// continually evicted.
func (s *MemoryStore) Sweep(_ context.Context) {
	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.counters {
		if Stale(key, now) {
			delete(s.counters, key)
		}
	}
}

// Snapshot returns a copy of all live counters.
func (s *MemoryStore) Snapshot(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counters))
	for key, count := range s.counters {
		out[key] = count
	}
	return out, nil
}
