package cooldown

import (
	"context"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// MemoryStore keeps cooldowns in process. Entries expire lazily on access;
// Sweep drops the ones nobody asked about again.
type MemoryStore struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clock: realClock{}, entries: make(map[string]time.Time)}
}

func (s *MemoryStore) WithClock(clock Clock) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if left := s.remainingLocked(key, now); left > 0 {
		return left, false, nil
	}
	s.entries[key] = now.Add(ttl)
	return 0, true, nil
}

func (s *MemoryStore) Remaining(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked(key, s.clock.Now()), nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	removed := 0
	for key, until := range s.entries {
		if !now.Before(until) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) remainingLocked(key string, now time.Time) time.Duration {
	until, ok := s.entries[key]
	if !ok {
		return 0
	}
	left := until.Sub(now)
	if left <= 0 {
		delete(s.entries, key)
		return 0
	}
	return left
}
