package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with TTL support. Suitable for tests and
// single-instance deployments; SetIfAbsent is atomic under the store mutex.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time

	// Now is the clock used for expiry checks. Tests override it to move
	// time forward without sleeping.
	Now func() time.Time
}

// NewMemoryStore creates a new in-memory idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		Now:     time.Now,
	}
}

// Get reports whether key holds an unexpired marker.
func (s *MemoryStore) Get(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(key), nil
}

// SetWithTTL unconditionally writes a marker.
func (s *MemoryStore) SetWithTTL(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = s.Now().Add(ttl)
	return nil
}

// SetIfAbsent claims the marker if absent or expired.
func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liveLocked(key) {
		return false, nil
	}
	s.entries[key] = s.Now().Add(ttl)
	return true, nil
}

// Delete removes a marker.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of entries, including expired ones. For testing.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// liveLocked reports whether key exists and has not expired, pruning expired
// entries as a side effect. Caller holds the mutex.
func (s *MemoryStore) liveLocked(key string) bool {
	expiresAt, exists := s.entries[key]
	if !exists {
		return false
	}
	if s.Now().After(expiresAt) {
		delete(s.entries, key)
		return false
	}
	return true
}
