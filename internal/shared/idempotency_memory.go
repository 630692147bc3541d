package shared

import (
	"context"
	"sync"
	"time"
)

// MemoryIdempotencyStore keeps submission keys in process memory. It backs the
// in-memory store driver and tests.
type MemoryIdempotencyStore struct {
	mu    sync.Mutex
	keys  map[string]time.Time
	clock func() time.Time
}

// NewMemoryIdempotencyStore constructs an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		keys:  make(map[string]time.Time),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// CheckAndInsert claims key for module, failing with ErrIdempotencyConflict when
// it was claimed before.
func (s *MemoryIdempotencyStore) CheckAndInsert(_ context.Context, key, module string) error {
	if key == "" || module == "" {
		return ErrIdempotencyKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return ErrIdempotencyConflict
	}
	s.keys[key] = s.clock()
	return nil
}

// Delete releases a key so a failed submission can be retried.
func (s *MemoryIdempotencyStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrIdempotencyKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// Cleanup removes keys older than retention.
func (s *MemoryIdempotencyStore) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.clock().Add(-olderThan)
	var removed int64
	for key, at := range s.keys {
		if at.Before(cutoff) {
			delete(s.keys, key)
			removed++
		}
	}
	return removed, nil
}
