package kv

import (
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and ephemeral CLI runs.
// Expiry is checked lazily on read.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]memoryEntry
	now   func() time.Time // overridable clock for TTL tests
	fails bool             // when set, every operation errors (failure-path tests)
}

type memoryEntry struct {
	value    []byte
	deadline time.Time // zero = no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// SetClock overrides the store's clock. Test hook for TTL expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailAll makes every subsequent operation return an error. Test hook for
// degraded-store paths.
func (s *MemoryStore) FailAll(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = fail
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails {
		return nil, false, errStoreFailed
	}
	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if !e.deadline.IsZero() && s.now().After(e.deadline) {
		delete(s.data, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (s *MemoryStore) SetWithTTL(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails {
		return errStoreFailed
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	e := memoryEntry{value: stored}
	if ttl > 0 {
		e.deadline = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails {
		return errStoreFailed
	}
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) DeleteByPrefix(prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails {
		return 0, errStoreFailed
	}
	removed := 0
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }

// Len reports the number of live (possibly expired) entries. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
