package repository

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
	hasTTL    bool
}

func (e memEntry) isExpired(now time.Time) bool {
	return e.hasTTL && now.After(e.expiresAt)
}

type memoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

func NewMemoryStateStore() StateStore {
	return &memoryStateStore{
		entries: make(map[string]memEntry),
	}
}

func newMemEntry(value []byte, ttl time.Duration) memEntry {
	entry := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.hasTTL = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	return entry
}

func (s *memoryStateStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = newMemEntry(value, ttl)
	return nil
}

func (s *memoryStateStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *memoryStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *memoryStateStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	return ok, nil
}

func (s *memoryStateStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = newMemEntry(value, ttl)
	return true, nil
}

func (s *memoryStateStore) Extend(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	if !ok || !bytes.Equal(entry.value, value) {
		return false, nil
	}
	s.entries[key] = newMemEntry(entry.value, ttl)
	return true, nil
}

func (s *memoryStateStore) CompareAndDelete(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	if !ok || !bytes.Equal(entry.value, value) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// live returns the entry for key, dropping it if it has expired. Callers hold mu.
func (s *memoryStateStore) live(key string) (memEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if entry.isExpired(time.Now()) {
		delete(s.entries, key)
		return memEntry{}, false
	}
	return entry, true
}
