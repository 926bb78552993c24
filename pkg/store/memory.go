package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Expired entries are dropped lazily.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	tags    map[string]map[string]struct{}

	// now is replaceable in tests.
	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	tags      []string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		tags:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// Has reports whether a live entry exists for key.
func (s *MemoryStore) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// Get returns a copy of the stored value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(s.now()) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && current == entry {
			s.removeLocked(key, entry)
		}
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores value under key, replacing any previous entry and its tags.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	entry := &memoryEntry{
		value: append([]byte(nil), value...),
		tags:  append([]string(nil), tags...),
	}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[key]; ok {
		s.removeLocked(key, old)
	}
	s.entries[key] = entry
	for _, tag := range entry.tags {
		set, ok := s.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			s.tags[tag] = set
		}
		set[key] = struct{}{}
	}
	return nil
}

// FlushByTag removes every entry carrying tag.
func (s *MemoryStore) FlushByTag(_ context.Context, tag string) (int, error) {
	if tag == "" {
		return 0, ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.tags[tag]
	flushed := 0
	for key := range keys {
		if entry, ok := s.entries[key]; ok {
			s.removeLocked(key, entry)
			flushed++
		}
	}
	delete(s.tags, tag)
	return flushed, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) removeLocked(key string, entry *memoryEntry) {
	delete(s.entries, key)
	for _, tag := range entry.tags {
		if set, ok := s.tags[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(s.tags, tag)
			}
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
