package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/cover/pkg/store"
)

// FailingStore is a store.Store whose every operation fails with Err.
type FailingStore struct {
	Err error
}

func (s *FailingStore) Has(context.Context, string) (bool, error)   { return false, s.Err }
func (s *FailingStore) Get(context.Context, string) ([]byte, error) { return nil, s.Err }
func (s *FailingStore) Set(context.Context, string, []byte, []string, time.Duration) error {
	return s.Err
}
func (s *FailingStore) FlushByTag(context.Context, string) (int, error) { return 0, s.Err }
func (s *FailingStore) Close() error                                   { return nil }

// SetCall records one Set invocation.
type SetCall struct {
	Key   string
	Value []byte
	Tags  []string
	TTL   time.Duration
}

// RecordingStore wraps a MemoryStore and records Set and FlushByTag calls.
type RecordingStore struct {
	*store.MemoryStore

	mu      sync.Mutex
	sets    []SetCall
	flushes []string
}

// NewRecordingStore creates an empty recording store.
func NewRecordingStore() *RecordingStore {
	return &RecordingStore{MemoryStore: store.NewMemoryStore()}
}

// Set records the call and stores the value.
func (s *RecordingStore) Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	s.mu.Lock()
	s.sets = append(s.sets, SetCall{
		Key:   key,
		Value: append([]byte(nil), value...),
		Tags:  append([]string(nil), tags...),
		TTL:   ttl,
	})
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, value, tags, ttl)
}

// FlushByTag records the call and flushes.
func (s *RecordingStore) FlushByTag(ctx context.Context, tag string) (int, error) {
	s.mu.Lock()
	s.flushes = append(s.flushes, tag)
	s.mu.Unlock()
	return s.MemoryStore.FlushByTag(ctx, tag)
}

// Sets returns the recorded Set calls.
func (s *RecordingStore) Sets() []SetCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SetCall(nil), s.sets...)
}

// Flushes returns the recorded flushed tags.
func (s *RecordingStore) Flushes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.flushes...)
}

var (
	_ store.Store = (*FailingStore)(nil)
	_ store.Store = (*RecordingStore)(nil)
)
