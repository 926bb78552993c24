// Package store provides the tag-aware key/value backends that hold cached
// response metadata and response content.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested key is absent or expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrInvalidKey indicates an empty key or tag.
	ErrInvalidKey = errors.New("store: key is invalid")
)

// Store is a TTL-aware key/value store whose entries carry tags.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Get returns ErrNotFound on miss; any other error is an I/O failure.
//   - A ttl <= 0 stores the entry without expiry.
//   - FlushByTag removes every entry carrying the tag and reports how many.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error
	FlushByTag(ctx context.Context, tag string) (int, error)
	Close() error
}
