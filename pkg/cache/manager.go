package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/cover/pkg/mvc"
	"github.com/Sternrassler/cover/pkg/store"
)

var (
	// ErrCacheMiss indicates no complete entry exists for a fingerprint
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored metadata could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Config holds manager settings.
type Config struct {
	// Environment is the deployment context mixed into every fingerprint
	Environment string

	// DefaultLifetime applies when a response carries no freshness
	// information. Zero stores without expiry.
	DefaultLifetime time.Duration

	// MaxLifetime caps resolved lifetimes. Zero disables the cap.
	MaxLifetime time.Duration

	// VaryHeaders are request headers, beyond content negotiation
	// headers, that select distinct cache entries.
	VaryHeaders []string
}

// Manager reads and writes cached responses.
type Manager struct {
	metadata      store.Store
	content       store.Store
	fingerprinter *Fingerprinter
	config        Config
	logger        zerolog.Logger
	reads         singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager creates a manager over the metadata and content stores.
func NewManager(metadata, content store.Store, cfg Config, logger zerolog.Logger) *Manager {
	if metadata == nil || content == nil {
		panic("metadata and content stores cannot be nil")
	}
	return &Manager{
		metadata:      metadata,
		content:       content,
		fingerprinter: NewFingerprinter(cfg.Environment, cfg.VaryHeaders...),
		config:        cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Fingerprint exposes the identifier the manager uses for req.
func (m *Manager) Fingerprint(req *mvc.Request, session *mvc.Session, preferHeader bool) string {
	return m.fingerprinter.Fingerprint(req, session, preferHeader)
}

// Get fills resp from the cache when a complete entry exists for req.
//
// On a hit the cached status, headers and content replace those of resp and
// req is marked dispatched. Hit or miss, the X-Cover-Cache header is set on
// resp and the fingerprint is attached to req for Set to reuse.
func (m *Manager) Get(ctx context.Context, req *mvc.Request, resp *mvc.Response, session *mvc.Session) (bool, error) {
	fingerprint := m.fingerprinter.Fingerprint(req, session, false)

	entry, err := m.load(ctx, fingerprint)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		CacheErrors.WithLabelValues("get").Inc()
		return false, err
	}

	req.SetHeader(HeaderCacheIdentifier, fingerprint)

	if entry == nil {
		CacheMisses.Inc()
		resp.SetHeader(HeaderCache, "miss")
		m.logger.Debug().
			Str("fingerprint", fingerprint).
			Str("path", req.Path).
			Msg("Cache miss")
		return false, nil
	}

	entry.applyTo(resp)
	resp.SetHeader(HeaderCache, "hit")
	req.SetDispatched(true)

	CacheHits.Inc()
	m.logger.Debug().
		Str("fingerprint", fingerprint).
		Str("path", req.Path).
		Int("status_code", entry.StatusCode).
		Msg("Cache hit")
	return true, nil
}

// Has reports whether a complete entry exists for req. It has no side
// effects on req.
func (m *Manager) Has(ctx context.Context, req *mvc.Request, session *mvc.Session) (bool, error) {
	fingerprint := m.fingerprinter.Fingerprint(req, session, false)

	ok, err := m.metadata.Has(ctx, fingerprint)
	if err != nil {
		CacheErrors.WithLabelValues("has").Inc()
		return false, fmt.Errorf("metadata has: %w", err)
	}
	if !ok {
		return false, nil
	}

	ok, err = m.content.Has(ctx, fingerprint)
	if err != nil {
		CacheErrors.WithLabelValues("has").Inc()
		return false, fmt.Errorf("content has: %w", err)
	}
	return ok, nil
}

// Set stores resp for req and reports whether it did.
//
// Nothing is stored for a request that was never dispatched. Otherwise the
// response is stamped with the current time as its last-modified date and
// stored under the fingerprint attached by Get (or a freshly computed one),
// tagged with Tags(req, session) and expiring after the resolved lifetime.
// Store failures are returned; there is no partial-success signal.
func (m *Manager) Set(ctx context.Context, req *mvc.Request, resp *mvc.Response, session *mvc.Session) (bool, error) {
	if !req.IsDispatched() {
		SkippedStores.Inc()
		return false, nil
	}

	fingerprint := m.fingerprinter.Fingerprint(req, session, true)

	now := m.now()
	resp.LastModified = now

	ttl := ResolveTTL(resp, now, m.config.DefaultLifetime)
	if m.config.MaxLifetime > 0 && (ttl <= 0 || ttl > m.config.MaxLifetime) {
		ttl = m.config.MaxLifetime
	}

	tags := Tags(req, session)
	entry := newEntry(resp)

	if err := m.content.Set(ctx, fingerprint, []byte(entry.Content), tags, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return false, fmt.Errorf("content set: %w", err)
	}

	metadata, err := entry.metadata()
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return false, fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := m.metadata.Set(ctx, fingerprint, metadata, tags, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return false, fmt.Errorf("metadata set: %w", err)
	}

	CacheStores.Inc()
	EntryBytes.Observe(float64(len(entry.Content)))
	m.logger.Debug().
		Str("fingerprint", fingerprint).
		Str("path", req.Path).
		Dur("ttl", ttl).
		Strs("tags", tags).
		Msg("Cached response")

	return true, nil
}

// FlushByTag removes every entry carrying tag from both stores and returns
// the number of metadata entries removed.
func (m *Manager) FlushByTag(ctx context.Context, tag string) (int, error) {
	flushed, err := m.metadata.FlushByTag(ctx, tag)
	if err != nil {
		CacheErrors.WithLabelValues("flush").Inc()
		return 0, fmt.Errorf("metadata flush: %w", err)
	}
	if _, err := m.content.FlushByTag(ctx, tag); err != nil {
		CacheErrors.WithLabelValues("flush").Inc()
		return flushed, fmt.Errorf("content flush: %w", err)
	}

	FlushedEntries.Add(float64(flushed))
	m.logger.Info().
		Str("tag", tag).
		Int("flushed", flushed).
		Msg("Flushed cache tag")
	return flushed, nil
}

// AllowsCaching is RequestAllowsCaching, exposed for rule expressions.
func (m *Manager) AllowsCaching(req *mvc.Request) bool {
	return RequestAllowsCaching(req)
}

// CanBeCached is ResponseCanBeCached, exposed for rule expressions.
func (m *Manager) CanBeCached(resp *mvc.Response) bool {
	return ResponseCanBeCached(resp)
}

// load reads both halves of an entry. Concurrent loads of one fingerprint
// share a single round trip. A missing half is a miss.
func (m *Manager) load(ctx context.Context, fingerprint string) (*CacheEntry, error) {
	v, err, _ := m.reads.Do(fingerprint, func() (interface{}, error) {
		metadata, err := m.metadata.Get(ctx, fingerprint)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrCacheMiss
			}
			return nil, fmt.Errorf("metadata get: %w", err)
		}

		content, err := m.content.Get(ctx, fingerprint)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrCacheMiss
			}
			return nil, fmt.Errorf("content get: %w", err)
		}

		return decodeEntry(metadata, content)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CacheEntry), nil
}
