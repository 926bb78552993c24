package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks responses served from cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cover_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks lookups that found no complete entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cover_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheStores tracks responses written to the cache
	CacheStores = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cover_cache_stores_total",
			Help: "Total number of responses stored in the cache",
		},
	)

	// SkippedStores tracks Set calls for requests that were never dispatched
	SkippedStores = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cover_cache_skipped_stores_total",
			Help: "Total number of store attempts skipped because the request was not dispatched",
		},
	)

	// EntryBytes tracks the size of stored response bodies
	EntryBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cover_cache_entry_bytes",
			Help:    "Size of cached response bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	// FlushedEntries tracks entries removed by tag flushes
	FlushedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cover_cache_flushed_entries_total",
			Help: "Total number of cached responses removed by tag flushes",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cover_cache_errors_total",
			Help: "Total number of response cache operation errors",
		},
		[]string{"operation"}, // "get", "has", "set", "flush"
	)
)
