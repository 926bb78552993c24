// Package metrics exposes the Prometheus registry of the response cache.
// Metrics are defined in their own packages (cache, store, rules, dispatch,
// invalidation, origin) with promauto and registered on the default registerer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all cover metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the gathered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - cover_cache_hits_total (Counter): Responses served from cache
//   - cover_cache_misses_total (Counter): Lookups without a complete entry
//   - cover_cache_stores_total (Counter): Responses written to the cache
//   - cover_cache_skipped_stores_total (Counter): Set calls for undispatched requests
//   - cover_cache_entry_bytes (Histogram): Size of stored bodies
//   - cover_cache_flushed_entries_total (Counter): Entries removed by tag flushes
//   - cover_cache_errors_total{operation} (Counter): Store failures by operation
//
// Store Metrics (pkg/store):
//   - cover_store_errors_total{store, operation} (Counter): Backend failures
//
// Rule Metrics (pkg/rules):
//   - cover_rule_evaluations_total{step, outcome} (Counter): applied, skipped or error
//   - cover_step_duration_seconds{step} (Histogram): Step evaluation time
//
// Dispatch Metrics (pkg/dispatch):
//   - cover_dispatch_total{outcome} (Counter): cache, dispatched, passthrough or error
//   - cover_dispatch_duration_seconds{cache} (Histogram): Routed request handling time
//
// Invalidation Metrics (pkg/invalidation):
//   - cover_invalidations_total{source} (Counter): Flushed tags by trigger
//   - cover_invalidation_errors_total{source} (Counter): Failed flushes by trigger
//
// Origin Metrics (pkg/origin):
//   - cover_origin_requests_total{status} (Counter): Origin attempts by status code
//   - cover_origin_request_duration_seconds (Histogram): Fetch time including retries
//   - cover_origin_errors_total{class} (Counter): client, server or network
//   - cover_origin_retries_total (Counter): Retry attempts
//   - cover_origin_retry_backoff_seconds (Histogram): Backoff durations
//   - cover_origin_retry_exhausted_total (Counter): Fetches that ran out of attempts
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(cover_cache_hits_total[5m])) /
//   (sum(rate(cover_cache_hits_total[5m])) + sum(rate(cover_cache_misses_total[5m])))
//
//   # Rule Errors
//   sum by (step) (rate(cover_rule_evaluations_total{outcome="error"}[5m]))
//
//   # P95 Handling Time of Misses
//   histogram_quantile(0.95, rate(cover_dispatch_duration_seconds_bucket{cache="false"}[5m]))
