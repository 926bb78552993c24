// Package cache implements the response cache that rule actions drive.
//
// The Manager stores a response in two stores under one request
// fingerprint: the body in a content store and everything else in a metadata
// store. Both halves carry the same tags and TTL, so a single tag flush
// invalidates every response derived from, say, one controller.
//
// # Basic Usage
//
//	meta := store.NewRedisStore(redisClient, "cover:meta", "metadata")
//	content := store.NewRedisStore(redisClient, "cover:content", "content")
//
//	manager := cache.NewManager(meta, content, cache.Config{
//		Environment:     "Production",
//		DefaultLifetime: 5 * time.Minute,
//	}, logger)
//
//	// before dispatch
//	if cache.RequestAllowsCaching(req) {
//		hit, err := manager.Get(ctx, req, resp, session)
//		...
//	}
//
//	// after dispatch
//	if cache.RequestAllowsCaching(req) && cache.ResponseCanBeCached(resp) {
//		stored, err := manager.Set(ctx, req, resp, session)
//		...
//	}
//
// The Manager never applies the cacheability predicates itself; the rules
// that call it decide.
//
// # Wire Artifacts
//
//   - X-Cover-Cache (response): "hit" or "miss"
//   - X-Cover-CacheIdentifier (request): the fingerprint computed by Get,
//     reused by Set
//
// # Tags
//
//	controllerObject%<controller>      backslashes replaced by "_"
//	format%<format>
//	action%<action>
//	controllerAction%<controller>-<action>
//	session-<id>                       only for started sessions
//	<extra>                            tags added with Request.AddCacheTag
//
// # Metrics
//
//   - cover_cache_hits_total
//   - cover_cache_misses_total
//   - cover_cache_stores_total
//   - cover_cache_skipped_stores_total
//   - cover_cache_entry_bytes
//   - cover_cache_errors_total{operation}
//   - cover_cache_flushed_entries_total
package cache
