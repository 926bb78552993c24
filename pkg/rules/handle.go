package rules

import (
	"context"

	"github.com/Sternrassler/cover/pkg/cache"
	"github.com/Sternrassler/cover/pkg/mvc"
)

// CacheHandle exposes the response cache to rule expressions. It is bound to
// the context and session of one step evaluation so expressions need not pass
// them.
type CacheHandle struct {
	ctx     context.Context
	manager *cache.Manager
	session *mvc.Session
}

// NewCacheHandle binds manager to ctx and session.
func NewCacheHandle(ctx context.Context, manager *cache.Manager, session *mvc.Session) *CacheHandle {
	return &CacheHandle{ctx: ctx, manager: manager, session: session}
}

// Get fills resp from the cache. See cache.Manager.Get.
func (h *CacheHandle) Get(req *mvc.Request, resp *mvc.Response) (bool, error) {
	return h.manager.Get(h.ctx, req, resp, h.session)
}

// Has reports whether a complete entry exists for req.
func (h *CacheHandle) Has(req *mvc.Request) (bool, error) {
	return h.manager.Has(h.ctx, req, h.session)
}

// Set stores resp for req. See cache.Manager.Set.
func (h *CacheHandle) Set(req *mvc.Request, resp *mvc.Response) (bool, error) {
	return h.manager.Set(h.ctx, req, resp, h.session)
}

// FlushByTag drops every entry carrying tag.
func (h *CacheHandle) FlushByTag(tag string) (int, error) {
	return h.manager.FlushByTag(h.ctx, tag)
}

// AllowsCaching reports whether req may be served from cache.
func (h *CacheHandle) AllowsCaching(req *mvc.Request) bool {
	return cache.RequestAllowsCaching(req)
}

// CanBeCached reports whether resp may be stored.
func (h *CacheHandle) CanBeCached(resp *mvc.Response) bool {
	return cache.ResponseCanBeCached(resp)
}
