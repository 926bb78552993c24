package dispatch

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/cover/pkg/mvc"
)

// SessionFunc returns the session of an inbound request, or nil.
type SessionFunc func(r *http.Request) *mvc.Session

// Handler serves routed requests through an Interceptor.
//
// Requests the router does not resolve are passed to the fallback handler
// untouched, or answered with 404 when no fallback is set.
type Handler struct {
	router      *mvc.Router
	interceptor *Interceptor
	fallback    http.Handler
	sessions    SessionFunc
	logger      zerolog.Logger
}

// NewHandler creates a handler. It panics if router or interceptor is nil.
func NewHandler(router *mvc.Router, interceptor *Interceptor, logger zerolog.Logger) *Handler {
	if router == nil || interceptor == nil {
		panic("dispatch: router and interceptor are required")
	}
	return &Handler{
		router:      router,
		interceptor: interceptor,
		logger:      logger,
	}
}

// WithFallback sets the handler for unrouted requests.
func (h *Handler) WithFallback(fallback http.Handler) *Handler {
	h.fallback = fallback
	return h
}

// WithSessions sets the session lookup.
func (h *Handler) WithSessions(fn SessionFunc) *Handler {
	h.sessions = fn
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, action, ok := h.router.Resolve(r)
	if !ok {
		DispatchTotal.WithLabelValues(outcomePassthrough).Inc()
		if h.fallback != nil {
			h.fallback.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}

	start := time.Now()
	ctx := r.Context()
	if h.sessions != nil {
		if session := h.sessions(r); session != nil {
			ctx = mvc.WithSession(ctx, session)
		}
	}

	resp := mvc.NewResponse()
	fromCache, err := h.interceptor.Dispatch(ctx, req, resp, func(ctx context.Context, req *mvc.Request, resp *mvc.Response) error {
		if err := action(ctx, req, resp); err != nil {
			return err
		}
		req.SetDispatched(true)
		return nil
	})
	DispatchDuration.WithLabelValues(strconv.FormatBool(fromCache)).Observe(time.Since(start).Seconds())

	if err != nil {
		h.logger.Error().
			Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Str("controller", req.ControllerObjectName).
			Str("action", req.ControllerActionName).
			Msg("Request failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := resp.WriteTo(w); err != nil {
		h.logger.Warn().Err(err).Str("path", req.Path).Msg("Failed to write response")
	}
}
