package mvc

import "context"

// Session is the visitor session attached to a request, if any.
type Session struct {
	ID      string
	Started bool
}

// IsStarted reports whether the session exists and has been started.
// It is safe to call on a nil session.
func (s *Session) IsStarted() bool {
	return s != nil && s.Started
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying the session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored in ctx, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
