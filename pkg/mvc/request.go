// Package mvc provides the request, response and session values the cache
// layer works on, plus adapters between them and net/http.
//
// The types are deliberately small: the hosting application owns routing and
// controller execution, the cache layer only reads request identity, flips the
// dispatched flag and reads or writes a single request header.
package mvc

import (
	"net/http"
	"net/url"
)

// Request is a routed request as seen by a controller.
type Request struct {
	// Method is the HTTP method (GET, HEAD, ...).
	Method string

	// Scheme and Host identify the site the request was made against.
	Scheme string
	Host   string

	// Path is the URL path without query string.
	Path string

	// RequestURI is the unmodified path and query of the inbound request.
	// It is not part of the request identity.
	RequestURI string

	// Query holds the parsed query parameters.
	Query url.Values

	// Format is the requested response format (e.g. "html", "json").
	Format string

	// ControllerObjectName identifies the controller handling the request.
	ControllerObjectName string

	// ControllerActionName is the action on that controller.
	ControllerActionName string

	// Arguments are the route arguments resolved by the router.
	Arguments map[string]string

	// Header holds the request headers.
	Header http.Header

	dispatched bool
	tags       []string
}

// NewRequest creates a request with initialized maps.
func NewRequest(method, path string) *Request {
	return &Request{
		Method:    method,
		Path:      path,
		Query:     url.Values{},
		Arguments: map[string]string{},
		Header:    http.Header{},
	}
}

// IsDispatched reports whether a response has already been produced.
func (r *Request) IsDispatched() bool {
	return r.dispatched
}

// SetDispatched sets the dispatched flag.
func (r *Request) SetDispatched(dispatched bool) {
	r.dispatched = dispatched
}

// MarkDispatched sets the dispatched flag and returns true. It exists so rule
// actions can flip the flag from an expression that must yield a value.
func (r *Request) MarkDispatched() bool {
	r.dispatched = true
	return true
}

// GetHeader returns the first value of the named header.
func (r *Request) GetHeader(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// SetHeader replaces the named header.
func (r *Request) SetHeader(name, value string) {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(name, value)
}

// AddCacheTag attaches an additional invalidation tag (e.g. "node-42") that
// will be stored with any response cached for this request. Returns the
// number of extra tags. Empty and repeated tags are ignored.
func (r *Request) AddCacheTag(tag string) int {
	if tag == "" {
		return len(r.tags)
	}
	for _, t := range r.tags {
		if t == tag {
			return len(r.tags)
		}
	}
	r.tags = append(r.tags, tag)
	return len(r.tags)
}

// CacheTags returns the extra tags in the order they were added.
func (r *Request) CacheTags() []string {
	out := make([]string, len(r.tags))
	copy(out, r.tags)
	return out
}
