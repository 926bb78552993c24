package mvc

import (
	"context"
	"net/http"
	"path"
	"strings"
)

// DefaultFormat is used when neither the route nor the path selects a format.
const DefaultFormat = "html"

// HeaderCacheIdentifier is the request header the cache attaches the
// fingerprint to. FromHTTP never copies it from the client.
const HeaderCacheIdentifier = "X-Cover-CacheIdentifier"

// ActionFunc is a controller action. It fills resp for req.
type ActionFunc func(ctx context.Context, req *Request, resp *Response) error

// Route maps a path pattern to a controller action.
//
// Pattern segments in braces capture arguments: "/articles/{id}". A final
// "{name...}" segment captures the remaining path, including slashes.
// A trailing extension on the last path segment ("/articles/5.json")
// selects the format and is stripped before matching.
type Route struct {
	Method     string
	Pattern    string
	Controller string
	Action     string
	Format     string
	Handler    ActionFunc
}

// Router resolves inbound HTTP requests to routed Requests.
type Router struct {
	routes []Route
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Handle registers a route. Routes are matched in registration order.
func (rt *Router) Handle(route Route) {
	if route.Method == "" {
		route.Method = http.MethodGet
	}
	rt.routes = append(rt.routes, route)
}

// Resolve matches r against the registered routes. It returns false when no
// route matches.
func (rt *Router) Resolve(r *http.Request) (*Request, ActionFunc, bool) {
	urlPath, format := splitFormat(r.URL.Path)

	for _, route := range rt.routes {
		if route.Method != r.Method && !(route.Method == http.MethodGet && r.Method == http.MethodHead) {
			continue
		}
		args, ok := match(route.Pattern, urlPath)
		if !ok {
			continue
		}

		req := FromHTTP(r)
		req.Path = urlPath
		req.ControllerObjectName = route.Controller
		req.ControllerActionName = route.Action
		req.Arguments = args
		switch {
		case format != "":
			req.Format = format
		case route.Format != "":
			req.Format = route.Format
		default:
			req.Format = DefaultFormat
		}
		return req, route.Handler, true
	}
	return nil, nil, false
}

// FromHTTP copies the identity of an http.Request into a Request. Routing
// fields are left empty.
func FromHTTP(r *http.Request) *Request {
	req := NewRequest(r.Method, r.URL.Path)
	req.Host = r.Host
	req.Scheme = "http"
	if r.TLS != nil {
		req.Scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		req.Scheme = proto
	}
	req.RequestURI = r.URL.RequestURI()
	req.Query = r.URL.Query()
	req.Header = r.Header.Clone()
	req.Header.Del(HeaderCacheIdentifier)
	return req
}

func splitFormat(p string) (string, string) {
	ext := path.Ext(p)
	if ext == "" || strings.Contains(ext, "/") {
		return p, ""
	}
	return strings.TrimSuffix(p, ext), strings.TrimPrefix(ext, ".")
}

func match(pattern, p string) (map[string]string, bool) {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(p, "/"), "/")

	args := map[string]string{}
	if last := want[len(want)-1]; strings.HasPrefix(last, "{") && strings.HasSuffix(last, "...}") {
		prefix := want[:len(want)-1]
		if len(got) < len(prefix) {
			return nil, false
		}
		args[last[1:len(last)-4]] = strings.Join(got[len(prefix):], "/")
		want, got = prefix, got[:len(prefix)]
	}
	if len(want) != len(got) {
		return nil, false
	}

	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return nil, false
			}
			args[seg[1:len(seg)-1]] = got[i]
			continue
		}
		if seg != got[i] {
			return nil, false
		}
	}
	return args, true
}
