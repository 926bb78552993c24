// Package origin fetches responses from the upstream server behind the
// cache. Its Fetch method is a controller action: on a cache miss the
// dispatch handler calls it to fill the response that may then be stored.
package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/cover/pkg/cache"
	"github.com/Sternrassler/cover/pkg/mvc"
)

// Prometheus metrics for origin requests.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cover_origin_requests_total",
		Help: "Total origin requests by status",
	}, []string{"status"})

	originRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cover_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds including retries",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cover_origin_errors_total",
		Help: "Total origin errors by class",
	}, []string{"class"})
)

// Routing identity of proxied requests.
const (
	ControllerObjectName = "Upstream"
	ActionName           = "proxy"
)

// hopHeaders are not forwarded in either direction (RFC 7230, section 6.1).
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Config holds origin client configuration.
type Config struct {
	// BaseURL is the absolute URL of the origin (required)
	BaseURL string

	// Timeout bounds a single attempt
	Timeout time.Duration

	// Retry controls retries of safe requests
	Retry RetryConfig
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Client fetches responses from the origin.
type Client struct {
	httpClient *http.Client
	base       *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates an origin client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("origin base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin url %q must be absolute", cfg.BaseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			// Redirects are answered to the client, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		base:       base,
		config:     cfg,
		logger:     logger,
	}, nil
}

// SetHTTPClient replaces the HTTP client (for testing). The replacement
// should not follow redirects.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Route returns the catch-all GET route served by Fetch.
func (c *Client) Route() mvc.Route {
	return mvc.Route{
		Method:     http.MethodGet,
		Pattern:    "/{path...}",
		Controller: ControllerObjectName,
		Action:     ActionName,
		Handler:    c.Fetch,
	}
}

// Passthrough forwards requests the router does not handle.
func (c *Client) Passthrough() http.Handler {
	return httputil.NewSingleHostReverseProxy(c.base)
}

// fetched is one origin response, read into memory.
type fetched struct {
	status int
	header http.Header
	body   []byte
}

// Fetch requests req.RequestURI from the origin and copies the response into
// resp. Network failures and 5xx responses of GET and HEAD requests are
// retried; once retries are exhausted a 5xx response is copied like any
// other, while a network failure is returned.
func (c *Client) Fetch(ctx context.Context, req *mvc.Request, resp *mvc.Response) error {
	start := time.Now()
	defer func() {
		originRequestDuration.Observe(time.Since(start).Seconds())
	}()

	target := c.base.Scheme + "://" + c.base.Host + c.base.Path + req.RequestURI

	retry := c.config.Retry
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		retry.MaxAttempts = 1
	}

	var last *fetched
	err := retryWithBackoff(ctx, retry, c.logger, func() (ErrorClass, error) {
		f, err := c.do(ctx, req, target)
		if err != nil {
			originErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			originRequestsTotal.WithLabelValues("network_error").Inc()
			c.logger.Warn().Err(err).Str("url", target).Msg("Origin request failed")
			return ErrorClassNetwork, &OriginError{Method: req.Method, URL: target, ErrorClass: ErrorClassNetwork, Err: err}
		}
		last = f
		originRequestsTotal.WithLabelValues(strconv.Itoa(f.status)).Inc()

		class := classify(f.status)
		if class == "" {
			return "", nil
		}
		originErrorsTotal.WithLabelValues(string(class)).Inc()
		if !shouldRetry(class) {
			// Client errors are the origin's answer; pass them on.
			return "", nil
		}
		return class, &OriginError{Method: req.Method, URL: target, StatusCode: f.status, ErrorClass: class}
	})

	if err != nil {
		var originErr *OriginError
		if last == nil || !errors.As(err, &originErr) || originErr.ErrorClass != ErrorClassServer {
			return err
		}
	}

	resp.SetStatus(last.status, "")
	for key, values := range last.header {
		for _, value := range values {
			resp.Header.Add(key, value)
		}
	}
	removeHopHeaders(resp.Header)
	resp.Header.Del("Content-Length")
	resp.SetContent(string(last.body))

	c.logger.Debug().
		Str("url", target).
		Int("status_code", last.status).
		Dur("duration", time.Since(start)).
		Msg("Fetched from origin")
	return nil
}

func (c *Client) do(ctx context.Context, req *mvc.Request, target string) (*fetched, error) {
	out, err := http.NewRequestWithContext(ctx, req.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if req.Header != nil {
		out.Header = req.Header.Clone()
	}
	out.Header.Del(cache.HeaderCacheIdentifier)
	removeHopHeaders(out.Header)

	res, err := c.httpClient.Do(out)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &fetched{status: res.StatusCode, header: res.Header, body: body}, nil
}

func removeHopHeaders(h http.Header) {
	for _, key := range hopHeaders {
		h.Del(key)
	}
}
