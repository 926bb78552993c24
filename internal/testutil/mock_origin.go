// Package testutil provides testing utilities for the response cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockOriginResponse defines the behavior for a mock origin path.
type MockOriginResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable upstream server that counts requests, used
// to observe whether a request was served from cache.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockOrigin creates a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockOriginResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOrigin) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler answers with a cacheable HTML page.
func (m *MockOrigin) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<p>" + r.URL.Path + "</p>"))
}

// NewCacheableResponse creates a 200 OK response cacheable for maxAge.
func NewCacheableResponse(body string, maxAge time.Duration) MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Cache-Control": "max-age=" + strconv.Itoa(int(maxAge/time.Second)),
			"Content-Type":  "text/html; charset=utf-8",
		},
	}
}

// NewPrivateResponse creates a 200 OK response marked private.
func NewPrivateResponse(body string) MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Cache-Control": "private",
			"Content-Type":  "text/html; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal server error",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}
