package mvc

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response is the response being built for a Request.
type Response struct {
	StatusCode    int
	StatusMessage string
	Header        http.Header
	Content       string
	LastModified  time.Time
}

// NewResponse returns a 200 OK response with no content.
func NewResponse() *Response {
	return &Response{
		StatusCode:    http.StatusOK,
		StatusMessage: http.StatusText(http.StatusOK),
		Header:        http.Header{},
	}
}

// SetStatus sets the status code. An empty message falls back to the
// standard reason phrase.
func (r *Response) SetStatus(code int, message string) {
	if message == "" {
		message = http.StatusText(code)
	}
	r.StatusCode = code
	r.StatusMessage = message
}

// Status returns the status line fragment, e.g. "200 OK".
func (r *Response) Status() string {
	return strings.TrimSpace(strconv.Itoa(r.StatusCode) + " " + r.StatusMessage)
}

// GetHeader returns the first value of the named header.
func (r *Response) GetHeader(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// SetHeader replaces the named header and returns the response so rule
// actions can chain calls.
func (r *Response) SetHeader(name, value string) *Response {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(name, value)
	return r
}

// SetContent replaces the body.
func (r *Response) SetContent(content string) *Response {
	r.Content = content
	return r
}

// WriteString appends to the body.
func (r *Response) WriteString(s string) (int, error) {
	r.Content += s
	return len(s), nil
}

// WriteTo sends the response to w. Last-Modified is emitted when set and the
// handler did not provide one itself.
func (r *Response) WriteTo(w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	if !r.LastModified.IsZero() && w.Header().Get("Last-Modified") == "" {
		w.Header().Set("Last-Modified", r.LastModified.UTC().Format(http.TimeFormat))
	}

	code := r.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)

	_, err := io.WriteString(w, r.Content)
	return err
}
