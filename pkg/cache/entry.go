package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/cover/pkg/mvc"
)

// CacheEntry is a cached response. Content is kept in the content store,
// everything else is serialized into the metadata store.
type CacheEntry struct {
	// StatusCode and StatusMessage form the status line
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`

	// Headers are the response headers, without the diagnostic header
	Headers http.Header `json:"headers"`

	// LastModified is when the response was stored
	LastModified time.Time `json:"last_modified"`

	// Content is the response body
	Content string `json:"-"`
}

// newEntry snapshots resp. The response itself is not modified.
func newEntry(resp *mvc.Response) *CacheEntry {
	headers := resp.Header.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Del(HeaderCache)

	return &CacheEntry{
		StatusCode:    resp.StatusCode,
		StatusMessage: resp.StatusMessage,
		Headers:       headers,
		LastModified:  resp.LastModified,
		Content:       resp.Content,
	}
}

// metadata serializes the body-less part of the entry.
func (e *CacheEntry) metadata() ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(metadata []byte, content []byte) (*CacheEntry, error) {
	var entry CacheEntry
	if err := json.Unmarshal(metadata, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	entry.Content = string(content)
	return &entry, nil
}

// applyTo fills resp from the entry. Headers are replaced, not merged.
func (e *CacheEntry) applyTo(resp *mvc.Response) {
	resp.Header = e.Headers.Clone()
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	resp.SetStatus(e.StatusCode, e.StatusMessage)
	resp.Content = e.Content
	resp.LastModified = e.LastModified
}
