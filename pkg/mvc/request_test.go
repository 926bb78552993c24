package mvc

import (
	"context"
	"reflect"
	"testing"
)

func TestRequest_Dispatched(t *testing.T) {
	req := NewRequest("GET", "/")
	if req.IsDispatched() {
		t.Error("new request should not be dispatched")
	}

	if !req.MarkDispatched() || !req.IsDispatched() {
		t.Error("MarkDispatched should set the flag")
	}

	req.SetDispatched(false)
	if req.IsDispatched() {
		t.Error("SetDispatched(false) should clear the flag")
	}
}

func TestRequest_Headers(t *testing.T) {
	req := &Request{}
	if got := req.GetHeader("Accept"); got != "" {
		t.Errorf("GetHeader on nil header = %q", got)
	}

	req.SetHeader("accept", "text/html")
	if got := req.GetHeader("Accept"); got != "text/html" {
		t.Errorf("GetHeader = %q, want text/html", got)
	}
}

func TestRequest_CacheTags(t *testing.T) {
	req := NewRequest("GET", "/")

	if n := req.AddCacheTag("node-1"); n != 1 {
		t.Errorf("AddCacheTag = %d, want 1", n)
	}
	req.AddCacheTag("")
	req.AddCacheTag("node-1")
	req.AddCacheTag("node-2")

	tags := req.CacheTags()
	if !reflect.DeepEqual(tags, []string{"node-1", "node-2"}) {
		t.Errorf("CacheTags = %v", tags)
	}

	tags[0] = "mutated"
	if req.CacheTags()[0] != "node-1" {
		t.Error("CacheTags should return a copy")
	}
}

func TestSessionFromContext(t *testing.T) {
	if s := SessionFromContext(context.Background()); s != nil {
		t.Errorf("empty context session = %+v", s)
	}

	var missing *Session
	if missing.IsStarted() {
		t.Error("nil session should not be started")
	}

	s := &Session{ID: "abc", Started: true}
	ctx := WithSession(context.Background(), s)
	if got := SessionFromContext(ctx); got != s || !got.IsStarted() {
		t.Errorf("SessionFromContext = %+v", got)
	}
}
