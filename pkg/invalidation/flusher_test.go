package invalidation

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/cover/internal/testutil"
	"github.com/Sternrassler/cover/pkg/cache"
	"github.com/Sternrassler/cover/pkg/mvc"
)

func newTestFlusher(t *testing.T) (*Flusher, *cache.Manager, *testutil.RecordingStore, *testutil.RecordingStore) {
	t.Helper()

	meta := testutil.NewRecordingStore()
	content := testutil.NewRecordingStore()
	manager := cache.NewManager(meta, content, cache.Config{DefaultLifetime: time.Minute}, zerolog.Nop())
	return NewFlusher(manager, zerolog.Nop()), manager, meta, content
}

// storeNode caches a response of the node controller tagged with nodeID.
func storeNode(t *testing.T, manager *cache.Manager, nodeID string) *mvc.Request {
	t.Helper()

	req := mvc.NewRequest("GET", "/"+nodeID)
	req.Format = "html"
	req.ControllerObjectName = NodeControllerObjectName
	req.ControllerActionName = "show"
	req.Arguments["node"] = nodeID
	req.AddCacheTag(NodeTag(nodeID))
	req.SetDispatched(true)

	resp := mvc.NewResponse().SetContent("node " + nodeID)
	if _, err := manager.Set(context.Background(), req, resp, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	return req
}

func TestNewFlusher_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewFlusher should panic with nil target")
		}
	}()
	NewFlusher(nil, zerolog.Nop())
}

func TestFlusher_Flush(t *testing.T) {
	f, manager, meta, content := newTestFlusher(t)
	ctx := context.Background()

	req := storeNode(t, manager, "42")

	removed, err := f.Flush(ctx, SourceAPI, "node-42", " ", "")
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	ok, err := manager.Has(ctx, req, nil)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if ok {
		t.Error("entry should be gone after flush")
	}

	want := []string{"node-42"}
	if !reflect.DeepEqual(meta.Flushes(), want) || !reflect.DeepEqual(content.Flushes(), want) {
		t.Errorf("flushes = %v / %v, want %v in both stores", meta.Flushes(), content.Flushes(), want)
	}
}

func TestFlusher_NodePublished(t *testing.T) {
	f, manager, _, content := newTestFlusher(t)
	ctx := context.Background()

	storeNode(t, manager, "1")
	storeNode(t, manager, "2")

	removed, err := f.NodePublished(ctx, "1")
	if err != nil {
		t.Fatalf("NodePublished failed: %v", err)
	}
	// The controller tag covers both nodes.
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	want := []string{
		"controllerObject%TYPO3_Neos_Controller_Frontend_NodeController",
		"node-1",
	}
	if !reflect.DeepEqual(content.Flushes(), want) {
		t.Errorf("flushes = %v, want %v", content.Flushes(), want)
	}
}

func TestFlusher_StopsAtFirstError(t *testing.T) {
	boom := errors.New("store down")
	manager := cache.NewManager(&testutil.FailingStore{Err: boom}, testutil.NewRecordingStore(), cache.Config{}, zerolog.Nop())
	f := NewFlusher(manager, zerolog.Nop())

	_, err := f.Flush(context.Background(), SourceAPI, "a", "b")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}
