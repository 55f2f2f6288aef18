package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/bolt/chat-server/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	c.frames = append(c.frames, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) decoded(t *testing.T) []map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]interface{}
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		out = append(out, m)
	}
	return out
}

type fakeStore struct {
	mu      sync.Mutex
	batches [][]string
	count   int64
	fail    bool
}

func (s *fakeStore) MarkRead(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	s.batches = append(s.batches, ids)
	s.mu.Unlock()
	if s.fail {
		return 0, errors.New("update failed")
	}
	return s.count, nil
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func newTestReconciler(store Store) *Reconciler {
	return NewReconciler(store, Config{Workers: 1, QueueSize: 16})
}

func TestMarkRead_EmptyList_NoStoreCallNoEvent(t *testing.T) {
	store := &fakeStore{}
	origin := &fakeConn{}
	rc := newTestReconciler(store)

	rc.MarkRead(origin, []string{})
	rc.MarkRead(origin, nil)
	rc.Close()

	if store.calls() != 0 {
		t.Errorf("expected no store calls, got %d", store.calls())
	}
	if len(origin.frames) != 0 {
		t.Errorf("expected no result events, got %d", len(origin.frames))
	}
}

func TestMarkRead_Success(t *testing.T) {
	store := &fakeStore{count: 2}
	origin := &fakeConn{}
	rc := newTestReconciler(store)

	rc.MarkRead(origin, []string{"id-1", "id-2"})
	rc.Close()

	if store.calls() != 1 {
		t.Fatalf("expected 1 store call, got %d", store.calls())
	}
	if len(store.batches[0]) != 2 {
		t.Fatalf("expected batch of 2, got %v", store.batches[0])
	}

	events := origin.decoded(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 result event, got %d", len(events))
	}
	ev := events[0]
	if ev["type"] != protocol.TypeReadResult {
		t.Errorf("expected type %q, got %v", protocol.TypeReadResult, ev["type"])
	}
	if ev["status"] != protocol.StatusSuccess {
		t.Errorf("expected status success, got %v", ev["status"])
	}
	if int(ev["updatedCount"].(float64)) != 2 {
		t.Errorf("expected updatedCount 2, got %v", ev["updatedCount"])
	}
	ids := ev["updatedIds"].([]interface{})
	if len(ids) != 2 || ids[0] != "id-1" || ids[1] != "id-2" {
		t.Errorf("unexpected updatedIds: %v", ids)
	}
}

func TestMarkRead_StoreFailure(t *testing.T) {
	store := &fakeStore{fail: true}
	origin := &fakeConn{}
	rc := newTestReconciler(store)

	rc.MarkRead(origin, []string{"id-1"})
	rc.Close()

	events := origin.decoded(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 result event, got %d", len(events))
	}
	ev := events[0]
	if ev["status"] != protocol.StatusError {
		t.Errorf("expected status error, got %v", ev["status"])
	}
	if ev["error"] != "update failed" {
		t.Errorf("unexpected error message: %v", ev["error"])
	}
}

func TestMarkRead_PartialMatchReportsStoreCount(t *testing.T) {
	// A store that matched 1 of 2 ids reports exactly what it updated.
	store := &fakeStore{count: 1}
	origin := &fakeConn{}
	rc := newTestReconciler(store)

	rc.MarkRead(origin, []string{"id-1", "id-stale"})
	rc.Close()

	events := origin.decoded(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 result event, got %d", len(events))
	}
	if int(events[0]["updatedCount"].(float64)) != 1 {
		t.Errorf("expected updatedCount 1, got %v", events[0]["updatedCount"])
	}
}

func TestMarkRead_NilOriginDoesNotPanic(t *testing.T) {
	store := &fakeStore{count: 1}
	rc := newTestReconciler(store)

	rc.MarkRead(nil, []string{"id-1"})
	rc.Close()

	if store.calls() != 1 {
		t.Errorf("expected the batch to still run, got %d calls", store.calls())
	}
}
