package presence

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bolt/chat-server/internal/protocol"
)

// recordingConn captures every frame written to it.
type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recordingConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	c.frames = append(c.frames, data)
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) last(t *testing.T) map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		t.Fatal("no frames written")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(c.frames[len(c.frames)-1], &m); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	return m
}

func TestBroadcastRoster_AllConnectionsObserveFullRoster(t *testing.T) {
	table := NewTable()
	b := NewBroadcaster(table)

	c1 := &recordingConn{}
	c2 := &recordingConn{}
	table.Register("u1", c1)
	table.Register("u2", c2)

	roster := b.BroadcastRoster()
	if len(roster) != 2 {
		t.Fatalf("expected roster of 2, got %v", roster)
	}

	for _, c := range []*recordingConn{c1, c2} {
		m := c.last(t)
		if m["type"] != protocol.TypeUsersOnline {
			t.Errorf("expected type %q, got %v", protocol.TypeUsersOnline, m["type"])
		}
		online, ok := m["online"].([]interface{})
		if !ok {
			t.Fatalf("expected online array, got %T", m["online"])
		}
		if len(online) != 2 || online[0] != "u1" || online[1] != "u2" {
			t.Errorf("unexpected roster payload: %v", online)
		}
	}
}

func TestBroadcastRoster_AfterUnregister(t *testing.T) {
	table := NewTable()
	b := NewBroadcaster(table)

	c1 := &recordingConn{}
	c2 := &recordingConn{}
	table.Register("u1", c1)
	table.Register("u2", c2)
	table.Unregister(c2)

	b.BroadcastRoster()

	m := c1.last(t)
	online := m["online"].([]interface{})
	if len(online) != 1 || online[0] != "u1" {
		t.Errorf("expected roster [u1], got %v", online)
	}
}

func TestBroadcastOffline(t *testing.T) {
	table := NewTable()
	b := NewBroadcaster(table)

	c1 := &recordingConn{}
	table.Register("u1", c1)

	lastSeen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.BroadcastOffline("u2", lastSeen)

	m := c1.last(t)
	if m["type"] != protocol.TypeUserOffline {
		t.Errorf("expected type %q, got %v", protocol.TypeUserOffline, m["type"])
	}
	if m["userId"] != "u2" {
		t.Errorf("expected userId u2, got %v", m["userId"])
	}
	if m["lastSeen"] != "2026-08-01T12:00:00Z" {
		t.Errorf("unexpected lastSeen: %v", m["lastSeen"])
	}
}

func TestBroadcast_EmptyTableIsNoop(t *testing.T) {
	table := NewTable()
	b := NewBroadcaster(table)

	// Must not panic with no registered connections.
	b.BroadcastRoster()
	b.BroadcastOffline("u1", time.Now())
}
