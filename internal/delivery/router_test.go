package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/bolt/chat-server/internal/message"
	"github.com/bolt/chat-server/internal/presence"
	"github.com/bolt/chat-server/internal/protocol"
)

// fakeConn records frames written to it.
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

func (c *fakeConn) typedFrames(t *testing.T, msgType string) []map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]interface{}
	for _, f := range c.frames {
		var m map[string]interface{}
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

// fakeStore counts Create calls and optionally fails.
type fakeStore struct {
	mu      sync.Mutex
	created []*message.Message
	fail    bool
}

func (s *fakeStore) Create(ctx context.Context, m *message.Message) (*message.StoredMessage, error) {
	s.mu.Lock()
	s.created = append(s.created, m)
	s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store unavailable")
	}
	return &message.StoredMessage{ID: "m-1", Message: *m}, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func newTestRouter(t *testing.T, table *presence.Table, store Store, onSaved func(*message.StoredMessage)) *Router {
	t.Helper()
	return NewRouter(table, store, Config{
		SaveWorkers:   1,
		SaveQueueSize: 16,
		OnSaved:       onSaved,
	})
}

func TestRoute_OnlineRecipient_ForwardAndPersist(t *testing.T) {
	table := presence.NewTable()
	store := &fakeStore{}
	sender := &fakeConn{}
	receiver := &fakeConn{}
	table.Register("u2", receiver)

	router := newTestRouter(t, table, store, nil)
	router.Route(sender, "u1", "u2", "hi", "")
	router.Close()

	if store.count() != 1 {
		t.Fatalf("expected exactly 1 persistence attempt, got %d", store.count())
	}

	forwards := receiver.typedFrames(t, protocol.TypeMessageReceive)
	if len(forwards) != 1 {
		t.Fatalf("expected 1 forward to online recipient, got %d", len(forwards))
	}
	if forwards[0]["senderId"] != "u1" || forwards[0]["text"] != "hi" {
		t.Errorf("unexpected forward payload: %v", forwards[0])
	}
	if forwards[0]["createdAt"] == nil {
		t.Error("forward must carry createdAt")
	}

	if len(sender.frames) != 0 {
		t.Errorf("sender must receive nothing on success, got %d frames", len(sender.frames))
	}
}

func TestRoute_OfflineRecipient_PersistOnly(t *testing.T) {
	table := presence.NewTable()
	store := &fakeStore{}
	sender := &fakeConn{}

	router := newTestRouter(t, table, store, nil)
	router.Route(sender, "u1", "u2", "hi", "")
	router.Close()

	if store.count() != 1 {
		t.Fatalf("expected exactly 1 persistence attempt, got %d", store.count())
	}

	stored := store.created[0]
	if stored.IsRead {
		t.Error("routed message must start unread")
	}
	if stored.SenderID != "u1" || stored.ReceiverID != "u2" {
		t.Errorf("unexpected stored message: %+v", stored)
	}
	if len(sender.frames) != 0 {
		t.Errorf("sender must receive nothing on success, got %d frames", len(sender.frames))
	}
}

func TestRoute_SaveFailure_ErrorToSenderOnly(t *testing.T) {
	table := presence.NewTable()
	store := &fakeStore{fail: true}
	sender := &fakeConn{}
	receiver := &fakeConn{}
	table.Register("u2", receiver)

	router := newTestRouter(t, table, store, nil)
	router.Route(sender, "u1", "u2", "hi", "")
	router.Close()

	// The forward already happened and is not retracted.
	if n := len(receiver.typedFrames(t, protocol.TypeMessageReceive)); n != 1 {
		t.Fatalf("expected forward despite save failure, got %d", n)
	}
	if n := len(receiver.typedFrames(t, protocol.TypeSaveError)); n != 0 {
		t.Errorf("recipient must not see the save error, got %d", n)
	}

	errs := sender.typedFrames(t, protocol.TypeSaveError)
	if len(errs) != 1 {
		t.Fatalf("expected 1 save error to sender, got %d", len(errs))
	}
	if errs[0]["message"] != "Failed to save message" {
		t.Errorf("unexpected error payload: %v", errs[0])
	}
}

func TestRoute_ConcurrentSendersToSameReceiver(t *testing.T) {
	table := presence.NewTable()
	store := &fakeStore{}
	receiver := &fakeConn{}
	table.Register("u3", receiver)

	router := NewRouter(table, store, Config{SaveWorkers: 4, SaveQueueSize: 64})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			router.Route(&fakeConn{}, "u1", "u3", "from u1", "")
			router.Route(&fakeConn{}, "u2", "u3", "from u2", "")
		}()
	}
	wg.Wait()
	router.Close()

	if store.count() != 20 {
		t.Errorf("expected 20 persistence attempts, got %d", store.count())
	}
	if n := len(receiver.typedFrames(t, protocol.TypeMessageReceive)); n != 20 {
		t.Errorf("expected 20 forwards, got %d", n)
	}
}

func TestRoute_OnSavedHook(t *testing.T) {
	table := presence.NewTable()
	store := &fakeStore{}

	var mu sync.Mutex
	var saved []*message.StoredMessage
	router := newTestRouter(t, table, store, func(m *message.StoredMessage) {
		mu.Lock()
		saved = append(saved, m)
		mu.Unlock()
	})

	router.Route(&fakeConn{}, "u1", "u2", "hi", "")
	router.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(saved) != 1 {
		t.Fatalf("expected OnSaved once, got %d", len(saved))
	}
	if saved[0].ID != "m-1" {
		t.Errorf("unexpected stored id: %q", saved[0].ID)
	}
}

func TestRoute_OnSavedNotCalledOnFailure(t *testing.T) {
	table := presence.NewTable()
	store := &fakeStore{fail: true}

	called := false
	router := newTestRouter(t, table, store, func(m *message.StoredMessage) {
		called = true
	})

	router.Route(&fakeConn{}, "u1", "u2", "hi", "")
	router.Close()

	if called {
		t.Error("OnSaved must not fire for failed saves")
	}
}
