// Package delivery routes direct messages between connected users. A route
// forwards the message to the recipient's live connection when one exists,
// and always hands the message to the durable store. The forward happens
// first so the online recipient is not kept waiting on a disk write.
package delivery

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bolt/chat-server/internal/message"
	"github.com/bolt/chat-server/internal/metrics"
	"github.com/bolt/chat-server/internal/presence"
	"github.com/bolt/chat-server/internal/protocol"
)

// Store is the durable message store consumed by the router.
type Store interface {
	Create(ctx context.Context, m *message.Message) (*message.StoredMessage, error)
}

// Presence is the recipient lookup consumed by the router.
type Presence interface {
	Lookup(userID string) presence.Conn
}

// Config holds router tuning parameters.
type Config struct {
	SaveWorkers   int // goroutines draining the persistence queue
	SaveQueueSize int // buffered queue depth before Route blocks

	// OnSaved, when set, is called after each successful persistence with
	// the stored message. Used for metrics and event fan-out.
	OnSaved func(m *message.StoredMessage)

	// SaveTimeout bounds each store call.
	SaveTimeout time.Duration
}

// DefaultConfig returns persistence defaults sized for a single server.
func DefaultConfig() Config {
	return Config{
		SaveWorkers:   8,
		SaveQueueSize: 1024,
		SaveTimeout:   5 * time.Second,
	}
}

type saveJob struct {
	sender presence.Conn // sender's own connection, for failure reporting
	msg    *message.Message
}

// Router delivers messages to online recipients and persists every message
// through a pool of save workers. The pool makes the "forward now, persist
// in the background" decision an explicit API shape: Route returns as soon
// as the save is queued, and save outcomes are reported back to the sender
// via an event on their own connection.
type Router struct {
	presence Presence
	store    Store
	config   Config

	saves chan saveJob
	wg    sync.WaitGroup
}

// NewRouter creates a Router and starts its save workers.
func NewRouter(p Presence, store Store, config Config) *Router {
	if config.SaveWorkers <= 0 {
		config.SaveWorkers = DefaultConfig().SaveWorkers
	}
	if config.SaveQueueSize <= 0 {
		config.SaveQueueSize = DefaultConfig().SaveQueueSize
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = DefaultConfig().SaveTimeout
	}

	r := &Router{
		presence: p,
		store:    store,
		config:   config,
		saves:    make(chan saveJob, config.SaveQueueSize),
	}

	for i := 0; i < config.SaveWorkers; i++ {
		r.wg.Add(1)
		go r.saveWorker()
	}

	return r
}

// Route constructs a message stamped with the current time, forwards it to
// the receiver's connection if one is registered, and queues exactly one
// persistence attempt. Forward and persistence outcomes are independent: a
// failed save does not retract an already-forwarded event, and a missing
// recipient does not skip the save. The sender parameter is the sender's
// own connection, used only to report save failures.
func (r *Router) Route(sender presence.Conn, senderID, receiverID, text, image string) {
	m := &message.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now().UTC(),
		IsRead:     false,
	}

	// Forward before persisting: perceived latency to the online recipient
	// matters more than durability confirmation order.
	if conn := r.presence.Lookup(receiverID); conn != nil {
		data, err := protocol.NewServerMessage(protocol.TypeMessageReceive, protocol.MessageReceiveMsg{
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Text:       m.Text,
			Image:      m.Image,
			CreatedAt:  m.CreatedAt,
		})
		if err != nil {
			log.Printf("delivery: failed to build message:receive from=%s to=%s: %v", senderID, receiverID, err)
		} else if err := conn.WriteMessage(data); err != nil {
			log.Printf("delivery: forward to %s failed: %v", receiverID, err)
		} else {
			metrics.MessagesForwarded.Inc()
		}
	}

	// Exactly one persistence attempt per route. Blocks only when the
	// queue is full, which backpressures the sender's own read loop.
	r.saves <- saveJob{sender: sender, msg: m}
}

// saveWorker drains the persistence queue. Failures are logged and reported
// to the sender's own connection only; there is no retry.
func (r *Router) saveWorker() {
	defer r.wg.Done()

	for job := range r.saves {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.SaveTimeout)
		stored, err := r.store.Create(ctx, job.msg)
		cancel()

		if err != nil {
			log.Printf("delivery: failed to save message from=%s to=%s: %v",
				job.msg.SenderID, job.msg.ReceiverID, err)
			metrics.MessageSaveErrors.Inc()
			r.reportSaveFailure(job.sender)
			continue
		}

		metrics.MessagesSaved.Inc()
		if r.config.OnSaved != nil {
			r.config.OnSaved(stored)
		}
	}
}

func (r *Router) reportSaveFailure(sender presence.Conn) {
	if sender == nil {
		return
	}
	data, err := protocol.NewServerMessage(protocol.TypeSaveError, protocol.SaveErrorMsg{
		Message: "Failed to save message",
	})
	if err != nil {
		log.Printf("delivery: failed to build %s: %v", protocol.TypeSaveError, err)
		return
	}
	if err := sender.WriteMessage(data); err != nil {
		log.Printf("delivery: failed to notify sender of save error: %v", err)
	}
}

// Close stops accepting routes and waits for all queued saves to finish.
func (r *Router) Close() {
	close(r.saves)
	r.wg.Wait()
}
