// Package receipt reconciles read state between live sessions and durable
// storage. Clients acknowledge delivered messages in batches; the reconciler
// applies each batch off the connection's read path and reports the outcome
// back to the session that sent the acknowledgement.
package receipt

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bolt/chat-server/internal/metrics"
	"github.com/bolt/chat-server/internal/presence"
	"github.com/bolt/chat-server/internal/protocol"
)

// Store is the durable message store consumed by the reconciler.
type Store interface {
	MarkRead(ctx context.Context, ids []string) (int64, error)
}

// Config holds reconciler tuning parameters.
type Config struct {
	Workers      int // goroutines draining the update queue
	QueueSize    int // buffered queue depth before MarkRead blocks
	BatchTimeout time.Duration
}

// DefaultConfig returns defaults sized for a single server.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		QueueSize:    256,
		BatchTimeout: 5 * time.Second,
	}
}

type batch struct {
	origin presence.Conn
	ids    []string
}

// Reconciler applies batched read-state updates asynchronously.
type Reconciler struct {
	store   Store
	config  Config
	batches chan batch
	wg      sync.WaitGroup
}

// NewReconciler creates a Reconciler and starts its workers.
func NewReconciler(store Store, config Config) *Reconciler {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = DefaultConfig().BatchTimeout
	}

	rc := &Reconciler{
		store:   store,
		config:  config,
		batches: make(chan batch, config.QueueSize),
	}

	for i := 0; i < config.Workers; i++ {
		rc.wg.Add(1)
		go rc.worker()
	}

	return rc
}

// MarkRead schedules a batch update setting is_read=true for the given
// message ids. An empty or nil list is a routine, expected case: it is
// logged and produces no store call and no result event.
// Otherwise the batch runs on a worker goroutine and the outcome is emitted
// to origin as a message:read-result event.
func (rc *Reconciler) MarkRead(origin presence.Conn, ids []string) {
	if len(ids) == 0 {
		log.Printf("receipt: no unseen messages to update")
		return
	}

	rc.batches <- batch{origin: origin, ids: ids}
}

func (rc *Reconciler) worker() {
	defer rc.wg.Done()

	for b := range rc.batches {
		ctx, cancel := context.WithTimeout(context.Background(), rc.config.BatchTimeout)
		count, err := rc.store.MarkRead(ctx, b.ids)
		cancel()

		if err != nil {
			log.Printf("receipt: batch update failed (%d ids): %v", len(b.ids), err)
			rc.emit(b.origin, protocol.ReadResultErrorMsg{
				Status: protocol.StatusError,
				Error:  err.Error(),
			})
			continue
		}

		metrics.ReadReceiptBatchSize.Observe(float64(len(b.ids)))
		rc.emit(b.origin, protocol.ReadResultMsg{
			Status:       protocol.StatusSuccess,
			UpdatedCount: count,
			UpdatedIDs:   b.ids,
		})
	}
}

// emit sends a read-result event to the originating session. A session that
// disconnected while its batch was in flight simply misses the report.
func (rc *Reconciler) emit(origin presence.Conn, payload interface{}) {
	if origin == nil {
		return
	}
	data, err := protocol.NewServerMessage(protocol.TypeReadResult, payload)
	if err != nil {
		log.Printf("receipt: failed to build read result: %v", err)
		return
	}
	if err := origin.WriteMessage(data); err != nil {
		log.Printf("receipt: failed to send read result: %v", err)
	}
}

// Close stops accepting batches and waits for queued updates to finish.
func (rc *Reconciler) Close() {
	close(rc.batches)
	rc.wg.Wait()
}
