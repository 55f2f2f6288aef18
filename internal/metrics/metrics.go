// Package metrics provides Prometheus instrumentation for the Bolt realtime
// server. It exposes gauges for connection and presence counts, counters for
// delivery throughput, and a histogram for read-receipt batch sizes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bolt_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// OnlineUsers tracks the current size of the presence roster.
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bolt_online_users",
		Help: "Current number of users in the presence table",
	})

	// MessagesForwarded counts messages forwarded to an online recipient.
	MessagesForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bolt_messages_forwarded_total",
		Help: "Messages forwarded live to an online recipient",
	})

	// MessagesSaved counts messages successfully persisted.
	MessagesSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bolt_messages_saved_total",
		Help: "Messages durably persisted",
	})

	// MessageSaveErrors counts failed persistence attempts.
	MessageSaveErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bolt_message_save_errors_total",
		Help: "Failed message persistence attempts",
	})

	// RosterBroadcasts counts full-roster presence broadcasts.
	RosterBroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bolt_roster_broadcasts_total",
		Help: "users:online broadcasts sent to all connections",
	})

	// ReadReceiptBatchSize records the size of applied read-receipt batches.
	ReadReceiptBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bolt_read_receipt_batch_size",
		Help:    "Number of message ids per applied read-receipt batch",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		OnlineUsers,
		MessagesForwarded,
		MessagesSaved,
		MessageSaveErrors,
		RosterBroadcasts,
		ReadReceiptBatchSize,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
