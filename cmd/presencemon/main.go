package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bolt/chat-server/internal/messaging"
)

// The presence monitor is a sidecar daemon that watches the NATS presence and
// persistence subjects and exposes a fleet-wide Prometheus view. Each chat
// server only knows about its own sockets; this process aggregates what every
// server publishes.

var (
	rosterSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "boltmon_roster_size",
		Help: "Latest roster size reported per chat server.",
	}, []string{"server"})

	offlineEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boltmon_offline_events_total",
		Help: "Users observed going offline, per chat server.",
	}, []string{"server"})

	persistedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boltmon_messages_persisted_total",
		Help: "Messages observed as durably stored across the fleet.",
	})
)

func init() {
	prometheus.MustRegister(rosterSize, offlineEvents, persistedMessages)
}

func main() {
	log.Println("Starting Bolt presence monitor...")

	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "bolt-presencemon"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	err = natsClient.SubscribePresenceChanged(func(data []byte) {
		var event messaging.PresenceEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[presencemon] failed to unmarshal presence event: %v", err)
			return
		}
		rosterSize.WithLabelValues(event.Server).Set(float64(len(event.Online)))
		log.Printf("[presencemon] server=%s online=%d", event.Server, len(event.Online))
	})
	if err != nil {
		log.Fatalf("failed to subscribe to presence.changed: %v", err)
	}

	err = natsClient.SubscribeUserOffline(func(data []byte) {
		var event messaging.OfflineEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[presencemon] failed to unmarshal offline event: %v", err)
			return
		}
		offlineEvents.WithLabelValues(event.Server).Inc()
		log.Printf("[presencemon] user=%s went offline on server=%s last_seen=%d",
			event.UserID, event.Server, event.LastSeen)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to presence.offline: %v", err)
	}

	err = natsClient.SubscribeMessagePersisted(func(data []byte) {
		var event messaging.PersistedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[presencemon] failed to unmarshal persisted event: %v", err)
			return
		}
		persistedMessages.Inc()
	})
	if err != nil {
		log.Fatalf("failed to subscribe to message.persisted: %v", err)
	}

	metricsAddr := ":9102"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	log.Printf("Bolt presence monitor running")
	log.Printf("  nats_url:     %s", natsConfig.URL)
	log.Printf("  metrics_addr: %s", metricsAddr)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}
