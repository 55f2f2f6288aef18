// Package messaging provides a NATS client wrapper for publishing presence
// and delivery events to external consumers (monitors, future multi-server
// fan-out). It handles connection lifecycle, subject-based subscriptions,
// and convenience methods for the server's event subjects. Publishing is a
// side channel only: a failed publish never affects delivery or presence.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects published by the realtime server.
const (
	SubjectPresenceChanged  = "presence.changed"
	SubjectUserOffline      = "presence.offline"
	SubjectMessagePersisted = "message.persisted"
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "bolt-chat",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// PublishPresenceChanged publishes a roster snapshot event.
func (c *NATSClient) PublishPresenceChanged(data []byte) error {
	return c.Publish(SubjectPresenceChanged, data)
}

// SubscribePresenceChanged subscribes to roster snapshot events.
func (c *NATSClient) SubscribePresenceChanged(handler func(data []byte)) error {
	return c.Subscribe(SubjectPresenceChanged, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishUserOffline publishes a user-offline event.
func (c *NATSClient) PublishUserOffline(data []byte) error {
	return c.Publish(SubjectUserOffline, data)
}

// SubscribeUserOffline subscribes to user-offline events.
func (c *NATSClient) SubscribeUserOffline(handler func(data []byte)) error {
	return c.Subscribe(SubjectUserOffline, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishMessagePersisted publishes a message-persisted event.
func (c *NATSClient) PublishMessagePersisted(data []byte) error {
	return c.Publish(SubjectMessagePersisted, data)
}

// SubscribeMessagePersisted subscribes to message-persisted events.
func (c *NATSClient) SubscribeMessagePersisted(handler func(data []byte)) error {
	return c.Subscribe(SubjectMessagePersisted, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) Unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
