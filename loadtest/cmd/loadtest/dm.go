package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bolt/chat-server/loadtest/client"
	"github.com/bolt/chat-server/loadtest/stats"
)

// runDM implements the direct message exchange test. It connects pairs of
// users, has each pair trade messages at a fixed rate, and measures delivery
// latency from send to the partner's message:receive event. Recipients ack
// every delivered message so the read-receipt path is exercised under load
// as well.
func runDM(args []string) {
	fs := flag.NewFlagSet("dm", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	pairs := fs.Int("pairs", 100, "Number of user pairs")
	duration := fs.Duration("duration", 30*time.Second, "Test duration")
	rate := fs.Duration("rate", 500*time.Millisecond, "Delay between messages per sender")
	fs.Parse(args)

	fmt.Printf("DM test: %d pairs against %s (duration=%s, rate=%s)\n",
		*pairs, *url, *duration, *rate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runPair(ctx, collector, *url, n, *duration, *rate)
		}(i)
	}

	wg.Wait()
	collector.Report()
}

// runPair connects two users and has them message each other for the test
// duration. The sent text carries a send timestamp so the receiver can
// compute one-way delivery latency without clock coordination between
// goroutines.
func runPair(ctx context.Context, collector *stats.Collector, url string, n int, duration, rate time.Duration) {
	aliceID := fmt.Sprintf("dm-a-%05d", n)
	bobID := fmt.Sprintf("dm-b-%05d", n)

	alice, err := connectPeer(ctx, collector, url, aliceID)
	if err != nil {
		return
	}
	defer alice.Close()

	bob, err := connectPeer(ctx, collector, url, bobID)
	if err != nil {
		return
	}
	defer bob.Close()

	deadline := time.After(duration)
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
		}

		// Alternate direction each tick so both sides send and receive.
		sender, receiverID := alice, bobID
		if seq%2 == 1 {
			sender, receiverID = bob, aliceID
		}

		text := fmt.Sprintf("msg %d sent_at=%d", seq, time.Now().UnixNano())
		if err := sender.SendMessage(receiverID, text); err != nil {
			collector.AddError()
			return
		}
		seq++
	}
}

// connectPeer dials a client, wires its message:receive handler to record
// delivery latency and ack the message, and records the connect latency.
func connectPeer(ctx context.Context, collector *stats.Collector, url, userID string) (*client.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := client.New(dialCtx, url, userID)
	if err != nil {
		collector.AddError()
		return nil, err
	}
	collector.AddConnect(c.GetMetrics().ConnectLatency)

	recvSeq := 0
	c.On(client.TypeMessageReceive, func(raw json.RawMessage) {
		var msg struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}

		if ns, ok := parseSentAt(msg.Text); ok {
			collector.AddMsgLatency(time.Since(time.Unix(0, ns)))
		}

		// Delivered events carry no storage id (delivery runs ahead of
		// persistence), so acks use synthetic ids. The server still runs
		// the full read-receipt batch update; it just matches zero rows.
		recvSeq++
		if err := c.AckMessages([]string{fmt.Sprintf("%s-ack-%d", userID, recvSeq)}); err != nil {
			collector.AddError()
		}
	})

	c.On(client.TypeSaveError, func(json.RawMessage) {
		collector.AddError()
	})

	return c, nil
}

// parseSentAt extracts the sent_at nanosecond timestamp embedded in a test
// message body.
func parseSentAt(text string) (int64, bool) {
	idx := strings.LastIndex(text, "sent_at=")
	if idx < 0 {
		return 0, false
	}
	var ns int64
	if _, err := fmt.Sscanf(text[idx:], "sent_at=%d", &ns); err != nil {
		return 0, false
	}
	return ns, true
}
