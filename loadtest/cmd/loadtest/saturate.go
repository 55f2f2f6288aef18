package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bolt/chat-server/loadtest/client"
	"github.com/bolt/chat-server/loadtest/stats"
)

// runSaturate implements the connection saturation test. It opens a specified
// number of WebSocket connections to the server, ramping up over a
// configurable duration, then holds them open for a hold period. This test is
// designed to find the maximum connection capacity before the server starts
// rejecting or dropping connections, and to observe how roster broadcast cost
// grows with the online population.
func runSaturate(args []string) {
	fs := flag.NewFlagSet("saturate", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	connections := fs.Int("connections", 1000, "Number of connections to open")
	rampUp := fs.Duration("ramp", 10*time.Second, "Ramp-up duration")
	hold := fs.Duration("hold", 30*time.Second, "Hold duration after all connections are open")
	concurrency := fs.Int("concurrency", 50, "Maximum simultaneous connection attempts during ramp-up")
	fs.Parse(args)

	fmt.Printf("Saturate test: %d connections to %s (ramp=%s, hold=%s, concurrency=%d)\n",
		*connections, *url, *rampUp, *hold, *concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()

	var mu sync.Mutex
	clients := make([]*client.Client, 0, *connections)

	interval := *rampUp / time.Duration(*connections)
	if interval <= 0 {
		interval = time.Millisecond
	}

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	fmt.Println("\n--- Ramp-up phase ---")

	interrupted := false
ramp:
	for i := 0; i < *connections; i++ {
		select {
		case <-ctx.Done():
			interrupted = true
			break ramp
		case <-time.After(interval):
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			defer func() { <-sem }()

			userID := fmt.Sprintf("loadtest-user-%05d", n)
			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			c, err := client.New(dialCtx, *url, userID)
			if err != nil {
				collector.AddError()
				return
			}
			collector.AddConnect(c.GetMetrics().ConnectLatency)

			mu.Lock()
			clients = append(clients, c)
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	fmt.Printf("Ramp-up complete: %d connections open, %d errors\n",
		collector.ConnectionCount(), collector.ErrorCount())

	if !interrupted {
		fmt.Println("\n--- Hold phase ---")
		select {
		case <-ctx.Done():
		case <-time.After(*hold):
		}
	}

	fmt.Println("\nClosing connections...")
	mu.Lock()
	for _, c := range clients {
		c.Close()
	}
	mu.Unlock()

	collector.Report()
}
