package network

import (
	"context"
	"testing"
	"time"

	"github.com/skydrop/server/internal/platform/logger"
)

func newRunningHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(logger.NewLogger(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func waitForMembership(t *testing.T, hub *Hub, c *Client, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		_, ok := hub.clients[c]
		hub.mu.Unlock()
		if ok == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("client membership never became %t", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// A client evicted by the hub for falling behind must survive later
// per-client deliveries from its own pump, such as an error reply or a
// replay. The send channel is closed by then; enqueue has to no-op, not
// panic.
func TestEnqueueAfterEvictionIsSafe(t *testing.T) {
	hub, cancel := newRunningHub(t)
	t.Cleanup(cancel)

	c := NewClient(hub, nil)
	c.Register()
	waitForMembership(t, hub, c, true)

	// Fill the outbound buffer so the next broadcast cannot be delivered
	// and the hub retires the client.
	for i := 0; i < cap(c.send); i++ {
		c.send <- []byte("backlog")
	}
	hub.sendFrame(Frame{Type: "PHASE"}, false)
	waitForMembership(t, hub, c, false)

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		t.Fatal("evicted client was not marked closed")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("enqueue panicked after eviction: %v", r)
		}
	}()
	c.enqueue([]byte("late reply"))
	c.sendError("late error")
}

// After the hub loop exits, unregister has no receiver. A pump goroutine
// returning a client must not block forever; the client tears itself down.
func TestDropAfterShutdownDoesNotBlock(t *testing.T) {
	hub, cancel := newRunningHub(t)

	c := NewClient(hub, nil)
	c.Register()
	waitForMembership(t, hub, c, true)

	cancel()
	select {
	case <-hub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub never shut down")
	}

	released := make(chan struct{})
	go func() {
		hub.drop(c)
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("drop blocked after hub shutdown")
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		t.Error("client send channel left open after shutdown")
	}
}

// Shutdown itself retires every connected client so write pumps drain and
// exit instead of waiting on a channel nobody feeds.
func TestShutdownRetiresConnectedClients(t *testing.T) {
	hub, cancel := newRunningHub(t)

	c := NewClient(hub, nil)
	c.Register()
	waitForMembership(t, hub, c, true)

	cancel()
	select {
	case <-hub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub never shut down")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("connected client not retired by shutdown")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
