// Package session contains the level session engine: the state machine
// governing phase transitions, the spawn/despawn scheduler, the countdown
// clock, and the scoring decision. All mutable session state is owned by a
// single event-loop goroutine; timers only post messages into it.
package session

import (
	"sync"
	"time"
)

// TickInterval is the countdown polling resolution. Coarser than real time
// is acceptable; this bounds countdown display jitter to about one unit.
const TickInterval = 150 * time.Millisecond

// Clock is a repeating timer producing elapsed-time ticks. At most one
// instance is active: Start while running stops the previous run first,
// and Stop after Stop is a no-op.
type Clock struct {
	mu   sync.Mutex
	stop chan struct{}
}

// NewClock creates a stopped clock.
func NewClock() *Clock {
	return &Clock{}
}

// Start begins emitting ticks at the given interval. Each tick carries the
// elapsed time since this Start call. onTick must return quickly.
func (c *Clock) Start(interval time.Duration, onTick func(elapsed time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		close(c.stop)
	}
	stop := make(chan struct{})
	c.stop = stop

	startedAt := time.Now()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				onTick(time.Since(startedAt))
			}
		}
	}()
}

// Stop halts the clock. Safe to call when already stopped.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}
