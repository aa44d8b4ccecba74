// Package metrics provides observability for the game server.
// Counters are cheap enough to record from the session loop on every event.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Session metrics
	TickCount     int64
	SpawnCount    int64
	TapCount      int64
	TapUnknown    int64 // taps on ids already removed
	MissCount     int64
	LevelsStarted int64
	LevelsPassed  int64
	LevelsFailed  int64
	StaleDropped  int64 // timer messages from superseded generations
	QueueDropped  int64 // messages dropped because the session queue was full

	// Event journal metrics
	EventsWritten    int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a clock tick processed by the session loop.
func (c *Collector) RecordTick() {
	atomic.AddInt64(&c.TickCount, 1)
}

// RecordSpawn records a spawned object.
func (c *Collector) RecordSpawn() {
	atomic.AddInt64(&c.SpawnCount, 1)
}

// RecordTap records a tap resolution. known is false when the id was
// already removed (expected race, not an error).
func (c *Collector) RecordTap(known bool) {
	if known {
		atomic.AddInt64(&c.TapCount, 1)
	} else {
		atomic.AddInt64(&c.TapUnknown, 1)
	}
}

// RecordMiss records an object that completed its fall untouched.
func (c *Collector) RecordMiss() {
	atomic.AddInt64(&c.MissCount, 1)
}

// RecordLevelStart records a session start.
func (c *Collector) RecordLevelStart() {
	atomic.AddInt64(&c.LevelsStarted, 1)
}

// RecordResolution records a level resolution.
func (c *Collector) RecordResolution(passed bool) {
	if passed {
		atomic.AddInt64(&c.LevelsPassed, 1)
	} else {
		atomic.AddInt64(&c.LevelsFailed, 1)
	}
}

// RecordStaleDrop records a timer message discarded because its generation
// was superseded.
func (c *Collector) RecordStaleDrop() {
	atomic.AddInt64(&c.StaleDropped, 1)
}

// RecordQueueDrop records a message discarded because the session queue
// was full.
func (c *Collector) RecordQueueDrop() {
	atomic.AddInt64(&c.QueueDropped, 1)
}

// RecordEventWrite records an event write to the journal.
func (c *Collector) RecordEventWrite(err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"session": map[string]interface{}{
			"ticks":          atomic.LoadInt64(&c.TickCount),
			"spawns":         atomic.LoadInt64(&c.SpawnCount),
			"taps":           atomic.LoadInt64(&c.TapCount),
			"taps_unknown":   atomic.LoadInt64(&c.TapUnknown),
			"misses":         atomic.LoadInt64(&c.MissCount),
			"levels_started": atomic.LoadInt64(&c.LevelsStarted),
			"levels_passed":  atomic.LoadInt64(&c.LevelsPassed),
			"levels_failed":  atomic.LoadInt64(&c.LevelsFailed),
			"stale_dropped":  atomic.LoadInt64(&c.StaleDropped),
			"queue_dropped":  atomic.LoadInt64(&c.QueueDropped),
		},

		"events": map[string]interface{}{
			"written": atomic.LoadInt64(&c.EventsWritten),
			"errors":  atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP skydrop_ticks_total Clock ticks processed\n")
		fmt.Fprintf(w, "# TYPE skydrop_ticks_total counter\n")
		fmt.Fprintf(w, "skydrop_ticks_total %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP skydrop_spawns_total Objects spawned\n")
		fmt.Fprintf(w, "# TYPE skydrop_spawns_total counter\n")
		fmt.Fprintf(w, "skydrop_spawns_total %d\n\n", atomic.LoadInt64(&c.SpawnCount))

		fmt.Fprintf(w, "# HELP skydrop_taps_total Taps resolved\n")
		fmt.Fprintf(w, "# TYPE skydrop_taps_total counter\n")
		fmt.Fprintf(w, "skydrop_taps_total{known=\"true\"} %d\n", atomic.LoadInt64(&c.TapCount))
		fmt.Fprintf(w, "skydrop_taps_total{known=\"false\"} %d\n\n", atomic.LoadInt64(&c.TapUnknown))

		fmt.Fprintf(w, "# HELP skydrop_misses_total Objects that fell untouched\n")
		fmt.Fprintf(w, "# TYPE skydrop_misses_total counter\n")
		fmt.Fprintf(w, "skydrop_misses_total %d\n\n", atomic.LoadInt64(&c.MissCount))

		fmt.Fprintf(w, "# HELP skydrop_levels_total Level attempts by result\n")
		fmt.Fprintf(w, "# TYPE skydrop_levels_total counter\n")
		fmt.Fprintf(w, "skydrop_levels_total{result=\"passed\"} %d\n", atomic.LoadInt64(&c.LevelsPassed))
		fmt.Fprintf(w, "skydrop_levels_total{result=\"failed\"} %d\n\n", atomic.LoadInt64(&c.LevelsFailed))

		fmt.Fprintf(w, "# HELP skydrop_stale_dropped_total Timer messages from superseded generations\n")
		fmt.Fprintf(w, "# TYPE skydrop_stale_dropped_total counter\n")
		fmt.Fprintf(w, "skydrop_stale_dropped_total %d\n\n", atomic.LoadInt64(&c.StaleDropped))

		fmt.Fprintf(w, "# HELP skydrop_events_written_total Journal events written\n")
		fmt.Fprintf(w, "# TYPE skydrop_events_written_total counter\n")
		fmt.Fprintf(w, "skydrop_events_written_total %d\n\n", atomic.LoadInt64(&c.EventsWritten))

		fmt.Fprintf(w, "# HELP skydrop_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE skydrop_ws_connections gauge\n")
		fmt.Fprintf(w, "skydrop_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP skydrop_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE skydrop_ws_messages_total counter\n")
		fmt.Fprintf(w, "skydrop_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "skydrop_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
