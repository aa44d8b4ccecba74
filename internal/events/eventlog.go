// Package events provides the append-only session journal.
// Every decision the engine makes (spawn, tap, miss, resolution) lands here
// as an immutable record, so a level attempt can be replayed or audited.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skydrop/server/internal/platform/metrics"
)

// Type defines the category of a session event.
type Type string

const (
	TypeLevelStarted  Type = "LEVEL_STARTED"
	TypeObjectSpawned Type = "OBJECT_SPAWNED"
	TypeObjectTapped  Type = "OBJECT_TAPPED"
	TypeObjectMissed  Type = "OBJECT_MISSED"
	TypeLevelResolved Type = "LEVEL_RESOLVED"
)

// StartPayload records the configuration a level attempt started with.
type StartPayload struct {
	LevelOrdinal    int `json:"level_ordinal"`
	DurationMs      int `json:"duration_ms"`
	TargetScore     int `json:"target_score"`
	SpawnIntervalMs int `json:"spawn_interval_ms"`
	FallDurationMs  int `json:"fall_duration_ms"`
}

// SpawnPayload records a manufactured falling object.
type SpawnPayload struct {
	X              float64 `json:"x"`
	Size           float64 `json:"size"`
	FallDurationMs int64   `json:"fall_duration_ms"`
}

// TapPayload records a scored tap.
type TapPayload struct {
	Score int `json:"score"` // score after the increment
}

// ResolvePayload records the pass/fail decision of a level attempt.
type ResolvePayload struct {
	Score        int    `json:"score"`
	TargetScore  int    `json:"target_score"`
	Passed       bool   `json:"passed"`
	IsFinalLevel bool   `json:"is_final_level"`
	Cause        string `json:"cause"` // "EXPIRED" or "FINISH_EARLY"
}

// Event represents an immutable record of a session decision.
type Event struct {
	ID           string      `json:"id"`
	Timestamp    time.Time   `json:"timestamp"`
	Type         Type        `json:"type"`
	Generation   uint64      `json:"generation"` // session instance the event belongs to
	LevelOrdinal int         `json:"level_ordinal"`
	ObjectID     string      `json:"object_id,omitempty"`
	Payload      interface{} `json:"payload,omitempty"`
}

// Persister defines how an event is durably stored.
type Persister interface {
	Append(event Event) error
}

// Log is the in-memory append-only journal of session events, optionally
// backed by a durable persister.
type Log struct {
	mu        sync.RWMutex
	events    []Event
	persister Persister
}

// NewLog creates a new journal with an optional persister.
func NewLog(persister Persister) *Log {
	return &Log{
		events:    make([]Event, 0),
		persister: persister,
	}
}

// Append adds a new event to the journal. Events are immutable once appended.
func (l *Log) Append(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	if l.persister != nil {
		// Write through off the session loop; the loop must never block on I/O.
		go func(e Event) {
			err := l.persister.Append(e)
			metrics.Get().RecordEventWrite(err)
		}(event)
	}
}

// Replay returns the full history of events.
func (l *Log) Replay() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// GetByGeneration returns all events belonging to one session instance.
func (l *Log) GetByGeneration(gen uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Event
	for _, e := range l.events {
		if e.Generation == gen {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all events of a specific type.
func (l *Log) GetByType(t Type) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Event
	for _, e := range l.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
