package events

import (
	"testing"
	"time"
)

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	l := NewLog(nil)

	l.Append(Event{Type: TypeLevelStarted, Generation: 1, LevelOrdinal: 1})

	history := l.Replay()
	if len(history) != 1 {
		t.Fatalf("Expected one event, got %d", len(history))
	}
	if history[0].ID == "" {
		t.Errorf("Expected an id to be assigned")
	}
	if history[0].Timestamp.IsZero() {
		t.Errorf("Expected a timestamp to be assigned")
	}
}

func TestReplayReturnsCopy(t *testing.T) {
	l := NewLog(nil)
	l.Append(Event{Type: TypeObjectSpawned, Generation: 1, ObjectID: "a"})
	l.Append(Event{Type: TypeObjectTapped, Generation: 1, ObjectID: "a"})

	history := l.Replay()
	history[0].ObjectID = "mutated"

	if l.Replay()[0].ObjectID != "a" {
		t.Errorf("Expected journal to be immune to caller mutation")
	}
}

func TestFilters(t *testing.T) {
	l := NewLog(nil)
	l.Append(Event{Type: TypeLevelStarted, Generation: 1})
	l.Append(Event{Type: TypeObjectSpawned, Generation: 1, ObjectID: "a"})
	l.Append(Event{Type: TypeLevelStarted, Generation: 2})
	l.Append(Event{Type: TypeObjectTapped, Generation: 2, ObjectID: "b"})

	if got := len(l.GetByGeneration(2)); got != 2 {
		t.Errorf("Expected 2 events for generation 2, got %d", got)
	}
	if got := len(l.GetByType(TypeLevelStarted)); got != 2 {
		t.Errorf("Expected 2 LEVEL_STARTED events, got %d", got)
	}
	if got := len(l.GetByType(TypeObjectMissed)); got != 0 {
		t.Errorf("Expected no OBJECT_MISSED events, got %d", got)
	}
	if l.Len() != 4 {
		t.Errorf("Expected 4 events total, got %d", l.Len())
	}
}

type capturePersister struct {
	appended chan Event
}

func (p *capturePersister) Append(event Event) error {
	p.appended <- event
	return nil
}

func TestWriteThroughPersister(t *testing.T) {
	p := &capturePersister{appended: make(chan Event, 1)}
	l := NewLog(p)

	l.Append(Event{Type: TypeObjectMissed, Generation: 3, ObjectID: "x"})

	select {
	case e := <-p.appended:
		if e.Type != TypeObjectMissed || e.ObjectID != "x" {
			t.Errorf("Unexpected persisted event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("Timed out waiting for write-through persist")
	}
}
