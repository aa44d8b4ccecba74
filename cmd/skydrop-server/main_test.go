package main

import (
	"testing"

	"github.com/skydrop/server/internal/events"
)

// A payload that does not decode into a JSON object must be reported, not
// persisted as an empty payload.
func TestPersisterAdapterRejectsNonObjectPayload(t *testing.T) {
	adapter := &SQLitePersisterAdapter{}

	err := adapter.Append(events.Event{
		ID:      "evt-1",
		Type:    events.TypeObjectTapped,
		Payload: "not an object",
	})
	if err == nil {
		t.Fatal("expected an error for a non-object payload")
	}
}
