// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"
)

// SessionEvent mirrors the journal event structure for persistence.
// The domain package should NOT import this; use interfaces instead.
type SessionEvent struct {
	ID           string                 `json:"id" db:"id"`
	Timestamp    time.Time              `json:"timestamp" db:"timestamp"`
	EventType    string                 `json:"event_type" db:"event_type"`
	Generation   uint64                 `json:"generation" db:"generation"`
	LevelOrdinal int                    `json:"level_ordinal" db:"level_ordinal"`
	ObjectID     string                 `json:"object_id" db:"object_id"`
	Payload      map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for journal persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event SessionEvent) error

	// GetAll retrieves the full journal, oldest first (for replay).
	GetAll(ctx context.Context) ([]SessionEvent, error)

	// GetByGeneration retrieves all events of one session instance.
	GetByGeneration(ctx context.Context, gen uint64) ([]SessionEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, eventType string) ([]SessionEvent, error)
}
