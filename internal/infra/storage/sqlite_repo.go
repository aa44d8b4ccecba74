package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event SessionEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO session_events (id, timestamp, event_type, generation, level_ordinal, object_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, event.EventType, event.Generation,
		event.LevelOrdinal, event.ObjectID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]SessionEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []SessionEvent
	for rows.Next() {
		var e SessionEvent
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.EventType, &e.Generation,
			&e.LevelOrdinal, &e.ObjectID, &payloadStr,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetAll(ctx context.Context) ([]SessionEvent, error) {
	query := `SELECT id, timestamp, event_type, generation, level_ordinal, object_id, payload FROM session_events ORDER BY timestamp ASC`
	return r.getMany(ctx, query)
}

func (r *SQLiteEventRepository) GetByGeneration(ctx context.Context, gen uint64) ([]SessionEvent, error) {
	query := `SELECT id, timestamp, event_type, generation, level_ordinal, object_id, payload FROM session_events WHERE generation = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, gen)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, eventType string) ([]SessionEvent, error) {
	query := `SELECT id, timestamp, event_type, generation, level_ordinal, object_id, payload FROM session_events WHERE event_type = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, eventType)
}
