package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/breaking-byts/lifeos/core/database"
)

// Event is one recorded experience. Events are immutable after creation.
type Event struct {
	ID        string
	Type      string
	Content   string
	Metadata  string
	Outcome   *float64 // [0,1], nil when the outcome was never scored
	Embedding []float32
	CreatedAt time.Time
}

// EventStore persists events in sqlite. The in-memory index is rebuilt
// from here on startup.
type EventStore struct {
	pool *database.Pool
}

func NewEventStore(pool *database.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Insert writes a new event and returns its generated id.
func (s *EventStore) Insert(ctx context.Context, event *Event) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	var outcome any
	if event.Outcome != nil {
		outcome = *event.Outcome
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory_events (id, event_type, content, metadata_json, outcome_score, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Type, event.Content, nullIfEmpty(event.Metadata), outcome, encodeVector(event.Embedding),
	)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return event.ID, nil
}

// All returns every stored event in insertion order.
func (s *EventStore) All(ctx context.Context) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_type, content, metadata_json, outcome_score, embedding, created_at
		 FROM memory_events ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var metadata sql.NullString
		var outcome sql.NullFloat64
		var embedding []byte
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Type, &e.Content, &metadata, &outcome, &embedding, &createdAt); err != nil {
			return nil, err
		}
		e.Metadata = metadata.String
		if outcome.Valid {
			v := outcome.Float64
			e.Outcome = &v
		}
		e.Embedding = decodeVector(embedding)
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			e.CreatedAt = t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of stored events.
func (s *EventStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memory_events`).Scan(&count)
	return count, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 0, len(vec)*4)
	for _, v := range vec {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
