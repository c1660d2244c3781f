// api/store/event_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"pulsestream/api/models"
)

// EventStore is the transactional system of record for events.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// SubmitResult classifies each event of one submission.
type SubmitResult struct {
	Inserted   []uuid.UUID
	Duplicates []uuid.UUID
}

// SubmitEvents writes the event rows and, when at least one row is new, the
// delivery task that will carry them to the analytical store — all in one
// transaction, so a committed event can never miss its enqueue.
//
// The unique constraint on event_id is the dedup authority. ON CONFLICT DO
// NOTHING RETURNING yields a row only for a genuinely new event; a concurrent
// submission of the same id loses the race cleanly and classifies as a
// duplicate instead of erroring.
func (s *EventStore) SubmitEvents(ctx context.Context, events []models.Event) (SubmitResult, error) {
	var res SubmitResult
	if len(events) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		var id uuid.UUID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO events (event_id, occurred_at, user_id, event_type, properties)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
			RETURNING event_id
		`, ev.EventID, ev.OccurredAt, ev.UserID, ev.EventType, []byte(ev.Properties)).Scan(&id)

		switch {
		case err == sql.ErrNoRows:
			res.Duplicates = append(res.Duplicates, ev.EventID)
		case err != nil:
			return SubmitResult{}, fmt.Errorf("insert event %s: %w", ev.EventID, err)
		default:
			res.Inserted = append(res.Inserted, id)
		}
	}

	if len(res.Inserted) > 0 {
		if err := insertDeliveryTask(ctx, tx, res.Inserted); err != nil {
			return SubmitResult{}, fmt.Errorf("enqueue delivery task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return SubmitResult{}, fmt.Errorf("commit submit tx: %w", err)
	}

	log.Info().
		Int("total", len(events)).
		Int("inserted", len(res.Inserted)).
		Int("duplicates", len(res.Duplicates)).
		Msg("events ingested")

	return res, nil
}

// EventsByIDs loads event rows for delivery. Ids that no longer exist are
// simply absent from the result.
func (s *EventStore) EventsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, occurred_at, user_id, event_type, properties
		FROM events
		WHERE event_id = ANY($1::uuid[])
		ORDER BY occurred_at
	`, pq.Array(strs))
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var props []byte
		if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.UserID, &ev.EventType, &props); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Properties = props
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
