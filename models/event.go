// api/models/event.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// EventSubmission is one entry of the POST /events payload, kept in wire form
// so that a malformed event rejects individually instead of failing the whole
// batch at bind time.
type EventSubmission struct {
	EventID    string          `json:"event_id" validate:"required,uuid"`
	OccurredAt string          `json:"occurred_at" validate:"required"`
	UserID     string          `json:"user_id" validate:"required,max=255"`
	EventType  string          `json:"event_type" validate:"required,max=255"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// Event is the validated form persisted to storage. EventID is the
// idempotency key; a second submission with the same id has no effect.
type Event struct {
	EventID    uuid.UUID
	OccurredAt time.Time
	UserID     string
	EventType  string
	Properties json.RawMessage
}

// Parse validates the submission and returns the storable event.
// occurred_at must be RFC3339; user_id and event_type must be non-blank
// after trimming, matching what the ingest contract promises clients.
func (s EventSubmission) Parse() (Event, error) {
	s.UserID = strings.TrimSpace(s.UserID)
	s.EventType = strings.TrimSpace(s.EventType)

	if err := validate.Struct(s); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}

	id, err := uuid.Parse(s.EventID)
	if err != nil {
		return Event{}, fmt.Errorf("invalid event_id: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, s.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("invalid occurred_at: %w", err)
	}

	props := s.Properties
	if len(props) == 0 {
		props = json.RawMessage(`{}`)
	}

	return Event{
		EventID:    id,
		OccurredAt: ts.UTC(),
		UserID:     s.UserID,
		EventType:  s.EventType,
		Properties: props,
	}, nil
}

// SubmitRequest is the POST /events body.
type SubmitRequest struct {
	Events []EventSubmission `json:"events" binding:"required"`
}

// RejectedEvent reports a per-event validation failure.
type RejectedEvent struct {
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

// SubmitResponse is returned by POST /events. Every submitted event is
// classified exactly once as inserted, duplicate, or rejected.
type SubmitResponse struct {
	TotalReceived int             `json:"total_received"`
	Inserted      int             `json:"inserted"`
	Duplicates    int             `json:"duplicates"`
	Rejected      []RejectedEvent `json:"rejected"`
}
