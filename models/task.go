// api/models/task.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryTask is one unit of work on the queue: a set of committed events
// that still has to reach the analytical store. Tasks are created in the same
// transaction as the event rows they reference, so a committed event can never
// miss its enqueue.
type DeliveryTask struct {
	ID           uuid.UUID   `json:"id"`
	EventIDs     []uuid.UUID `json:"event_ids"`
	AttemptCount int         `json:"attempt_count"`
	EnqueuedAt   time.Time   `json:"enqueued_at"`
	NotBefore    time.Time   `json:"not_before"`
	LastError    string      `json:"last_error,omitempty"`
}

// DeadLetter is a delivery task that exhausted its attempt budget. It keeps
// its full history and stays inspectable until an operator requeues it.
type DeadLetter struct {
	ID           uuid.UUID   `json:"id"`
	EventIDs     []uuid.UUID `json:"event_ids"`
	AttemptCount int         `json:"attempt_count"`
	EnqueuedAt   time.Time   `json:"enqueued_at"`
	FailedAt     time.Time   `json:"failed_at"`
	LastError    string      `json:"last_error"`
}
