// api/models/errors.go
package models

import "errors"

// Sentinel errors shared across stores and handlers. A duplicate event is
// deliberately not represented here: duplicates are a normal, inert outcome
// of idempotent intake, not a failure.
var (
	// ErrNoTask means no delivery task is ready to claim right now.
	ErrNoTask = errors.New("no delivery task ready")

	// ErrNotFound covers lookups of rows that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when registering an already-registered email.
	ErrEmailTaken = errors.New("email already registered")
)
