package session

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when a session ID is unknown or expired.
// Transport adapters translate it to a protocol-appropriate "session
// invalid" signal; it is never escalated to a process failure.
var ErrSessionNotFound = errors.New("session not found")

// Store holds active sessions keyed by ID. All operations are atomic with
// respect to concurrent calls on the same ID; unrelated sessions never
// contend on a single global lock beyond the map access itself.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a copy of a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist or has idled out.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch updates the session's LastActive to now.
	Touch(ctx context.Context, id string) error

	// SetActiveMemory changes the session's selected knowledge namespace.
	SetActiveMemory(ctx context.Context, id, memory string) error

	// Terminate removes a session. Removing an unknown session is not an
	// error; termination is idempotent.
	Terminate(ctx context.Context, id string) error

	// Count returns the number of live sessions, optionally filtered by
	// transport (empty transport counts all).
	Count(ctx context.Context, transport Transport) int
}
