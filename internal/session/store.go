// Package session defines the registry of in-flight transfer sessions.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/fazzatti/cacti/internal/model"
)

// ErrNotFound is returned when no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// ConflictError reports an attempt to reuse an existing session id, including
// reuse of a terminal session. The request is rejected with no state change.
type ConflictError struct {
	ID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("session %s already exists", e.ID)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Store is the registry mapping a session id to its mutable protocol state.
// Implementations must serialize Mutate calls per session id: a timeout-driven
// rollback and a late success response for the same phase must never
// interleave their read-modify-write cycles.
type Store interface {
	// Create registers a new session. A duplicate id fails with a
	// ConflictError and no state change.
	Create(ctx context.Context, s *model.Session) error
	// Get returns a copy of the session, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Session, error)
	// List returns copies of all sessions.
	List(ctx context.Context) ([]*model.Session, error)
	// Mutate runs fn against the session's current state under the
	// session's exclusive lock and persists the result. If fn returns an
	// error the session is left unchanged. The updated copy is returned.
	Mutate(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error)

	// Lifecycle
	Close() error
}
