package gateway

import (
	"errors"
	"fmt"

	"github.com/fazzatti/cacti/internal/model"
)

// SessionUninitializedError reports a ledger operation attempted against a
// session that is missing required fields. Raised before any chain call and
// before any audit write.
type SessionUninitializedError struct {
	SessionID string
}

func (e *SessionUninitializedError) Error() string {
	return fmt.Sprintf("session %s is not initialized", e.SessionID)
}

// IsUninitialized reports whether err is a SessionUninitializedError.
func IsUninitialized(err error) bool {
	var ue *SessionUninitializedError
	return errors.As(err, &ue)
}

// PhaseError reports an attempted phase transition the state machine forbids,
// including any mutation of a terminal session.
type PhaseError struct {
	SessionID string
	From      model.Phase
	To        model.Phase
}

func (e *PhaseError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("session %s: phase %s accepts no further operations", e.SessionID, e.From)
	}
	return fmt.Sprintf("session %s: cannot advance from %s to %s", e.SessionID, e.From, e.To)
}

// RollbackError reports a compensating chain call that itself failed. It is
// terminal: the rollback is not retried and the session is left for operator
// intervention with its audit trail intact.
type RollbackError struct {
	SessionID string
	Err       error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("session %s: rollback failed: %v", e.SessionID, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// IsRollbackError reports whether err is a RollbackError.
func IsRollbackError(err error) bool {
	var re *RollbackError
	return errors.As(err, &re)
}
