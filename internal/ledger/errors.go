package ledger

import (
	"errors"
	"fmt"
)

// UnsupportedOperationError reports a call to a primitive outside the
// adapter's declared capability set. This is a programmer error and is never
// retried.
type UnsupportedOperationError struct {
	Op Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation %s is not supported by this adapter", e.Op)
}

// IsUnsupported reports whether err is an UnsupportedOperationError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}

// ConfigError reports missing or malformed adapter configuration. It is
// raised at construction, never at call time, and is fatal.
type ConfigError struct {
	Chain string
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("chain %s: required config %s is missing", e.Chain, e.Field)
}

// CallError wraps a failed or timed-out remote chain call. Call errors are
// transient: the orchestrator retries them up to the session's retry budget.
// A timeout is indistinguishable from a rejection on purpose; neither may be
// treated as confirmed success.
type CallError struct {
	Chain string
	Op    Operation
	Err   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("chain %s: %s failed: %v", e.Chain, e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
