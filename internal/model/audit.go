package model

import (
	"time"
)

// RecordType classifies an audit record.
type RecordType string

const (
	// RecordExec is written immediately before a primary ledger call.
	RecordExec RecordType = "exec"
	// RecordDone is written after a primary ledger call succeeds.
	RecordDone RecordType = "done"
	// RecordProof carries the serialized chain evidence of a primary call.
	RecordProof RecordType = "proof"

	// Rollback variants of the above, written by compensating calls.
	RecordExecRollback  RecordType = "exec-rollback"
	RecordDoneRollback  RecordType = "done-rollback"
	RecordProofRollback RecordType = "proof-rollback"
)

// String returns the string representation of the record type.
func (t RecordType) String() string {
	return string(t)
}

// IsValid checks whether the record type is a known value.
func (t RecordType) IsValid() bool {
	switch t {
	case RecordExec, RecordDone, RecordProof,
		RecordExecRollback, RecordDoneRollback, RecordProofRollback:
		return true
	}
	return false
}

// IsProof reports whether the record carries chain evidence rather than a
// session-state snapshot.
func (t RecordType) IsProof() bool {
	return t == RecordProof || t == RecordProofRollback
}

// AuditRecord is one append-only entry in the proof ledger. Data holds either
// a JSON snapshot of the session (exec/done) or the serialized chain evidence
// (proof); the shape must stay stable for reconciliation tooling.
type AuditRecord struct {
	ID        int64      `json:"id,omitempty"`
	SessionID string     `json:"session_id"`
	Type      RecordType `json:"type"`
	Operation string     `json:"operation"`
	Data      string     `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
}
