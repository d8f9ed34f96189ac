// Package proofs defines the append-only audit/proof ledger consulted for
// compliance and reconciliation. Records are never mutated or deleted;
// rollback decisions come from live chain queries, not from this log.
package proofs

import (
	"context"

	"github.com/fazzatti/cacti/internal/model"
)

// Ledger is the persistence interface for audit records.
type Ledger interface {
	// StoreLog appends an exec/done record (or its rollback variant).
	StoreLog(ctx context.Context, record *model.AuditRecord) error
	// StoreProof appends a proof record carrying chain evidence.
	StoreProof(ctx context.Context, record *model.AuditRecord) error
	// History returns all records for a session in append order.
	History(ctx context.Context, sessionID string) ([]*model.AuditRecord, error)
	// Reset clears the ledger. Test and bootstrap contexts only; never
	// called during normal operation.
	Reset(ctx context.Context) error

	// Lifecycle
	Close() error
}
