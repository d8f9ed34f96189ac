package proofs

import (
	"context"
	"sync"
	"time"

	"github.com/fazzatti/cacti/internal/model"
)

// MemoryLedger is an in-process proof ledger. It backs tests and the demo
// profile, and serves as the default remote ledger when no counterparty
// database is configured.
type MemoryLedger struct {
	mu      sync.Mutex
	nextID  int64
	records []*model.AuditRecord
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger returns an empty in-process ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1}
}

func (l *MemoryLedger) append(record *model.AuditRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	dup := *record
	dup.ID = l.nextID
	l.nextID++
	if dup.Timestamp.IsZero() {
		dup.Timestamp = time.Now().UTC()
	}
	l.records = append(l.records, &dup)
}

func (l *MemoryLedger) StoreLog(_ context.Context, record *model.AuditRecord) error {
	l.append(record)
	return nil
}

func (l *MemoryLedger) StoreProof(_ context.Context, record *model.AuditRecord) error {
	l.append(record)
	return nil
}

func (l *MemoryLedger) History(_ context.Context, sessionID string) ([]*model.AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.AuditRecord
	for _, r := range l.records {
		if r.SessionID == sessionID {
			dup := *r
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (l *MemoryLedger) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.nextID = 1
	return nil
}

func (l *MemoryLedger) Close() error {
	return nil
}
