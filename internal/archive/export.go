// Package archive periodically exports the gateway's sessions and audit trail
// as JSONL snapshots to off-gateway destinations, so transfer evidence
// survives the loss of the gateway itself.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fazzatti/cacti/internal/model"
	"github.com/fazzatti/cacti/internal/proofs"
	"github.com/fazzatti/cacti/internal/session"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	SessionCount int       `json:"session_count"`
	RecordCount  int       `json:"record_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every session and its audit records from the store and
// proof ledger as JSONL to w. Sessions are sorted by ID; records keep their
// ledger order within each session.
func ExportJSONL(ctx context.Context, sessions session.Store, ledger proofs.Ledger, w io.Writer) error {
	all, err := sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	var records []*model.AuditRecord
	for _, s := range all {
		history, err := ledger.History(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("history for %s: %w", s.ID, err)
		}
		records = append(records, history...)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		SessionCount: len(all),
		RecordCount:  len(records),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, s := range all {
		if err := enc.Encode(record{Type: "session", Data: s}); err != nil {
			return fmt.Errorf("encode session %s: %w", s.ID, err)
		}
	}
	for _, r := range records {
		if err := enc.Encode(record{Type: "audit_record", Data: r}); err != nil {
			return fmt.Errorf("encode record %d for %s: %w", r.ID, r.SessionID, err)
		}
	}

	return nil
}
