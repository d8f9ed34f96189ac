package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fazzatti/cacti/internal/model"
	"github.com/fazzatti/cacti/internal/proofs"
	"github.com/fazzatti/cacti/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedStores(t *testing.T) (*session.MemoryStore, *proofs.MemoryLedger) {
	t.Helper()
	store := session.NewMemoryStore()
	ledger := proofs.NewMemoryLedger()
	ctx := context.Background()

	for _, id := range []string{"sess-002", "sess-001"} {
		s := &model.Session{
			ID:                       id,
			Role:                     model.RoleClient,
			SourceLedgerAssetID:      "AR-42",
			RecipientLedgerAssetID:   "AR-42-dst",
			Phase:                    model.PhaseCommitted,
			RollbackActionsPerformed: []model.RollbackAction{},
			RollbackProofs:           []string{},
		}
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
		if err := ledger.StoreLog(ctx, &model.AuditRecord{
			SessionID: id, Type: model.RecordExec, Operation: "lock-asset", Data: "{}",
		}); err != nil {
			t.Fatalf("StoreLog %s: %v", id, err)
		}
	}
	return store, ledger
}

func TestExportJSONL(t *testing.T) {
	store, ledger := seedStores(t)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), store, ledger, &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("invalid JSONL line: %v", err)
		}
		lines = append(lines, line)
	}

	// Header plus two sessions plus two audit records.
	if len(lines) != 5 {
		t.Fatalf("exported %d lines, want 5", len(lines))
	}
	if lines[0]["type"] != "header" {
		t.Errorf("first line type = %v, want header", lines[0]["type"])
	}
	if lines[0]["session_count"] != float64(2) || lines[0]["record_count"] != float64(2) {
		t.Errorf("header counts = %v/%v, want 2/2", lines[0]["session_count"], lines[0]["record_count"])
	}

	// Sessions are sorted by id.
	first := lines[1]["data"].(map[string]any)
	second := lines[2]["data"].(map[string]any)
	if first["id"] != "sess-001" || second["id"] != "sess-002" {
		t.Errorf("session order = %v, %v; want sess-001, sess-002", first["id"], second["id"])
	}
}

func TestFileDestination_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "archive.jsonl")
	dest := NewFileDestination(path)

	if err := dest.Write(context.Background(), []byte("line-1\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := dest.Write(context.Background(), []byte("line-2\n")); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "line-2\n" {
		t.Errorf("file contents = %q, want the last write only", got)
	}
}

type captureDestination struct {
	mu     sync.Mutex
	writes int
}

func (d *captureDestination) Write(ctx context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	return nil
}

func (d *captureDestination) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func TestScheduler_RunsInitialExport(t *testing.T) {
	store, ledger := seedStores(t)
	dest := &captureDestination{}
	sched := NewScheduler(store, ledger, []Destination{dest}, time.Hour, discardLogger())

	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for dest.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never ran the initial export")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_StopWaits(t *testing.T) {
	store, ledger := seedStores(t)
	dest := &captureDestination{}
	sched := NewScheduler(store, ledger, []Destination{dest}, 10*time.Millisecond, discardLogger())

	sched.Start()
	time.Sleep(50 * time.Millisecond)
	sched.Stop()
	after := dest.count()
	if after == 0 {
		t.Fatal("no exports ran before Stop")
	}
	time.Sleep(50 * time.Millisecond)
	if dest.count() != after {
		t.Error("exports continued after Stop")
	}
}
