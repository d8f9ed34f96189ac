package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fazzatti/cacti/internal/model"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var auditRowColumns = []string{"id", "session_id", "type", "operation", "data", "created_at"}

func TestQueryAppendRecord(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("INSERT INTO audit_records").
		WithArgs("sess-001", "exec", "lock-asset", `{"phase":"initiated"}`, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	r := &model.AuditRecord{
		SessionID: "sess-001",
		Type:      model.RecordExec,
		Operation: "lock-asset",
		Data:      `{"phase":"initiated"}`,
	}
	if err := queryAppendRecord(ctx, db, r); err != nil {
		t.Fatalf("queryAppendRecord: %v", err)
	}
	if r.ID != 7 {
		t.Errorf("record ID = %d, want 7", r.ID)
	}
}

func TestQueryAppendRecordKeepsCallerTimestamp(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO audit_records").
		WithArgs("sess-001", "proof", "lock", `{"tx":"1"}`, ts).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	r := &model.AuditRecord{
		SessionID: "sess-001",
		Type:      model.RecordProof,
		Operation: "lock",
		Data:      `{"tx":"1"}`,
		Timestamp: ts,
	}
	if err := queryAppendRecord(ctx, db, r); err != nil {
		t.Fatalf("queryAppendRecord: %v", err)
	}
}

func TestQueryHistoryOrdersByID(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(auditRowColumns).
		AddRow(int64(1), "sess-001", "exec", "lock-asset", "{}", now).
		AddRow(int64(2), "sess-001", "proof", "lock", `{"tx":"1"}`, now).
		AddRow(int64(3), "sess-001", "done", "lock-asset", "{}", now)

	mock.ExpectQuery("SELECT .+ FROM audit_records WHERE session_id = \\$1 ORDER BY id").
		WithArgs("sess-001").
		WillReturnRows(rows)

	records, err := queryHistory(ctx, db, "sess-001")
	if err != nil {
		t.Fatalf("queryHistory: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if records[1].Type != model.RecordProof || records[1].Data != `{"tx":"1"}` {
		t.Errorf("records[1] = %+v", records[1])
	}
}

func TestQueryHistoryEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT .+ FROM audit_records WHERE session_id = \\$1 ORDER BY id").
		WithArgs("sess-404").
		WillReturnRows(sqlmock.NewRows(auditRowColumns))

	records, err := queryHistory(ctx, db, "sess-404")
	if err != nil {
		t.Fatalf("queryHistory: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}
