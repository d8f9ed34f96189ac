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

var sessionRowColumns = []string{
	"id", "role", "source_asset_id", "recipient_asset_id", "phase",
	"step", "last_sequence_number", "lock_evidence_claim", "commit_final_claim",
	"rollback", "rollback_actions", "rollback_proofs", "max_retries", "max_timeout_ms",
	"asset_profile", "counterparty_addr", "version", "created_at", "updated_at",
}

func addSessionRow(rows *sqlmock.Rows, id, role, phase string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, role, "AR-42", "AR-42-dst", phase,
		0, 0, "", "",
		false, []byte(`[]`), []byte(`[]`), 3, int64(5000),
		nil, "", "1.0", now, now,
	)
}

func TestQueryInsertSession(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(
			"sess-001", "client", "AR-42", "AR-42-dst", "initiated",
			0, 0, "", "",
			false, []byte(`[]`), []byte(`[]`), 3, int64(5000),
			[]byte(nil), "", "1.0", now, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := &model.Session{
		ID:                       "sess-001",
		Role:                     model.RoleClient,
		SourceLedgerAssetID:      "AR-42",
		RecipientLedgerAssetID:   "AR-42-dst",
		Phase:                    model.PhaseInitiated,
		RollbackActionsPerformed: []model.RollbackAction{},
		RollbackProofs:           []string{},
		MaxRetries:               3,
		MaxTimeout:               5 * time.Second,
		Version:                  "1.0",
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := queryInsertSession(ctx, db, s); err != nil {
		t.Fatalf("queryInsertSession: %v", err)
	}
}

func TestQueryGetSessionForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1 FOR UPDATE").
		WithArgs("sess-001").
		WillReturnRows(addSessionRow(sqlmock.NewRows(sessionRowColumns), "sess-001", "client", "locked", now))

	s, err := queryGetSession(ctx, db, "sess-001", true)
	if err != nil {
		t.Fatalf("queryGetSession: %v", err)
	}
	if s.Phase != model.PhaseLocked {
		t.Errorf("phase = %s", s.Phase)
	}
	if s.MaxTimeout != 5*time.Second {
		t.Errorf("max timeout = %s", s.MaxTimeout)
	}
	if s.RollbackActionsPerformed == nil || s.RollbackProofs == nil {
		t.Error("rollback slices not initialized on scan")
	}
}

func TestScanSessionRoundTripsRollbackState(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(sessionRowColumns).AddRow(
		"sess-002", "server", "AR-42", "AR-42-dst", "rolled_back",
		4, 2, "", "",
		true, []byte(`["delete"]`), []byte(`["{\"tx\":\"9\"}"]`), 3, int64(5000),
		[]byte(`{"asset_code":"CBDC"}`), "http://client:8080", "1.0", now, now,
	)
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1").
		WithArgs("sess-002").
		WillReturnRows(rows)

	s, err := queryGetSession(ctx, db, "sess-002", false)
	if err != nil {
		t.Fatalf("queryGetSession: %v", err)
	}
	if !s.Rollback || s.Phase != model.PhaseRolledBack {
		t.Errorf("rollback state = %v/%s", s.Rollback, s.Phase)
	}
	if len(s.RollbackActionsPerformed) != 1 || s.RollbackActionsPerformed[0] != model.RollbackActionDelete {
		t.Errorf("actions = %v", s.RollbackActionsPerformed)
	}
	if len(s.RollbackProofs) != 1 || s.RollbackProofs[0] != `{"tx":"9"}` {
		t.Errorf("proofs = %v", s.RollbackProofs)
	}
	if s.AssetProfile == nil || s.AssetProfile.AssetCode != "CBDC" {
		t.Errorf("profile = %+v", s.AssetProfile)
	}
}

func TestQueryListSessions(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(sessionRowColumns)
	addSessionRow(rows, "sess-001", "client", "committed", now)
	addSessionRow(rows, "sess-002", "server", "initiated", now)
	mock.ExpectQuery("SELECT .+ FROM sessions ORDER BY created_at").
		WillReturnRows(rows)

	all, err := queryListSessions(ctx, db)
	if err != nil {
		t.Fatalf("queryListSessions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
}

func TestQueryUpdateSessionMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE sessions SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := &model.Session{
		ID:                       "sess-404",
		Role:                     model.RoleClient,
		Phase:                    model.PhaseLocked,
		RollbackActionsPerformed: []model.RollbackAction{},
		RollbackProofs:           []string{},
	}
	if err := queryUpdateSession(ctx, db, s); err != sql.ErrNoRows {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}
