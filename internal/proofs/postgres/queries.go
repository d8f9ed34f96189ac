package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/fazzatti/cacti/internal/model"
)

// auditColumns is the column list used for SELECT statements on the
// audit_records table.
const auditColumns = `id, session_id, type, operation, data, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryAppendRecord(ctx context.Context, db executor, r *model.AuditRecord) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO audit_records (session_id, type, operation, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		r.SessionID,
		string(r.Type),
		r.Operation,
		r.Data,
		ts,
	).Scan(&r.ID)
}

func queryHistory(ctx context.Context, db executor, sessionID string) ([]*model.AuditRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_records WHERE session_id = $1 ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*model.AuditRecord
	for rows.Next() {
		var r model.AuditRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Type, &r.Operation, &r.Data, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
