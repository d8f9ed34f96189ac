package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fazzatti/cacti/internal/model"
)

// sessionColumns is the column list used for SELECT statements on the
// sessions table.
const sessionColumns = `id, role, source_asset_id, recipient_asset_id, phase,
	step, last_sequence_number, lock_evidence_claim, commit_final_claim,
	rollback, rollback_actions, rollback_proofs, max_retries, max_timeout_ms,
	asset_profile, counterparty_addr, version, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func queryInsertSession(ctx context.Context, db executor, s *model.Session) error {
	actions, proofsJSON, profile, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, role, source_asset_id, recipient_asset_id, phase,
			step, last_sequence_number, lock_evidence_claim, commit_final_claim,
			rollback, rollback_actions, rollback_proofs, max_retries, max_timeout_ms,
			asset_profile, counterparty_addr, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)`,
		s.ID,
		string(s.Role),
		s.SourceLedgerAssetID,
		s.RecipientLedgerAssetID,
		string(s.Phase),
		s.Step,
		s.LastSequenceNumber,
		s.LockEvidenceClaim,
		s.CommitFinalClaim,
		s.Rollback,
		actions,
		proofsJSON,
		s.MaxRetries,
		s.MaxTimeout.Milliseconds(),
		profile,
		s.CounterpartyAddr,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func queryUpdateSession(ctx context.Context, db executor, s *model.Session) error {
	actions, proofsJSON, profile, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE sessions SET
			phase = $2, step = $3, last_sequence_number = $4,
			lock_evidence_claim = $5, commit_final_claim = $6,
			rollback = $7, rollback_actions = $8, rollback_proofs = $9,
			max_retries = $10, max_timeout_ms = $11, asset_profile = $12,
			counterparty_addr = $13, updated_at = $14
		WHERE id = $1`,
		s.ID,
		string(s.Phase),
		s.Step,
		s.LastSequenceNumber,
		s.LockEvidenceClaim,
		s.CommitFinalClaim,
		s.Rollback,
		actions,
		proofsJSON,
		s.MaxRetries,
		s.MaxTimeout.Milliseconds(),
		profile,
		s.CounterpartyAddr,
		s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

func queryGetSession(ctx context.Context, db executor, id string, forUpdate bool) (*model.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanSession(db.QueryRowContext(ctx, q, id))
}

func queryListSessions(ctx context.Context, db executor) ([]*model.Session, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func marshalSessionJSON(s *model.Session) (actions, proofsJSON, profile []byte, err error) {
	actions, err = json.Marshal(s.RollbackActionsPerformed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal rollback actions: %w", err)
	}
	proofsJSON, err = json.Marshal(s.RollbackProofs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal rollback proofs: %w", err)
	}
	if s.AssetProfile != nil {
		profile, err = json.Marshal(s.AssetProfile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal asset profile: %w", err)
		}
	}
	return actions, proofsJSON, profile, nil
}

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*model.Session, error) {
	var s model.Session
	var (
		actions      []byte
		proofsJSON   []byte
		profile      []byte
		maxTimeoutMS int64
	)

	err := row.Scan(
		&s.ID,
		&s.Role,
		&s.SourceLedgerAssetID,
		&s.RecipientLedgerAssetID,
		&s.Phase,
		&s.Step,
		&s.LastSequenceNumber,
		&s.LockEvidenceClaim,
		&s.CommitFinalClaim,
		&s.Rollback,
		&actions,
		&proofsJSON,
		&s.MaxRetries,
		&maxTimeoutMS,
		&profile,
		&s.CounterpartyAddr,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.MaxTimeout = time.Duration(maxTimeoutMS) * time.Millisecond
	s.RollbackActionsPerformed = []model.RollbackAction{}
	s.RollbackProofs = []string{}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &s.RollbackActionsPerformed); err != nil {
			return nil, fmt.Errorf("unmarshal rollback actions: %w", err)
		}
	}
	if len(proofsJSON) > 0 {
		if err := json.Unmarshal(proofsJSON, &s.RollbackProofs); err != nil {
			return nil, fmt.Errorf("unmarshal rollback proofs: %w", err)
		}
	}
	if len(profile) > 0 {
		s.AssetProfile = &model.AssetProfile{}
		if err := json.Unmarshal(profile, s.AssetProfile); err != nil {
			return nil, fmt.Errorf("unmarshal asset profile: %w", err)
		}
	}
	return &s, nil
}
