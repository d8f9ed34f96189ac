package gateway

import (
	"context"

	"github.com/fazzatti/cacti/internal/ledger"
	"github.com/fazzatti/cacti/internal/model"
)

// Proof tags written with chain evidence. One tag per primitive, shared by the
// primary and compensating variants of the same effect.
const (
	proofTagLock   = "lock"
	proofTagUnlock = "unlock"
	proofTagCreate = "create"
	proofTagDelete = "delete"
)

// opSpec describes one ledger operation's audit identity and how its outcome
// is folded into the session.
type opSpec struct {
	op       ledger.Operation
	proofTag string
	// rollback selects the -rollback audit record types and records the
	// compensating action on the session.
	rollback bool
	action   model.RollbackAction
	// defaultAsset supplies the asset id when the caller passes none.
	defaultAsset func(*model.Session) string
	// applyProof folds the evidence into the session's claims, if any.
	applyProof func(*model.Session, string)
}

func sourceAsset(s *model.Session) string    { return s.SourceLedgerAssetID }
func recipientAsset(s *model.Session) string { return s.RecipientLedgerAssetID }

// LockAsset locks the source asset reference and stores the lock evidence
// claim. Client role only.
func (g *Gateway) LockAsset(ctx context.Context, sessionID, assetID string) (string, error) {
	return g.runOperation(ctx, sessionID, assetID, opSpec{
		op:           ledger.OpLockAsset,
		proofTag:     proofTagLock,
		defaultAsset: sourceAsset,
		applyProof:   func(s *model.Session, p string) { s.LockEvidenceClaim = p },
	})
}

// UnlockAsset reverses a lock during rollback. Client role only.
func (g *Gateway) UnlockAsset(ctx context.Context, sessionID, assetID string) (string, error) {
	return g.runOperation(ctx, sessionID, assetID, opSpec{
		op:           ledger.OpUnlockAsset,
		proofTag:     proofTagUnlock,
		rollback:     true,
		action:       model.RollbackActionUnlock,
		defaultAsset: sourceAsset,
	})
}

// CreateAsset creates the destination asset reference. Server role only.
func (g *Gateway) CreateAsset(ctx context.Context, sessionID, assetID string) (string, error) {
	return g.runOperation(ctx, sessionID, assetID, opSpec{
		op:           ledger.OpCreateAsset,
		proofTag:     proofTagCreate,
		defaultAsset: recipientAsset,
		applyProof:   func(s *model.Session, p string) { s.CommitFinalClaim = p },
	})
}

// DeleteAsset deletes the source asset reference to finalize the transfer and
// stores the commit evidence claim.
func (g *Gateway) DeleteAsset(ctx context.Context, sessionID, assetID string) (string, error) {
	return g.runOperation(ctx, sessionID, assetID, opSpec{
		op:           ledger.OpDeleteAsset,
		proofTag:     proofTagDelete,
		defaultAsset: sourceAsset,
		applyProof:   func(s *model.Session, p string) { s.CommitFinalClaim = p },
	})
}

// CreateAssetToRollback restores a source asset that was deleted before the
// transfer unwound. Client role only.
func (g *Gateway) CreateAssetToRollback(ctx context.Context, sessionID, assetID string) (string, error) {
	return g.runOperation(ctx, sessionID, assetID, opSpec{
		op:           ledger.OpCreateAssetToRollback,
		proofTag:     proofTagCreate,
		rollback:     true,
		action:       model.RollbackActionCreate,
		defaultAsset: sourceAsset,
	})
}

// DeleteAssetToRollback removes a destination asset created for a transfer
// that unwound. Server role only.
func (g *Gateway) DeleteAssetToRollback(ctx context.Context, sessionID, assetID string) (string, error) {
	return g.runOperation(ctx, sessionID, assetID, opSpec{
		op:           ledger.OpDeleteAssetToRollback,
		proofTag:     proofTagDelete,
		rollback:     true,
		action:       model.RollbackActionDelete,
		defaultAsset: recipientAsset,
	})
}

// runOperation executes one ledger operation for a session under the
// session's write lock. Audit record ordering is fixed: the exec record is
// written strictly before the chain call, the proof record after confirmation,
// and the done record last with the updated session snapshot.
func (g *Gateway) runOperation(ctx context.Context, sessionID, assetID string, spec opSpec) (string, error) {
	if !g.adapter.Supports(spec.op) {
		return "", &ledger.UnsupportedOperationError{Op: spec.op}
	}

	execType, proofType, doneType := model.RecordExec, model.RecordProof, model.RecordDone
	if spec.rollback {
		execType, proofType, doneType = model.RecordExecRollback, model.RecordProofRollback, model.RecordDoneRollback
	}

	var proof string
	_, err := g.sessions.Mutate(ctx, sessionID, func(s *model.Session) error {
		if !s.Initialized() {
			return &SessionUninitializedError{SessionID: sessionID}
		}
		// Once a rollback has started, or the session has settled, primary
		// operations lose the race: a late retry must not re-touch the asset.
		if !spec.rollback && (s.Rollback || s.Phase.Terminal()) {
			return &PhaseError{SessionID: sessionID, From: s.Phase, To: s.Phase}
		}
		id := assetID
		if id == "" {
			id = spec.defaultAsset(s)
		}
		if err := g.storeExec(ctx, s, execType, spec.op.String()); err != nil {
			return err
		}
		p, err := ledger.Invoke(ctx, g.adapter, spec.op, id)
		if err != nil {
			return err
		}
		s.Step++
		s.LastSequenceNumber++
		if spec.applyProof != nil {
			spec.applyProof(s, p)
		}
		if spec.rollback {
			s.RecordRollbackStep(spec.action, p)
		}
		if err := g.storeProof(ctx, s.ID, proofType, spec.proofTag, p); err != nil {
			return err
		}
		if err := g.storeDone(ctx, s, doneType, spec.op.String()); err != nil {
			return err
		}
		proof = p
		return nil
	})
	if err != nil {
		return "", err
	}
	return proof, nil
}
