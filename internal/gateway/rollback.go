package gateway

import (
	"context"
	"fmt"

	"github.com/fazzatti/cacti/internal/events"
	"github.com/fazzatti/cacti/internal/model"
)

// Rollback compensates a failed transfer. It decides what to undo by
// re-querying the chain, never by trusting the in-memory phase: a lock whose
// confirmation was lost is still a lock on chain, and only the chain knows.
// Rollback is idempotent; invoking it on a session whose chain state needs no
// compensation is a no-op. A compensating call that itself fails yields a
// terminal RollbackError with no retry.
func (g *Gateway) Rollback(ctx context.Context, sessionID, reason string) error {
	var fromPhase model.Phase
	s, err := g.sessions.Mutate(ctx, sessionID, func(s *model.Session) error {
		if s.Phase == model.PhaseCommitted {
			return &PhaseError{SessionID: sessionID, From: s.Phase, To: model.PhaseRollingBack}
		}
		fromPhase = s.Phase
		s.Rollback = true
		if s.Phase != model.PhaseRollingBack && s.Phase != model.PhaseRolledBack {
			s.Phase = model.PhaseRollingBack
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Warn("rollback started",
		"session_id", sessionID, "role", s.Role, "from_phase", fromPhase, "reason", reason)
	g.publish(ctx, events.TopicRollbackStarted, events.RollbackStarted{
		SessionID: sessionID, Role: s.Role, FromPhase: fromPhase, Reason: reason,
	})

	switch s.Role {
	case model.RoleClient:
		err = g.rollbackClient(ctx, s)
	case model.RoleServer:
		err = g.rollbackServer(ctx, s)
	default:
		err = fmt.Errorf("session %s: unknown role %q", sessionID, s.Role)
	}
	if err != nil {
		rbErr := &RollbackError{SessionID: sessionID, Err: err}
		g.logger.Error("rollback failed", "session_id", sessionID, "error", err)
		g.publish(ctx, events.TopicRollbackFailed, events.RollbackFailed{
			SessionID: sessionID, Error: err.Error(),
		})
		return rbErr
	}

	s, err = g.sessions.Mutate(ctx, sessionID, func(s *model.Session) error {
		if s.Phase == model.PhaseRollingBack {
			s.Phase = model.PhaseRolledBack
			s.Step++
			s.LastSequenceNumber++
		}
		return nil
	})
	if err != nil {
		return err
	}
	g.logger.Info("rollback completed",
		"session_id", sessionID, "actions", s.RollbackActionsPerformed)
	g.publish(ctx, events.TopicRollbackCompleted, events.RollbackCompleted{
		SessionID: sessionID, Actions: s.RollbackActionsPerformed,
	})
	return nil
}

// rollbackClient restores the source chain. If the asset is still there and
// locked, it is unlocked; if it is gone, the transfer's delete landed before
// the unwind and the asset is re-created.
func (g *Gateway) rollbackClient(ctx context.Context, s *model.Session) error {
	assetID := s.SourceLedgerAssetID
	exists, err := g.adapter.AssetExists(ctx, assetID)
	if err != nil {
		return fmt.Errorf("querying asset %s: %w", assetID, err)
	}
	if !exists {
		_, err := g.CreateAssetToRollback(ctx, s.ID, assetID)
		return err
	}
	locked, err := g.adapter.IsAssetLocked(ctx, assetID)
	if err != nil {
		return fmt.Errorf("querying lock state of asset %s: %w", assetID, err)
	}
	if !locked {
		// Nothing on chain to undo.
		return nil
	}
	_, err = g.UnlockAsset(ctx, s.ID, assetID)
	return err
}

// rollbackServer restores the destination chain: a created destination asset
// is deleted, anything else is left alone.
func (g *Gateway) rollbackServer(ctx context.Context, s *model.Session) error {
	assetID := s.RecipientLedgerAssetID
	exists, err := g.adapter.AssetExists(ctx, assetID)
	if err != nil {
		return fmt.Errorf("querying asset %s: %w", assetID, err)
	}
	if !exists {
		return nil
	}
	_, err = g.DeleteAssetToRollback(ctx, s.ID, assetID)
	return err
}
