package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fazzatti/cacti/internal/events"
	"github.com/fazzatti/cacti/internal/idgen"
	"github.com/fazzatti/cacti/internal/ledger"
	"github.com/fazzatti/cacti/internal/model"
)

// commitFinalOperation names the audit entry recorded when the server gateway
// learns the client committed.
const commitFinalOperation = "commit-final"

// InitiateTransfer validates a transfer request and registers a client-role
// session for it. It does not touch any chain; call RunTransfer to drive the
// protocol. A missing session id is filled in; a duplicate id, including one
// belonging to a finished session, is rejected with a session.ConflictError
// and no state change.
func (g *Gateway) InitiateTransfer(ctx context.Context, req *model.TransferRequest) (*model.Session, error) {
	if err := model.ValidateTransferRequest(req); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		id, err := idgen.Generate()
		if err != nil {
			return nil, fmt.Errorf("generating session id: %w", err)
		}
		req.SessionID = id
	}
	if req.ClientGatewayConfiguration.APIHost == "" {
		req.ClientGatewayConfiguration = model.GatewayEndpoint{APIHost: g.apiHost, PubKey: g.pubKey}
	}
	if req.Version == "" {
		req.Version = ProtocolVersion
	}

	s := newSession(req, model.RoleClient)
	if err := g.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	g.logger.Info("transfer initiated",
		"session_id", s.ID, "role", s.Role,
		"source_asset", s.SourceLedgerAssetID, "recipient_asset", s.RecipientLedgerAssetID)
	g.publish(ctx, events.TopicTransferInitiated, events.TransferInitiated{
		SessionID:              s.ID,
		Role:                   s.Role,
		SourceLedgerAssetID:    s.SourceLedgerAssetID,
		RecipientLedgerAssetID: s.RecipientLedgerAssetID,
	})
	return s.Clone(), nil
}

// RunTransfer drives a client-role session through lock, counterparty
// handoff, and commit. Any phase failure after its retry budget triggers a
// rollback; RunTransfer then returns the original failure. A rollback that
// itself fails is reported as a RollbackError.
func (g *Gateway) RunTransfer(ctx context.Context, sessionID string) error {
	s, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Role != model.RoleClient {
		return fmt.Errorf("session %s: only client-role sessions can drive a transfer", sessionID)
	}
	if s.Phase != model.PhaseInitiated {
		return &PhaseError{SessionID: sessionID, From: s.Phase, To: model.PhaseLocked}
	}

	// Phase 1: lock the source asset.
	var lockProof string
	err = g.withRetry(ctx, s, ledger.OpLockAsset.String(), func(ctx context.Context) error {
		p, err := g.LockAsset(ctx, sessionID, "")
		if err == nil {
			lockProof = p
		}
		return err
	})
	if err != nil {
		return g.abortTransfer(ctx, sessionID, err)
	}
	if _, err := g.advancePhase(ctx, sessionID, model.PhaseLocked); err != nil {
		return g.abortTransfer(ctx, sessionID, err)
	}
	g.publish(ctx, events.TopicTransferLocked, events.TransferLocked{
		SessionID: sessionID, AssetID: s.SourceLedgerAssetID, Proof: lockProof,
	})

	// Phase 2: hand off to the server gateway, which creates the
	// destination asset before acknowledging.
	if g.counterparty == nil {
		return g.abortTransfer(ctx, sessionID, errors.New("no counterparty client configured"))
	}
	req := handshakeRequest(s)
	err = g.withRetry(ctx, s, "transfer-commence", func(ctx context.Context) error {
		return g.counterparty.CommenceTransfer(ctx, s.CounterpartyAddr, req)
	})
	if err != nil {
		return g.abortTransfer(ctx, sessionID, err)
	}
	if _, err := g.advancePhase(ctx, sessionID, model.PhaseTransferred); err != nil {
		return g.abortTransfer(ctx, sessionID, err)
	}

	// Phase 3: commit by deleting the source asset.
	var commitProof string
	err = g.withRetry(ctx, s, ledger.OpDeleteAsset.String(), func(ctx context.Context) error {
		p, err := g.DeleteAsset(ctx, sessionID, "")
		if err == nil {
			commitProof = p
		}
		return err
	})
	if err != nil {
		return g.abortTransfer(ctx, sessionID, err)
	}
	if _, err := g.advancePhase(ctx, sessionID, model.PhaseCommitted); err != nil {
		return err
	}
	g.logger.Info("transfer committed", "session_id", sessionID)
	g.publish(ctx, events.TopicTransferCommitted, events.TransferCommitted{
		SessionID: sessionID, AssetID: s.SourceLedgerAssetID, Proof: commitProof,
	})

	// Best-effort: tell the server gateway the transfer finalized. The
	// transfer is already committed; a lost notification leaves the server
	// session in transferred, never endangers the asset.
	if g.counterparty != nil {
		if err := g.counterparty.CompleteTransfer(ctx, s.CounterpartyAddr, sessionID, commitProof); err != nil {
			g.logger.Warn("failed to notify counterparty of commit",
				"session_id", sessionID, "error", err)
		}
	}
	return nil
}

// abortTransfer rolls the session back after a phase failure and returns the
// original failure, or the rollback's own error when compensation also fails.
func (g *Gateway) abortTransfer(ctx context.Context, sessionID string, cause error) error {
	g.logger.Error("transfer failed, rolling back", "session_id", sessionID, "error", cause)
	if err := g.Rollback(ctx, sessionID, cause.Error()); err != nil {
		return err
	}
	return cause
}

// OnTransferCommence handles the server side of the handshake: it registers a
// server-role session for the request and creates the destination asset. The
// acknowledgement implies the asset exists, so the client's commit can never
// precede a successful create. A duplicate session id is rejected with no
// side effects.
func (g *Gateway) OnTransferCommence(ctx context.Context, req *model.TransferRequest) (*model.Session, error) {
	if err := model.ValidateTransferRequest(req); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, errors.New("transfer commence requires a session id")
	}

	s := newSession(req, model.RoleServer)
	if err := g.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	g.logger.Info("transfer commence accepted",
		"session_id", s.ID, "recipient_asset", s.RecipientLedgerAssetID)
	g.publish(ctx, events.TopicTransferInitiated, events.TransferInitiated{
		SessionID:              s.ID,
		Role:                   s.Role,
		SourceLedgerAssetID:    s.SourceLedgerAssetID,
		RecipientLedgerAssetID: s.RecipientLedgerAssetID,
	})

	var createProof string
	err := g.withRetry(ctx, s, ledger.OpCreateAsset.String(), func(ctx context.Context) error {
		p, err := g.CreateAsset(ctx, s.ID, "")
		if err == nil {
			createProof = p
		}
		return err
	})
	if err != nil {
		if rbErr := g.Rollback(ctx, s.ID, err.Error()); rbErr != nil {
			return nil, rbErr
		}
		return nil, err
	}
	// Server sessions have no lock phase; a confirmed create moves them
	// straight to transferred.
	updated, err := g.sessions.Mutate(ctx, s.ID, func(s *model.Session) error {
		if s.Phase != model.PhaseInitiated {
			return &PhaseError{SessionID: s.ID, From: s.Phase, To: model.PhaseTransferred}
		}
		s.Phase = model.PhaseTransferred
		s.Step++
		s.LastSequenceNumber++
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.publish(ctx, events.TopicTransferCreated, events.TransferCreated{
		SessionID: s.ID, AssetID: s.RecipientLedgerAssetID, Proof: createProof,
	})
	return updated, nil
}

// OnTransferComplete finalizes a server-role session once the client reports
// its commit, recording the commit evidence.
func (g *Gateway) OnTransferComplete(ctx context.Context, sessionID, proof string) (*model.Session, error) {
	s, err := g.sessions.Mutate(ctx, sessionID, func(s *model.Session) error {
		if s.Role != model.RoleServer {
			return fmt.Errorf("session %s: transfer complete applies to server-role sessions", sessionID)
		}
		if !s.Phase.CanAdvanceTo(model.PhaseCommitted) {
			return &PhaseError{SessionID: sessionID, From: s.Phase, To: model.PhaseCommitted}
		}
		s.Phase = model.PhaseCommitted
		s.Step++
		s.LastSequenceNumber++
		if proof != "" {
			s.CommitFinalClaim = proof
		}
		return g.storeDone(ctx, s, model.RecordDone, commitFinalOperation)
	})
	if err != nil {
		return nil, err
	}
	g.logger.Info("transfer completed by counterparty", "session_id", sessionID)
	g.publish(ctx, events.TopicTransferCommitted, events.TransferCommitted{
		SessionID: sessionID, AssetID: s.RecipientLedgerAssetID, Proof: proof,
	})
	return s, nil
}

// handshakeRequest rebuilds the payload sent to the server gateway from the
// client session's stored parameters.
func handshakeRequest(s *model.Session) *model.TransferRequest {
	return &model.TransferRequest{
		SessionID:              s.ID,
		Version:                s.Version,
		SourceLedgerAssetID:    s.SourceLedgerAssetID,
		RecipientLedgerAssetID: s.RecipientLedgerAssetID,
		MaxRetries:             s.MaxRetries,
		MaxTimeout:             s.MaxTimeout,
		AssetProfile:           s.AssetProfile,
		ServerGatewayConfiguration: model.GatewayEndpoint{
			APIHost: s.CounterpartyAddr,
		},
	}
}

// newSession builds the initial session state for a validated request. The
// counterparty address is the other side's endpoint relative to role.
func newSession(req *model.TransferRequest, role model.Role) *model.Session {
	counterparty := req.ServerGatewayConfiguration.APIHost
	if role == model.RoleServer {
		counterparty = req.ClientGatewayConfiguration.APIHost
	}
	now := time.Now().UTC()
	return &model.Session{
		ID:                       req.SessionID,
		Role:                     role,
		SourceLedgerAssetID:      req.SourceLedgerAssetID,
		RecipientLedgerAssetID:   req.RecipientLedgerAssetID,
		Phase:                    model.PhaseInitiated,
		RollbackActionsPerformed: []model.RollbackAction{},
		RollbackProofs:           []string{},
		MaxRetries:               req.MaxRetries,
		MaxTimeout:               req.MaxTimeout,
		AssetProfile:             req.AssetProfile,
		CounterpartyAddr:         counterparty,
		Version:                  req.Version,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}
