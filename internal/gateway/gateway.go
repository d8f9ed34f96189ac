// Package gateway implements the cross-chain transfer state machine. One
// gateway owns one chain's ledger adapter, a session registry, and a pair of
// proof ledgers; two gateways cooperate as the client (source) and server
// (destination) ends of a session.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fazzatti/cacti/internal/events"
	"github.com/fazzatti/cacti/internal/ledger"
	"github.com/fazzatti/cacti/internal/model"
	"github.com/fazzatti/cacti/internal/proofs"
	"github.com/fazzatti/cacti/internal/session"
)

// ProtocolVersion is sent in every handshake payload.
const ProtocolVersion = "1.0"

// Counterparty is the outbound half of the gateway-to-gateway handshake.
// Implemented by the transport package's HTTP client.
type Counterparty interface {
	// CommenceTransfer asks the server gateway at addr to create the
	// destination asset for the session described by req.
	CommenceTransfer(ctx context.Context, addr string, req *model.TransferRequest) error
	// CompleteTransfer tells the server gateway the source asset was
	// deleted, carrying the commit evidence.
	CompleteTransfer(ctx context.Context, addr, sessionID, proof string) error
}

// Options configures a Gateway. Adapter and Sessions are required; the proof
// ledgers default to in-process ones and the publisher to a no-op.
type Options struct {
	Adapter      ledger.Adapter
	Sessions     session.Store
	LocalProofs  proofs.Ledger
	RemoteProofs proofs.Ledger
	Publisher    events.Publisher
	Counterparty Counterparty
	Logger       *slog.Logger

	// APIHost is this gateway's own address, advertised in handshakes.
	APIHost string
	// PubKey identifies this gateway to its counterparty.
	PubKey string
}

// Gateway orchestrates transfer sessions over one chain adapter.
type Gateway struct {
	adapter      ledger.Adapter
	sessions     session.Store
	localProofs  proofs.Ledger
	remoteProofs proofs.Ledger
	publisher    events.Publisher
	counterparty Counterparty
	logger       *slog.Logger

	apiHost string
	pubKey  string
}

// New returns a Gateway wired from opts.
func New(opts Options) *Gateway {
	g := &Gateway{
		adapter:      opts.Adapter,
		sessions:     opts.Sessions,
		localProofs:  opts.LocalProofs,
		remoteProofs: opts.RemoteProofs,
		publisher:    opts.Publisher,
		counterparty: opts.Counterparty,
		logger:       opts.Logger,
		apiHost:      opts.APIHost,
		pubKey:       opts.PubKey,
	}
	if g.localProofs == nil {
		g.localProofs = proofs.NewMemoryLedger()
	}
	if g.remoteProofs == nil {
		g.remoteProofs = proofs.NewMemoryLedger()
	}
	if g.publisher == nil {
		g.publisher = &events.NoopPublisher{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Session returns a copy of the session, or session.ErrNotFound.
func (g *Gateway) Session(ctx context.Context, id string) (*model.Session, error) {
	return g.sessions.Get(ctx, id)
}

// Sessions returns copies of all sessions known to this gateway.
func (g *Gateway) Sessions(ctx context.Context) ([]*model.Session, error) {
	return g.sessions.List(ctx)
}

// History returns the audit trail of a session from the local proof ledger.
func (g *Gateway) History(ctx context.Context, sessionID string) ([]*model.AuditRecord, error) {
	return g.localProofs.History(ctx, sessionID)
}

// storeExec writes the pre-call audit record. Audit writes are ordered:
// exec strictly precedes the ledger call, done and proof follow it.
func (g *Gateway) storeExec(ctx context.Context, s *model.Session, typ model.RecordType, operation string) error {
	return g.storeSnapshot(ctx, s, typ, operation)
}

// storeDone writes the post-call audit record.
func (g *Gateway) storeDone(ctx context.Context, s *model.Session, typ model.RecordType, operation string) error {
	return g.storeSnapshot(ctx, s, typ, operation)
}

func (g *Gateway) storeSnapshot(ctx context.Context, s *model.Session, typ model.RecordType, operation string) error {
	snapshot, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return g.localProofs.StoreLog(ctx, &model.AuditRecord{
		SessionID: s.ID,
		Type:      typ,
		Operation: operation,
		Data:      string(snapshot),
		Timestamp: time.Now().UTC(),
	})
}

// storeProof appends chain evidence to the local ledger and mirrors it to the
// remote one so the counterparty's history can be reconciled offline.
func (g *Gateway) storeProof(ctx context.Context, sessionID string, typ model.RecordType, operation, proof string) error {
	record := &model.AuditRecord{
		SessionID: sessionID,
		Type:      typ,
		Operation: operation,
		Data:      proof,
		Timestamp: time.Now().UTC(),
	}
	if err := g.localProofs.StoreProof(ctx, record); err != nil {
		return err
	}
	mirror := *record
	mirror.ID = 0
	if err := g.remoteProofs.StoreProof(ctx, &mirror); err != nil {
		g.logger.Warn("failed to mirror proof to remote ledger",
			"session_id", sessionID, "operation", operation, "error", err)
	}
	return nil
}

// publish emits a lifecycle event. Best-effort; failures are logged only.
func (g *Gateway) publish(ctx context.Context, topic string, event any) {
	if err := g.publisher.Publish(ctx, topic, event); err != nil {
		g.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// advancePhase moves the session to next, enforcing the state machine.
func (g *Gateway) advancePhase(ctx context.Context, sessionID string, next model.Phase) (*model.Session, error) {
	return g.sessions.Mutate(ctx, sessionID, func(s *model.Session) error {
		if !s.Phase.CanAdvanceTo(next) {
			return &PhaseError{SessionID: s.ID, From: s.Phase, To: next}
		}
		s.Phase = next
		s.Step++
		s.LastSequenceNumber++
		return nil
	})
}
