package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fazzatti/cacti/internal/ledger"
	"github.com/fazzatti/cacti/internal/ledger/memory"
	"github.com/fazzatti/cacti/internal/model"
	"github.com/fazzatti/cacti/internal/proofs"
	"github.com/fazzatti/cacti/internal/session"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type testEnv struct {
	gw     *Gateway
	chain  *memory.Chain
	store  *session.MemoryStore
	local  *proofs.MemoryLedger
	remote *proofs.MemoryLedger
	pub    *capturePublisher
}

func newTestGateway(t *testing.T, caps ledger.Capabilities) *testEnv {
	t.Helper()
	env := &testEnv{
		chain:  memory.NewChain(),
		store:  session.NewMemoryStore(),
		local:  proofs.NewMemoryLedger(),
		remote: proofs.NewMemoryLedger(),
		pub:    &capturePublisher{},
	}
	env.gw = New(Options{
		Adapter:      env.chain.Adapter(caps),
		Sessions:     env.store,
		LocalProofs:  env.local,
		RemoteProofs: env.remote,
		Publisher:    env.pub,
		APIHost:      "http://client.gateway.test",
		PubKey:       "client-pub",
	})
	t.Cleanup(func() { _ = env.store.Close() })
	return env
}

// seedSession registers a ready-to-run session directly in the store.
func seedSession(t *testing.T, env *testEnv, role model.Role) *model.Session {
	t.Helper()
	now := time.Now().UTC()
	s := &model.Session{
		ID:                       "sess-001",
		Role:                     role,
		SourceLedgerAssetID:      "AR-42",
		RecipientLedgerAssetID:   "AR-42-dst",
		Phase:                    model.PhaseInitiated,
		RollbackActionsPerformed: []model.RollbackAction{},
		RollbackProofs:           []string{},
		MaxRetries:               1,
		MaxTimeout:               5 * time.Second,
		CounterpartyAddr:         "http://server.gateway.test",
		Version:                  ProtocolVersion,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := env.store.Create(context.Background(), s); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	return s
}

func recordKinds(t *testing.T, env *testEnv, sessionID string) []string {
	t.Helper()
	records, err := env.local.History(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	kinds := make([]string, len(records))
	for i, r := range records {
		kinds[i] = string(r.Type) + " " + r.Operation
	}
	return kinds
}

func TestLockAsset_WritesAuditTrailInOrder(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	env.chain.Seed(model.AssetReference{ID: "AR-42"})
	seedSession(t, env, model.RoleClient)

	proof, err := env.gw.LockAsset(context.Background(), "sess-001", "")
	if err != nil {
		t.Fatalf("LockAsset: %v", err)
	}
	if proof == "" {
		t.Fatal("LockAsset returned an empty proof")
	}

	got := recordKinds(t, env, "sess-001")
	want := []string{"exec lock-asset", "proof lock", "done lock-asset"}
	if len(got) != len(want) {
		t.Fatalf("audit trail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("audit[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	s, err := env.gw.Session(context.Background(), "sess-001")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if s.LockEvidenceClaim != proof {
		t.Errorf("LockEvidenceClaim = %q, want %q", s.LockEvidenceClaim, proof)
	}
	if s.Step != 1 {
		t.Errorf("Step = %d, want 1", s.Step)
	}
}

func TestLockAsset_DefaultsToSessionAssetID(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	env.chain.Seed(model.AssetReference{ID: "AR-42"})
	seedSession(t, env, model.RoleClient)

	if _, err := env.gw.LockAsset(context.Background(), "sess-001", ""); err != nil {
		t.Fatalf("LockAsset: %v", err)
	}
	locked, err := env.chain.Adapter(ledger.ClientCapabilities()).IsAssetLocked(context.Background(), "AR-42")
	if err != nil {
		t.Fatalf("IsAssetLocked: %v", err)
	}
	if !locked {
		t.Error("asset AR-42 is not locked after LockAsset with empty asset id")
	}
}

func TestLockAsset_UninitializedSession(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	s := &model.Session{ID: "sess-001", Role: model.RoleClient, Phase: model.PhaseInitiated}
	if err := env.store.Create(context.Background(), s); err != nil {
		t.Fatalf("Create session: %v", err)
	}

	_, err := env.gw.LockAsset(context.Background(), "sess-001", "")
	if !IsUninitialized(err) {
		t.Fatalf("LockAsset error = %v, want SessionUninitializedError", err)
	}
	if kinds := recordKinds(t, env, "sess-001"); len(kinds) != 0 {
		t.Errorf("audit trail = %v, want empty for uninitialized session", kinds)
	}
}

func TestLockAsset_UnsupportedForServerCapabilities(t *testing.T) {
	env := newTestGateway(t, ledger.ServerCapabilities())
	seedSession(t, env, model.RoleServer)

	_, err := env.gw.LockAsset(context.Background(), "sess-001", "")
	if !ledger.IsUnsupported(err) {
		t.Fatalf("LockAsset error = %v, want UnsupportedOperationError", err)
	}
	if kinds := recordKinds(t, env, "sess-001"); len(kinds) != 0 {
		t.Errorf("audit trail = %v, want empty for unsupported operation", kinds)
	}
}

func TestUnlockAsset_RecordsRollbackStep(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	env.chain.Seed(model.AssetReference{ID: "AR-42", IsLocked: true})
	seedSession(t, env, model.RoleClient)

	proof, err := env.gw.UnlockAsset(context.Background(), "sess-001", "")
	if err != nil {
		t.Fatalf("UnlockAsset: %v", err)
	}

	s, err := env.gw.Session(context.Background(), "sess-001")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if len(s.RollbackActionsPerformed) != 1 || s.RollbackActionsPerformed[0] != model.RollbackActionUnlock {
		t.Errorf("RollbackActionsPerformed = %v, want [unlock]", s.RollbackActionsPerformed)
	}
	if len(s.RollbackProofs) != 1 || s.RollbackProofs[0] != proof {
		t.Errorf("RollbackProofs = %v, want the unlock proof", s.RollbackProofs)
	}

	got := recordKinds(t, env, "sess-001")
	want := []string{"exec-rollback unlock-asset", "proof-rollback unlock", "done-rollback unlock-asset"}
	if len(got) != len(want) {
		t.Fatalf("audit trail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("audit[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeleteAsset_StoresCommitClaim(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	env.chain.Seed(model.AssetReference{ID: "AR-42", IsLocked: true})
	seedSession(t, env, model.RoleClient)

	proof, err := env.gw.DeleteAsset(context.Background(), "sess-001", "")
	if err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	s, err := env.gw.Session(context.Background(), "sess-001")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if s.CommitFinalClaim != proof {
		t.Errorf("CommitFinalClaim = %q, want %q", s.CommitFinalClaim, proof)
	}
	exists, err := env.chain.Adapter(ledger.ClientCapabilities()).AssetExists(context.Background(), "AR-42")
	if err != nil {
		t.Fatalf("AssetExists: %v", err)
	}
	if exists {
		t.Error("asset AR-42 still exists after DeleteAsset")
	}
}

func TestProofsAreMirroredToRemoteLedger(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	env.chain.Seed(model.AssetReference{ID: "AR-42"})
	seedSession(t, env, model.RoleClient)

	if _, err := env.gw.LockAsset(context.Background(), "sess-001", ""); err != nil {
		t.Fatalf("LockAsset: %v", err)
	}

	remote, err := env.remote.History(context.Background(), "sess-001")
	if err != nil {
		t.Fatalf("remote History: %v", err)
	}
	if len(remote) != 1 {
		t.Fatalf("remote ledger has %d records, want 1 (proofs only)", len(remote))
	}
	if !remote[0].Type.IsProof() {
		t.Errorf("remote record type = %q, want a proof type", remote[0].Type)
	}
}

func TestFailedCallLeavesSessionUnchanged(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	// Asset never seeded: the lock call fails on chain.
	seedSession(t, env, model.RoleClient)

	_, err := env.gw.LockAsset(context.Background(), "sess-001", "")
	if err == nil {
		t.Fatal("LockAsset succeeded for a missing asset")
	}
	s, getErr := env.gw.Session(context.Background(), "sess-001")
	if getErr != nil {
		t.Fatalf("Session: %v", getErr)
	}
	if s.Step != 0 || s.LockEvidenceClaim != "" {
		t.Errorf("session mutated by failed call: step=%d claim=%q", s.Step, s.LockEvidenceClaim)
	}
}
