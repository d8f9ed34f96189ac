package model

import (
	"encoding/json"
	"time"
)

// Role identifies which side of a transfer a gateway plays for a session.
type Role string

const (
	// RoleClient is the source-chain gateway: it locks and finally deletes
	// the source asset reference.
	RoleClient Role = "client"
	// RoleServer is the destination-chain gateway: it creates the
	// destination asset reference.
	RoleServer Role = "server"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks whether the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleServer:
		return true
	}
	return false
}

// Phase represents the protocol phase a session is in.
type Phase string

const (
	PhaseInitiated   Phase = "initiated"
	PhaseLocked      Phase = "locked"
	PhaseTransferred Phase = "transferred"
	PhaseCommitted   Phase = "committed"
	PhaseRollingBack Phase = "rolling_back"
	PhaseRolledBack  Phase = "rolled_back"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid checks whether the phase is a known value.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseInitiated, PhaseLocked, PhaseTransferred, PhaseCommitted,
		PhaseRollingBack, PhaseRolledBack:
		return true
	}
	return false
}

// Terminal reports whether the phase is a final state; terminal sessions are
// retained for audit and idempotency but never mutated again.
func (p Phase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseRolledBack
}

// phaseRank orders the happy-path phases so transitions can be checked as
// strictly forward. Rollback phases are handled separately.
var phaseRank = map[Phase]int{
	PhaseInitiated:   0,
	PhaseLocked:      1,
	PhaseTransferred: 2,
	PhaseCommitted:   3,
}

// CanAdvanceTo reports whether a session in phase p may move to next.
// Any non-terminal phase may diverge into rolling_back; rolling_back may only
// settle into rolled_back.
func (p Phase) CanAdvanceTo(next Phase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseRollingBack {
		return p != PhaseRollingBack
	}
	if next == PhaseRolledBack {
		return p == PhaseRollingBack
	}
	if p == PhaseRollingBack {
		return false
	}
	cur, ok := phaseRank[p]
	if !ok {
		return false
	}
	want, ok := phaseRank[next]
	if !ok {
		return false
	}
	return want == cur+1
}

// RollbackAction tags a single compensating ledger call taken during rollback.
type RollbackAction string

const (
	RollbackActionUnlock RollbackAction = "unlock"
	RollbackActionCreate RollbackAction = "create"
	RollbackActionDelete RollbackAction = "delete"
)

// String returns the string representation of the rollback action.
func (a RollbackAction) String() string {
	return string(a)
}

// IsValid checks whether the rollback action is a known value.
func (a RollbackAction) IsValid() bool {
	switch a {
	case RollbackActionUnlock, RollbackActionCreate, RollbackActionDelete:
		return true
	}
	return false
}

// Session is the mutable protocol state of one cross-chain transfer on one
// gateway. A session is owned by exactly one gateway instance and its role is
// fixed for its lifetime.
type Session struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`

	SourceLedgerAssetID    string `json:"source_ledger_asset_id"`
	RecipientLedgerAssetID string `json:"recipient_ledger_asset_id"`

	Phase              Phase `json:"phase"`
	Step               int   `json:"step"`
	LastSequenceNumber int   `json:"last_sequence_number"`

	// LockEvidenceClaim and CommitFinalClaim hold the last chain proof for
	// the lock and commit phases. Overwritten on each successful call; the
	// full history lives in the audit log only.
	LockEvidenceClaim string `json:"lock_evidence_claim,omitempty"`
	CommitFinalClaim  string `json:"commit_final_claim,omitempty"`

	// Rollback is set once a rollback has started and never cleared.
	Rollback bool `json:"rollback"`
	// RollbackActionsPerformed and RollbackProofs are index-aligned: one
	// proof per compensating action, appended together.
	RollbackActionsPerformed []RollbackAction `json:"rollback_actions_performed"`
	RollbackProofs           []string         `json:"rollback_proofs"`

	MaxRetries int           `json:"max_retries"`
	MaxTimeout time.Duration `json:"max_timeout"`

	AssetProfile *AssetProfile `json:"asset_profile,omitempty"`

	CounterpartyAddr string `json:"counterparty_addr,omitempty"`

	Version   string    `json:"version,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalJSON carries max_timeout as integer milliseconds, the unit the wire
// contract and the max_timeout_ms column use.
func (s Session) MarshalJSON() ([]byte, error) {
	type alias Session
	return json.Marshal(struct {
		alias
		MaxTimeout int64 `json:"max_timeout"`
	}{alias: alias(s), MaxTimeout: s.MaxTimeout.Milliseconds()})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Session) UnmarshalJSON(data []byte) error {
	type alias Session
	aux := struct {
		*alias
		MaxTimeout int64 `json:"max_timeout"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.MaxTimeout = time.Duration(aux.MaxTimeout) * time.Millisecond
	return nil
}

// RecordRollbackStep appends a compensating action and its proof together,
// keeping the two slices index-aligned.
func (s *Session) RecordRollbackStep(action RollbackAction, proof string) {
	s.RollbackActionsPerformed = append(s.RollbackActionsPerformed, action)
	s.RollbackProofs = append(s.RollbackProofs, proof)
}

// Initialized reports whether the session carries the fields every ledger
// operation depends on.
func (s *Session) Initialized() bool {
	return s.ID != "" &&
		s.Role.IsValid() &&
		s.SourceLedgerAssetID != "" &&
		s.RecipientLedgerAssetID != "" &&
		s.RollbackActionsPerformed != nil &&
		s.RollbackProofs != nil
}

// Clone returns a deep copy of the session. Stores hand out clones so callers
// can never mutate shared state outside a Mutate critical section.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	// Copy with make so empty slices stay non-nil; Initialized depends on
	// that distinction.
	if s.RollbackActionsPerformed != nil {
		dup.RollbackActionsPerformed = make([]RollbackAction, len(s.RollbackActionsPerformed))
		copy(dup.RollbackActionsPerformed, s.RollbackActionsPerformed)
	}
	if s.RollbackProofs != nil {
		dup.RollbackProofs = make([]string, len(s.RollbackProofs))
		copy(dup.RollbackProofs, s.RollbackProofs)
	}
	if s.AssetProfile != nil {
		profile := *s.AssetProfile
		dup.AssetProfile = &profile
	}
	return &dup
}
