// Package events publishes transfer lifecycle notifications to an event bus.
// Publishing is best-effort: the protocol never blocks on a slow or absent
// bus, and the audit trail in the proof ledger stays the source of truth.
package events

import (
	"context"

	"github.com/fazzatti/cacti/internal/model"
)

// Event topic constants
const (
	TopicTransferInitiated = "bridge.transfer.initiated"
	TopicTransferLocked    = "bridge.transfer.locked"
	TopicTransferCreated   = "bridge.transfer.created"
	TopicTransferCommitted = "bridge.transfer.committed"

	// Rollback events
	TopicRollbackStarted   = "bridge.rollback.started"
	TopicRollbackCompleted = "bridge.rollback.completed"
	TopicRollbackFailed    = "bridge.rollback.failed"
)

// Event types

type TransferInitiated struct {
	SessionID              string     `json:"session_id"`
	Role                   model.Role `json:"role"`
	SourceLedgerAssetID    string     `json:"source_ledger_asset_id"`
	RecipientLedgerAssetID string     `json:"recipient_ledger_asset_id"`
}

type TransferLocked struct {
	SessionID string `json:"session_id"`
	AssetID   string `json:"asset_id"`
	Proof     string `json:"proof"`
}

type TransferCreated struct {
	SessionID string `json:"session_id"`
	AssetID   string `json:"asset_id"`
	Proof     string `json:"proof"`
}

type TransferCommitted struct {
	SessionID string `json:"session_id"`
	AssetID   string `json:"asset_id"`
	Proof     string `json:"proof"`
}

type RollbackStarted struct {
	SessionID string      `json:"session_id"`
	Role      model.Role  `json:"role"`
	FromPhase model.Phase `json:"from_phase"`
	Reason    string      `json:"reason,omitempty"`
}

type RollbackCompleted struct {
	SessionID string                 `json:"session_id"`
	Actions   []model.RollbackAction `json:"actions"`
}

// RollbackFailed is published when a compensating call itself fails; an
// operator has to intervene from here.
type RollbackFailed struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber delivers raw event payloads from the bus. The returned cancel
// function unsubscribes and closes the channel; calling it twice is safe.
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// NoopPublisher drops every event. Used when no bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }
