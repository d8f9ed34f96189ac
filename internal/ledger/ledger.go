// Package ledger defines the capability contract every chain connector must
// satisfy, and a registry that selects the concrete adapter for a chain key.
package ledger

import (
	"context"
)

// Operation names one abstract ledger primitive.
type Operation string

const (
	OpLockAsset             Operation = "lock-asset"
	OpUnlockAsset           Operation = "unlock-asset"
	OpCreateAsset           Operation = "create-asset"
	OpDeleteAsset           Operation = "delete-asset"
	OpCreateAssetToRollback Operation = "create-asset-rollback"
	OpDeleteAssetToRollback Operation = "delete-asset-rollback"
	OpAssetExists           Operation = "asset-exists"
	OpIsAssetLocked         Operation = "is-asset-locked"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// Capabilities is the set of operations an adapter supports. Adapters declare
// it explicitly so a role-inappropriate call fails loudly instead of silently
// succeeding.
type Capabilities map[Operation]bool

// Has reports whether the capability set includes op.
func (c Capabilities) Has(op Operation) bool {
	return c[op]
}

// ClientCapabilities is the operation set of a source-chain (client) adapter:
// lock, final delete, and the unlock/create compensations, plus queries.
func ClientCapabilities() Capabilities {
	return Capabilities{
		OpLockAsset:             true,
		OpUnlockAsset:           true,
		OpDeleteAsset:           true,
		OpCreateAssetToRollback: true,
		OpAssetExists:           true,
		OpIsAssetLocked:         true,
	}
}

// ServerCapabilities is the operation set of a destination-chain (server)
// adapter: create, final delete, the delete compensation, plus queries.
func ServerCapabilities() Capabilities {
	return Capabilities{
		OpCreateAsset:           true,
		OpDeleteAsset:           true,
		OpDeleteAssetToRollback: true,
		OpAssetExists:           true,
		OpIsAssetLocked:         true,
	}
}

// Adapter translates abstract asset operations into signed calls against one
// concrete ledger. Every state-mutating call blocks on remote-chain
// confirmation and returns the serialized chain evidence as an opaque proof
// string. Implementations declare their supported subset via Supports; calling
// an unsupported primitive returns ErrUnsupportedOperation.
type Adapter interface {
	// Supports reports whether the adapter implements op.
	Supports(op Operation) bool

	LockAsset(ctx context.Context, assetID string) (proof string, err error)
	UnlockAsset(ctx context.Context, assetID string) (proof string, err error)
	CreateAsset(ctx context.Context, assetID string) (proof string, err error)
	DeleteAsset(ctx context.Context, assetID string) (proof string, err error)
	CreateAssetToRollback(ctx context.Context, assetID string) (proof string, err error)
	DeleteAssetToRollback(ctx context.Context, assetID string) (proof string, err error)

	AssetExists(ctx context.Context, assetID string) (bool, error)
	IsAssetLocked(ctx context.Context, assetID string) (bool, error)
}

// Invoke dispatches a state-mutating operation by name. Queries (asset-exists,
// is-asset-locked) are not dispatchable here because their result is a bool,
// not a proof.
func Invoke(ctx context.Context, a Adapter, op Operation, assetID string) (string, error) {
	if !a.Supports(op) {
		return "", &UnsupportedOperationError{Op: op}
	}
	switch op {
	case OpLockAsset:
		return a.LockAsset(ctx, assetID)
	case OpUnlockAsset:
		return a.UnlockAsset(ctx, assetID)
	case OpCreateAsset:
		return a.CreateAsset(ctx, assetID)
	case OpDeleteAsset:
		return a.DeleteAsset(ctx, assetID)
	case OpCreateAssetToRollback:
		return a.CreateAssetToRollback(ctx, assetID)
	case OpDeleteAssetToRollback:
		return a.DeleteAssetToRollback(ctx, assetID)
	default:
		return "", &UnsupportedOperationError{Op: op}
	}
}
