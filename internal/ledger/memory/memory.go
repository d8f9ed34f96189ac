// Package memory implements an in-process ledger. It backs the demo chain
// profile and the protocol tests, honoring the same lock/exists semantics a
// real asset-reference contract enforces.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fazzatti/cacti/internal/ledger"
	"github.com/fazzatti/cacti/internal/model"
)

func init() {
	ledger.Register("memory", func(cfg ledger.ChainConfig) (ledger.Adapter, error) {
		caps, err := cfg.CapabilitiesForRole()
		if err != nil {
			return nil, err
		}
		return NewChain().Adapter(caps), nil
	})
}

// Chain holds the asset references of one in-process ledger. Multiple
// adapters may share a chain, mirroring multiple signers on one network.
type Chain struct {
	mu     sync.Mutex
	assets map[string]*model.AssetReference
}

// NewChain returns an empty in-process chain.
func NewChain() *Chain {
	return &Chain{assets: make(map[string]*model.AssetReference)}
}

// Seed installs an asset reference directly, bypassing the adapter. Test and
// bootstrap use only.
func (c *Chain) Seed(ref model.AssetReference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref.Exists = true
	c.assets[ref.ID] = &ref
}

// Adapter returns an adapter over the chain restricted to the given
// capability set.
func (c *Chain) Adapter(caps ledger.Capabilities) *Adapter {
	return &Adapter{chain: c, caps: caps}
}

// Adapter implements ledger.Adapter against an in-process chain.
type Adapter struct {
	chain *Chain
	caps  ledger.Capabilities
}

var _ ledger.Adapter = (*Adapter)(nil)

// Supports reports whether the adapter implements op.
func (a *Adapter) Supports(op ledger.Operation) bool {
	return a.caps.Has(op)
}

// proof serializes a fake transaction receipt so the audit trail carries the
// same opaque-evidence shape real connectors produce.
func proof(method, assetID string) string {
	b, _ := json.Marshal(map[string]any{
		"ledger":    "memory",
		"method":    method,
		"id":        assetID,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return string(b)
}

func (a *Adapter) guard(ctx context.Context, op ledger.Operation) error {
	if !a.caps.Has(op) {
		return &ledger.UnsupportedOperationError{Op: op}
	}
	return ctx.Err()
}

func (a *Adapter) LockAsset(ctx context.Context, assetID string) (string, error) {
	if err := a.guard(ctx, ledger.OpLockAsset); err != nil {
		return "", err
	}
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	ref, ok := a.chain.assets[assetID]
	if !ok {
		return "", &ledger.CallError{Chain: "memory", Op: ledger.OpLockAsset, Err: fmt.Errorf("asset %s does not exist", assetID)}
	}
	if ref.IsLocked {
		return "", &ledger.CallError{Chain: "memory", Op: ledger.OpLockAsset, Err: fmt.Errorf("asset %s is already locked", assetID)}
	}
	ref.IsLocked = true
	return proof("lock_asset_reference", assetID), nil
}

func (a *Adapter) UnlockAsset(ctx context.Context, assetID string) (string, error) {
	if err := a.guard(ctx, ledger.OpUnlockAsset); err != nil {
		return "", err
	}
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	ref, ok := a.chain.assets[assetID]
	if !ok {
		return "", &ledger.CallError{Chain: "memory", Op: ledger.OpUnlockAsset, Err: fmt.Errorf("asset %s does not exist", assetID)}
	}
	ref.IsLocked = false
	return proof("unlock_asset_reference", assetID), nil
}

func (a *Adapter) CreateAsset(ctx context.Context, assetID string) (string, error) {
	if err := a.guard(ctx, ledger.OpCreateAsset); err != nil {
		return "", err
	}
	return a.create(ledger.OpCreateAsset, assetID)
}

func (a *Adapter) CreateAssetToRollback(ctx context.Context, assetID string) (string, error) {
	if err := a.guard(ctx, ledger.OpCreateAssetToRollback); err != nil {
		return "", err
	}
	return a.create(ledger.OpCreateAssetToRollback, assetID)
}

func (a *Adapter) create(op ledger.Operation, assetID string) (string, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	if _, ok := a.chain.assets[assetID]; ok {
		return "", &ledger.CallError{Chain: "memory", Op: op, Err: fmt.Errorf("asset %s already exists", assetID)}
	}
	a.chain.assets[assetID] = &model.AssetReference{ID: assetID, Exists: true}
	return proof("create_asset_reference", assetID), nil
}

func (a *Adapter) DeleteAsset(ctx context.Context, assetID string) (string, error) {
	if err := a.guard(ctx, ledger.OpDeleteAsset); err != nil {
		return "", err
	}
	return a.delete(ledger.OpDeleteAsset, assetID)
}

func (a *Adapter) DeleteAssetToRollback(ctx context.Context, assetID string) (string, error) {
	if err := a.guard(ctx, ledger.OpDeleteAssetToRollback); err != nil {
		return "", err
	}
	return a.delete(ledger.OpDeleteAssetToRollback, assetID)
}

func (a *Adapter) delete(op ledger.Operation, assetID string) (string, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	if _, ok := a.chain.assets[assetID]; !ok {
		return "", &ledger.CallError{Chain: "memory", Op: op, Err: fmt.Errorf("asset %s does not exist", assetID)}
	}
	delete(a.chain.assets, assetID)
	return proof("delete_asset_reference", assetID), nil
}

func (a *Adapter) AssetExists(ctx context.Context, assetID string) (bool, error) {
	if err := a.guard(ctx, ledger.OpAssetExists); err != nil {
		return false, err
	}
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	_, ok := a.chain.assets[assetID]
	return ok, nil
}

func (a *Adapter) IsAssetLocked(ctx context.Context, assetID string) (bool, error) {
	if err := a.guard(ctx, ledger.OpIsAssetLocked); err != nil {
		return false, err
	}
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	ref, ok := a.chain.assets[assetID]
	if !ok {
		return false, &ledger.CallError{Chain: "memory", Op: ledger.OpIsAssetLocked, Err: fmt.Errorf("asset %s does not exist", assetID)}
	}
	return ref.IsLocked, nil
}
