// Package soroban implements the ledger adapter for Stellar Soroban networks,
// driving an asset-reference contract through a ledger-connector HTTP API.
package soroban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fazzatti/cacti/internal/ledger"
)

const defaultFee = 10000000

func init() {
	ledger.Register("soroban", func(cfg ledger.ChainConfig) (ledger.Adapter, error) {
		return New(cfg)
	})
}

// Adapter implements ledger.Adapter against a Soroban connector.
type Adapter struct {
	caps ledger.Capabilities

	baseURL   string
	authToken string

	contractID    string
	specXDR       []string
	sourceAccount string
	signingKey    string
	fee           int
	callTimeout   int // seconds, transaction-level timeout on-chain

	httpClient *http.Client
}

var _ ledger.Adapter = (*Adapter)(nil)

// New builds a Soroban adapter. All chain parameters are required; a missing
// one fails here, not at call time.
func New(cfg ledger.ChainConfig) (*Adapter, error) {
	caps, err := cfg.CapabilitiesForRole()
	if err != nil {
		return nil, err
	}
	if cfg.ConnectorURL == "" {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "connector_url"}
	}
	if cfg.ContractID == "" {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "contract_id"}
	}
	if len(cfg.ContractSpecXDR) == 0 {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "contract_spec_xdr"}
	}
	if cfg.SourceAccount == "" {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "source_account"}
	}
	if cfg.SigningKey == "" {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "signing_key"}
	}

	fee := cfg.Fee
	if fee == 0 {
		fee = defaultFee
	}
	timeout := int(cfg.CallTimeout.Std().Seconds())
	if timeout == 0 {
		timeout = 45
	}

	return &Adapter{
		caps:          caps,
		baseURL:       strings.TrimRight(cfg.ConnectorURL, "/"),
		authToken:     cfg.AuthToken,
		contractID:    cfg.ContractID,
		specXDR:       cfg.ContractSpecXDR,
		sourceAccount: cfg.SourceAccount,
		signingKey:    cfg.SigningKey,
		fee:           fee,
		callTimeout:   timeout,
		httpClient:    &http.Client{},
	}, nil
}

// Supports reports whether the adapter implements op.
func (a *Adapter) Supports(op ledger.Operation) bool {
	return a.caps.Has(op)
}

// transactionInvocation is the signing envelope the connector expects.
type transactionInvocation struct {
	Header  invocationHeader `json:"header"`
	Signers []string         `json:"signers"`
}

type invocationHeader struct {
	Source  string `json:"source"`
	Fee     int    `json:"fee"`
	Timeout int    `json:"timeout"`
}

// runTransactionRequest is the connector's run-soroban-transaction payload.
type runTransactionRequest struct {
	ContractID            string                `json:"contractId"`
	SpecXDR               []string              `json:"specXdr"`
	Method                string                `json:"method"`
	MethodArgs            map[string]string     `json:"methodArgs"`
	TransactionInvocation transactionInvocation `json:"transactionInvocation"`
	ReadOnly              bool                  `json:"readOnly,omitempty"`
}

// runTransaction submits one contract invocation and returns the raw response
// body, which doubles as the proof payload for state-mutating calls.
func (a *Adapter) runTransaction(ctx context.Context, op ledger.Operation, method, assetID string, readOnly bool) ([]byte, error) {
	payload := runTransactionRequest{
		ContractID: a.contractID,
		SpecXDR:    a.specXDR,
		Method:     method,
		MethodArgs: map[string]string{"id": assetID},
		TransactionInvocation: transactionInvocation{
			Header: invocationHeader{
				Source:  a.sourceAccount,
				Fee:     a.fee,
				Timeout: a.callTimeout,
			},
			Signers: []string{a.signingKey},
		},
		ReadOnly: readOnly,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling transaction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/api/v1/plugins/connector-stellar/run-soroban-transaction", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.authToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &ledger.CallError{Chain: "soroban", Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ledger.CallError{Chain: "soroban", Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		// Surface the chain-level message unchanged.
		var errResp struct {
			Error string `json:"error"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return nil, &ledger.CallError{Chain: "soroban", Op: op, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)}
	}

	return respBody, nil
}

func (a *Adapter) mutate(ctx context.Context, op ledger.Operation, method, assetID string) (string, error) {
	if !a.caps.Has(op) {
		return "", &ledger.UnsupportedOperationError{Op: op}
	}
	proof, err := a.runTransaction(ctx, op, method, assetID, false)
	if err != nil {
		return "", err
	}
	return string(proof), nil
}

func (a *Adapter) query(ctx context.Context, op ledger.Operation, method, assetID string) (bool, error) {
	if !a.caps.Has(op) {
		return false, &ledger.UnsupportedOperationError{Op: op}
	}
	body, err := a.runTransaction(ctx, op, method, assetID, true)
	if err != nil {
		return false, err
	}
	var resp struct {
		Result bool `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, &ledger.CallError{Chain: "soroban", Op: op, Err: fmt.Errorf("decoding result: %w", err)}
	}
	return resp.Result, nil
}

func (a *Adapter) LockAsset(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpLockAsset, "lock_asset_reference", assetID)
}

func (a *Adapter) UnlockAsset(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpUnlockAsset, "unlock_asset_reference", assetID)
}

func (a *Adapter) CreateAsset(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpCreateAsset, "create_asset_reference", assetID)
}

func (a *Adapter) DeleteAsset(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpDeleteAsset, "delete_asset_reference", assetID)
}

func (a *Adapter) CreateAssetToRollback(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpCreateAssetToRollback, "create_asset_reference", assetID)
}

func (a *Adapter) DeleteAssetToRollback(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpDeleteAssetToRollback, "delete_asset_reference", assetID)
}

func (a *Adapter) AssetExists(ctx context.Context, assetID string) (bool, error) {
	return a.query(ctx, ledger.OpAssetExists, "is_present", assetID)
}

func (a *Adapter) IsAssetLocked(ctx context.Context, assetID string) (bool, error) {
	return a.query(ctx, ledger.OpIsAssetLocked, "is_asset_locked", assetID)
}
