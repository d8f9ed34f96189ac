// Package evm implements the ledger adapter for Besu-style EVM networks,
// invoking an asset-reference contract through a ledger-connector HTTP API.
package evm

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

const defaultGasLimit = 1000000

func init() {
	ledger.Register("evm", func(cfg ledger.ChainConfig) (ledger.Adapter, error) {
		return New(cfg)
	})
}

// invocation types understood by the connector.
const (
	invocationSend = "SEND"
	invocationCall = "CALL"
)

// Adapter implements ledger.Adapter against an EVM connector.
type Adapter struct {
	caps ledger.Capabilities

	baseURL   string
	authToken string

	contractName    string
	contractAddress string
	keychainRef     string
	gasLimit        int

	httpClient *http.Client
}

var _ ledger.Adapter = (*Adapter)(nil)

// New builds an EVM adapter, validating required chain parameters up front.
func New(cfg ledger.ChainConfig) (*Adapter, error) {
	caps, err := cfg.CapabilitiesForRole()
	if err != nil {
		return nil, err
	}
	if cfg.ConnectorURL == "" {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "connector_url"}
	}
	if cfg.ContractAddress == "" {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "contract_address"}
	}
	if cfg.ContractName == "" {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "contract_name"}
	}
	if cfg.KeychainRef == "" {
		return nil, &ledger.ConfigError{Chain: cfg.Chain, Field: "keychain_ref"}
	}

	gas := cfg.GasLimit
	if gas == 0 {
		gas = defaultGasLimit
	}

	return &Adapter{
		caps:            caps,
		baseURL:         strings.TrimRight(cfg.ConnectorURL, "/"),
		authToken:       cfg.AuthToken,
		contractName:    cfg.ContractName,
		contractAddress: cfg.ContractAddress,
		keychainRef:     cfg.KeychainRef,
		gasLimit:        gas,
		httpClient:      &http.Client{},
	}, nil
}

// Supports reports whether the adapter implements op.
func (a *Adapter) Supports(op ledger.Operation) bool {
	return a.caps.Has(op)
}

// runTransactionRequest is the connector's invoke-contract payload.
type runTransactionRequest struct {
	ContractName      string            `json:"contractName"`
	ContractAddress   string            `json:"contractAddress"`
	InvocationType    string            `json:"invocationType"`
	MethodName        string            `json:"methodName"`
	Params            []string          `json:"params"`
	Gas               int               `json:"gas"`
	SigningCredential signingCredential `json:"signingCredential"`
}

type signingCredential struct {
	KeychainRef string `json:"keychainRef"`
}

func (a *Adapter) runTransaction(ctx context.Context, op ledger.Operation, invocationType, method, assetID string) ([]byte, error) {
	payload := runTransactionRequest{
		ContractName:      a.contractName,
		ContractAddress:   a.contractAddress,
		InvocationType:    invocationType,
		MethodName:        method,
		Params:            []string{assetID},
		Gas:               a.gasLimit,
		SigningCredential: signingCredential{KeychainRef: a.keychainRef},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling transaction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/api/v1/plugins/connector-besu/run-transaction", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.authToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &ledger.CallError{Chain: "evm", Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ledger.CallError{Chain: "evm", Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return nil, &ledger.CallError{Chain: "evm", Op: op, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)}
	}

	return respBody, nil
}

func (a *Adapter) mutate(ctx context.Context, op ledger.Operation, method, assetID string) (string, error) {
	if !a.caps.Has(op) {
		return "", &ledger.UnsupportedOperationError{Op: op}
	}
	proof, err := a.runTransaction(ctx, op, invocationSend, method, assetID)
	if err != nil {
		return "", err
	}
	return string(proof), nil
}

func (a *Adapter) query(ctx context.Context, op ledger.Operation, method, assetID string) (bool, error) {
	if !a.caps.Has(op) {
		return false, &ledger.UnsupportedOperationError{Op: op}
	}
	body, err := a.runTransaction(ctx, op, invocationCall, method, assetID)
	if err != nil {
		return false, err
	}
	var resp struct {
		CallOutput string `json:"callOutput"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, &ledger.CallError{Chain: "evm", Op: op, Err: fmt.Errorf("decoding result: %w", err)}
	}
	return resp.CallOutput == "true", nil
}

func (a *Adapter) LockAsset(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpLockAsset, "lockAssetReference", assetID)
}

func (a *Adapter) UnlockAsset(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpUnlockAsset, "unLockAssetReference", assetID)
}

func (a *Adapter) CreateAsset(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpCreateAsset, "createAssetReference", assetID)
}

func (a *Adapter) DeleteAsset(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpDeleteAsset, "deleteAssetReference", assetID)
}

func (a *Adapter) CreateAssetToRollback(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpCreateAssetToRollback, "createAssetReference", assetID)
}

func (a *Adapter) DeleteAssetToRollback(ctx context.Context, assetID string) (string, error) {
	return a.mutate(ctx, ledger.OpDeleteAssetToRollback, "deleteAssetReference", assetID)
}

func (a *Adapter) AssetExists(ctx context.Context, assetID string) (bool, error) {
	return a.query(ctx, ledger.OpAssetExists, "isPresent", assetID)
}

func (a *Adapter) IsAssetLocked(ctx context.Context, assetID string) (bool, error) {
	return a.query(ctx, ledger.OpIsAssetLocked, "isAssetLocked", assetID)
}
