package model

import (
	"encoding/json"
	"strings"
	"time"
)

// GatewayEndpoint identifies one gateway in the handshake payload.
type GatewayEndpoint struct {
	APIHost string `json:"api_host"`
	PubKey  string `json:"pub_key,omitempty"`
}

// TransferRequest is the gateway-to-gateway handshake payload. The client
// gateway builds it when a transfer is initiated; the server gateway's
// acceptance of the same payload is the sole trigger for its server-role
// session.
type TransferRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Version   string `json:"version"`

	ClientGatewayConfiguration GatewayEndpoint `json:"client_gateway_configuration"`
	ServerGatewayConfiguration GatewayEndpoint `json:"server_gateway_configuration"`

	SourceLedgerAssetID    string `json:"source_ledger_asset_id"`
	RecipientLedgerAssetID string `json:"recipient_ledger_asset_id"`

	MaxRetries int           `json:"max_retries"`
	MaxTimeout time.Duration `json:"max_timeout"`

	AssetProfile *AssetProfile `json:"asset_profile,omitempty"`

	OriginatorPubKey  string `json:"originator_pub_key,omitempty"`
	BeneficiaryPubKey string `json:"beneficiary_pub_key,omitempty"`
}

// MarshalJSON carries max_timeout as integer milliseconds, matching the
// gateway wire contract.
func (r TransferRequest) MarshalJSON() ([]byte, error) {
	type alias TransferRequest
	return json.Marshal(struct {
		alias
		MaxTimeout int64 `json:"max_timeout"`
	}{alias: alias(r), MaxTimeout: r.MaxTimeout.Milliseconds()})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *TransferRequest) UnmarshalJSON(data []byte) error {
	type alias TransferRequest
	aux := struct {
		*alias
		MaxTimeout int64 `json:"max_timeout"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.MaxTimeout = time.Duration(aux.MaxTimeout) * time.Millisecond
	return nil
}

// ValidateTransferRequest checks a handshake payload for constraint
// violations. It returns a *ValidationError if any rules fail.
func ValidateTransferRequest(r *TransferRequest) error {
	var ve ValidationError

	if strings.TrimSpace(r.SourceLedgerAssetID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "source_ledger_asset_id", Message: "is required"})
	}
	if strings.TrimSpace(r.RecipientLedgerAssetID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "recipient_ledger_asset_id", Message: "is required"})
	}
	if strings.TrimSpace(r.ServerGatewayConfiguration.APIHost) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "server_gateway_configuration.api_host", Message: "is required"})
	}
	if r.MaxRetries < 0 {
		ve.Errors = append(ve.Errors, FieldError{Field: "max_retries", Message: "must not be negative"})
	}
	if r.MaxTimeout < 0 {
		ve.Errors = append(ve.Errors, FieldError{Field: "max_timeout", Message: "must not be negative"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
