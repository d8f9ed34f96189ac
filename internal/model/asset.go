package model

// AssetReference mirrors the on-chain record representing a transferable unit
// of value. The chain's contract owns the authoritative copy; the gateway only
// ever holds the result of a fresh query, never a cached truth.
type AssetReference struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient,omitempty"`
	IsLocked  bool   `json:"is_locked"`
	Exists    bool   `json:"exists"`
}

// AssetProfile is the opaque descriptor of the asset being transferred,
// carried in the handshake payload and stored on the session.
type AssetProfile struct {
	Issuer         string            `json:"issuer,omitempty"`
	AssetCode      string            `json:"asset_code,omitempty"`
	Expiration     string            `json:"expiration,omitempty"`
	KeyInformation map[string]string `json:"key_information,omitempty"`
}
