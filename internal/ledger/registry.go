package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ChainConfig carries everything an adapter needs to sign and submit calls
// against its chain. Fields not meaningful to a given chain are ignored by
// that chain's factory; required fields missing at construction fail fast
// with a ConfigError.
type ChainConfig struct {
	// Chain is the registry key selecting the adapter implementation.
	Chain string `toml:"chain"`
	// Role selects the capability subset the adapter exposes.
	Role string `toml:"role"`

	// ConnectorURL is the base URL of the ledger-connector API.
	ConnectorURL string `toml:"connector_url"`
	// AuthToken is sent as a bearer token to the connector, when set.
	AuthToken string `toml:"auth_token,omitempty"`

	// Soroban-style connectors.
	ContractID        string   `toml:"contract_id,omitempty"`
	ContractSpecXDR   []string `toml:"contract_spec_xdr,omitempty"`
	SigningKey        string   `toml:"signing_key,omitempty"`
	SourceAccount     string   `toml:"source_account,omitempty"`
	NetworkPassphrase string   `toml:"network_passphrase,omitempty"`
	Fee               int      `toml:"fee,omitempty"`

	// EVM-style connectors.
	ContractAddress string `toml:"contract_address,omitempty"`
	ContractName    string `toml:"contract_name,omitempty"`
	KeychainRef     string `toml:"keychain_ref,omitempty"`
	GasLimit        int    `toml:"gas_limit,omitempty"`

	// CallTimeout bounds a single connector round-trip.
	CallTimeout Duration `toml:"call_timeout,omitempty"`
}

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// CapabilitiesForRole resolves the configured role to a capability set.
func (c ChainConfig) CapabilitiesForRole() (Capabilities, error) {
	switch c.Role {
	case "client":
		return ClientCapabilities(), nil
	case "server":
		return ServerCapabilities(), nil
	default:
		return nil, &ConfigError{Chain: c.Chain, Field: "role"}
	}
}

// Factory builds an adapter from a chain configuration.
type Factory func(cfg ChainConfig) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register installs a factory under the given chain key. Registering the same
// key twice panics; adapters register from init and a collision is a
// programming error.
func Register(chain string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[chain]; dup {
		panic(fmt.Sprintf("ledger: adapter %q registered twice", chain))
	}
	registry[chain] = factory
}

// New builds the adapter registered for cfg.Chain.
func New(cfg ChainConfig) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Chain]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ledger: unknown chain %q (registered: %v)", cfg.Chain, Chains())
	}
	return factory(cfg)
}

// Chains returns the sorted list of registered chain keys.
func Chains() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
