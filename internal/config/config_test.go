package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// bridgeEnvVars lists all gateway env vars that must be cleared between tests.
var bridgeEnvVars = []string{
	"BRIDGE_HTTP_ADDR", "BRIDGE_API_HOST", "BRIDGE_PUB_KEY", "BRIDGE_AUTH_TOKEN",
	"BRIDGE_NATS_URL", "BRIDGE_DATABASE_URL", "BRIDGE_REMOTE_DATABASE_URL",
	"BRIDGE_CHAIN_CONFIG", "BRIDGE_ARCHIVE_INTERVAL", "BRIDGE_ARCHIVE_FILE",
	"BRIDGE_ARCHIVE_S3_BUCKET", "BRIDGE_ARCHIVE_S3_ENDPOINT",
	"BRIDGE_ARCHIVE_S3_REGION", "BRIDGE_ARCHIVE_S3_KEY",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range bridgeEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAllEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.APIHost != "http://localhost:8080" {
		t.Errorf("APIHost = %q, want http://localhost:8080", cfg.APIHost)
	}
	if cfg.ArchiveInterval != 3*time.Minute {
		t.Errorf("ArchiveInterval = %v, want 3m", cfg.ArchiveInterval)
	}
	if cfg.ArchiveS3Region != "us-east-1" {
		t.Errorf("ArchiveS3Region = %q, want us-east-1", cfg.ArchiveS3Region)
	}
	if cfg.ArchiveS3Key != "bridge/audit.jsonl" {
		t.Errorf("ArchiveS3Key = %q, want bridge/audit.jsonl", cfg.ArchiveS3Key)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty (in-process stores)", cfg.DatabaseURL)
	}
}

func TestLoadCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("BRIDGE_HTTP_ADDR", ":3000")
	t.Setenv("BRIDGE_API_HOST", "https://gateway-a.example.com")
	t.Setenv("BRIDGE_AUTH_TOKEN", "secret")
	t.Setenv("BRIDGE_NATS_URL", "nats://localhost:4222")
	t.Setenv("BRIDGE_DATABASE_URL", "postgres://db:5432/bridge")
	t.Setenv("BRIDGE_REMOTE_DATABASE_URL", "postgres://db:5432/bridge_remote")
	t.Setenv("BRIDGE_ARCHIVE_INTERVAL", "10m")
	t.Setenv("BRIDGE_ARCHIVE_S3_BUCKET", "my-bucket")
	t.Setenv("BRIDGE_ARCHIVE_FILE", "/var/lib/bridge/audit.jsonl")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.APIHost != "https://gateway-a.example.com" {
		t.Errorf("APIHost = %q", cfg.APIHost)
	}
	if cfg.AuthToken != "secret" {
		t.Errorf("AuthToken = %q", cfg.AuthToken)
	}
	if cfg.NATSURL != "nats://localhost:4222" {
		t.Errorf("NATSURL = %q", cfg.NATSURL)
	}
	if cfg.DatabaseURL != "postgres://db:5432/bridge" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.RemoteDatabaseURL != "postgres://db:5432/bridge_remote" {
		t.Errorf("RemoteDatabaseURL = %q", cfg.RemoteDatabaseURL)
	}
	if cfg.ArchiveInterval != 10*time.Minute {
		t.Errorf("ArchiveInterval = %v, want 10m", cfg.ArchiveInterval)
	}
	if cfg.ArchiveS3Bucket != "my-bucket" {
		t.Errorf("ArchiveS3Bucket = %q", cfg.ArchiveS3Bucket)
	}
	if cfg.ArchiveFile != "/var/lib/bridge/audit.jsonl" {
		t.Errorf("ArchiveFile = %q", cfg.ArchiveFile)
	}
}

func TestLoadInvalidArchiveInterval(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("BRIDGE_ARCHIVE_INTERVAL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid BRIDGE_ARCHIVE_INTERVAL")
	}
}

func TestLoadArchiveDisabled(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("BRIDGE_ARCHIVE_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ArchiveInterval != 0 {
		t.Errorf("ArchiveInterval = %v, want 0 (disabled)", cfg.ArchiveInterval)
	}
}

func TestLoadChainConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.toml")
	content := `
chain = "soroban"
role = "client"
connector_url = "http://localhost:4000"
contract_id = "CONTRACT123"
contract_spec_xdr = ["AAAA"]
signing_key = "S..."
source_account = "G..."
fee = 100
call_timeout = "30s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadChainConfig(path)
	if err != nil {
		t.Fatalf("LoadChainConfig: %v", err)
	}
	if cfg.Chain != "soroban" {
		t.Errorf("Chain = %q, want soroban", cfg.Chain)
	}
	if cfg.Role != "client" {
		t.Errorf("Role = %q, want client", cfg.Role)
	}
	if cfg.ConnectorURL != "http://localhost:4000" {
		t.Errorf("ConnectorURL = %q", cfg.ConnectorURL)
	}
	if len(cfg.ContractSpecXDR) != 1 || cfg.ContractSpecXDR[0] != "AAAA" {
		t.Errorf("ContractSpecXDR = %v", cfg.ContractSpecXDR)
	}
	if cfg.CallTimeout.Std() != 30*time.Second {
		t.Errorf("CallTimeout = %v, want 30s", cfg.CallTimeout.Std())
	}
}

func TestLoadChainConfig_EmptyPathUsesMemory(t *testing.T) {
	cfg, err := LoadChainConfig("")
	if err != nil {
		t.Fatalf("LoadChainConfig: %v", err)
	}
	if cfg.Chain != "memory" || cfg.Role != "client" {
		t.Errorf("default chain config = %+v, want memory/client", cfg)
	}
}

func TestLoadChainConfig_MissingChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.toml")
	if err := os.WriteFile(path, []byte(`role = "client"`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadChainConfig(path); err == nil {
		t.Fatal("expected error for chain config without a chain key")
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
