// Package config loads gateway configuration: process settings from BRIDGE_*
// environment variables and the chain profile from a TOML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/fazzatti/cacti/internal/ledger"
)

type Config struct {
	HTTPAddr  string // BRIDGE_HTTP_ADDR (default ":8080")
	APIHost   string // BRIDGE_API_HOST (address advertised to counterparties; default "http://localhost:8080")
	PubKey    string // BRIDGE_PUB_KEY (optional, identifies this gateway in handshakes)
	AuthToken string // BRIDGE_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL   string // BRIDGE_NATS_URL (optional, empty = no events)

	// Storage. Empty URLs fall back to in-process stores.
	DatabaseURL       string // BRIDGE_DATABASE_URL (sessions + local proof ledger)
	RemoteDatabaseURL string // BRIDGE_REMOTE_DATABASE_URL (mirrored proof ledger)

	// ChainConfigPath points at the TOML chain profile. Empty selects the
	// in-process demo chain with the client role.
	ChainConfigPath string // BRIDGE_CHAIN_CONFIG

	// Archive settings
	ArchiveInterval   time.Duration // BRIDGE_ARCHIVE_INTERVAL (default 3m; 0 = disabled)
	ArchiveFile       string        // BRIDGE_ARCHIVE_FILE (enables file archive when set)
	ArchiveS3Bucket   string        // BRIDGE_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // BRIDGE_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // BRIDGE_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // BRIDGE_ARCHIVE_S3_KEY (default "bridge/audit.jsonl")
}

func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:          envOrDefault("BRIDGE_HTTP_ADDR", ":8080"),
		APIHost:           envOrDefault("BRIDGE_API_HOST", "http://localhost:8080"),
		PubKey:            os.Getenv("BRIDGE_PUB_KEY"),
		AuthToken:         os.Getenv("BRIDGE_AUTH_TOKEN"),
		NATSURL:           os.Getenv("BRIDGE_NATS_URL"),
		DatabaseURL:       os.Getenv("BRIDGE_DATABASE_URL"),
		RemoteDatabaseURL: os.Getenv("BRIDGE_REMOTE_DATABASE_URL"),
		ChainConfigPath:   os.Getenv("BRIDGE_CHAIN_CONFIG"),
		ArchiveFile:       os.Getenv("BRIDGE_ARCHIVE_FILE"),
		ArchiveS3Bucket:   os.Getenv("BRIDGE_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("BRIDGE_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("BRIDGE_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("BRIDGE_ARCHIVE_S3_KEY", "bridge/audit.jsonl"),
	}

	intervalStr := envOrDefault("BRIDGE_ARCHIVE_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("BRIDGE_ARCHIVE_INTERVAL: %w", err)
		}
		c.ArchiveInterval = d
	}

	return c, nil
}

// LoadChainConfig decodes the TOML chain profile at path. An empty path
// yields the in-process demo chain with the client role.
func LoadChainConfig(path string) (ledger.ChainConfig, error) {
	if path == "" {
		return ledger.ChainConfig{Chain: "memory", Role: "client"}, nil
	}
	var cfg ledger.ChainConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ledger.ChainConfig{}, fmt.Errorf("chain config %s: %w", path, err)
	}
	if cfg.Chain == "" {
		return ledger.ChainConfig{}, fmt.Errorf("chain config %s: chain is required", path)
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
