package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fazzatti/cacti/internal/archive"
	"github.com/fazzatti/cacti/internal/config"
	"github.com/fazzatti/cacti/internal/events"
	"github.com/fazzatti/cacti/internal/gateway"
	"github.com/fazzatti/cacti/internal/ledger"
	_ "github.com/fazzatti/cacti/internal/ledger/evm"
	_ "github.com/fazzatti/cacti/internal/ledger/memory"
	_ "github.com/fazzatti/cacti/internal/ledger/soroban"
	"github.com/fazzatti/cacti/internal/proofs"
	proofspg "github.com/fazzatti/cacti/internal/proofs/postgres"
	"github.com/fazzatti/cacti/internal/session"
	sessionpg "github.com/fazzatti/cacti/internal/session/postgres"
	"github.com/fazzatti/cacti/internal/transport"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the bridge gateway server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Build the chain adapter from the TOML profile.
		chainCfg, err := config.LoadChainConfig(cfg.ChainConfigPath)
		if err != nil {
			return err
		}
		adapter, err := ledger.New(chainCfg)
		if err != nil {
			return err
		}
		logger.Info("chain adapter ready", "chain", chainCfg.Chain, "role", chainCfg.Role)

		// Session registry and proof ledgers. Postgres when configured,
		// in-process otherwise.
		var sessions session.Store
		var localProofs, remoteProofs proofs.Ledger
		if cfg.DatabaseURL != "" {
			pgSessions, err := sessionpg.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			sessions = pgSessions
			pgProofs, err := proofspg.New(cfg.DatabaseURL)
			if err != nil {
				sessions.Close()
				return err
			}
			localProofs = pgProofs
			logger.Info("postgres storage enabled")
		} else {
			sessions = session.NewMemoryStore()
			localProofs = proofs.NewMemoryLedger()
			logger.Warn("BRIDGE_DATABASE_URL not set, sessions and proofs are in-process only")
		}
		if cfg.RemoteDatabaseURL != "" {
			pgRemote, err := proofspg.New(cfg.RemoteDatabaseURL)
			if err != nil {
				localProofs.Close()
				sessions.Close()
				return err
			}
			remoteProofs = pgRemote
		} else {
			remoteProofs = proofs.NewMemoryLedger()
		}

		// Event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				remoteProofs.Close()
				localProofs.Close()
				sessions.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (BRIDGE_NATS_URL not set)")
		}

		gw := gateway.New(gateway.Options{
			Adapter:      adapter,
			Sessions:     sessions,
			LocalProofs:  localProofs,
			RemoteProofs: remoteProofs,
			Publisher:    publisher,
			Counterparty: transport.NewHTTPClient("", cfg.AuthToken),
			Logger:       logger,
			APIHost:      cfg.APIHost,
			PubKey:       cfg.PubKey,
		})

		srv := transport.NewServer(gw, logger)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the archive scheduler if any destinations are configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 {
			var dests []archive.Destination

			if cfg.ArchiveS3Bucket != "" {
				s3Dest, err := archive.NewS3Destination(
					context.Background(),
					cfg.ArchiveS3Bucket,
					cfg.ArchiveS3Key,
					cfg.ArchiveS3Region,
					cfg.ArchiveS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 archive destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("archive S3 destination enabled", "bucket", cfg.ArchiveS3Bucket, "key", cfg.ArchiveS3Key)
				}
			}

			if cfg.ArchiveFile != "" {
				dests = append(dests, archive.NewFileDestination(cfg.ArchiveFile))
				logger.Info("archive file destination enabled", "path", cfg.ArchiveFile)
			}

			if len(dests) > 0 {
				scheduler = archive.NewScheduler(sessions, localProofs, dests, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval)
			}
		}

		logger.Info("bridge gateway started",
			"http_addr", cfg.HTTPAddr,
			"api_host", cfg.APIHost,
			"chain", chainCfg.Chain,
			"role", chainCfg.Role,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := remoteProofs.Close(); err != nil {
			logger.Error("error closing remote proof ledger", "err", err)
		}
		if err := localProofs.Close(); err != nil {
			logger.Error("error closing proof ledger", "err", err)
		}
		if err := sessions.Close(); err != nil {
			logger.Error("error closing session store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
