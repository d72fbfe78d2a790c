package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/warren/internal/archive"
	"github.com/alfredjeanlab/warren/internal/config"
	"github.com/alfredjeanlab/warren/internal/environ"
	"github.com/alfredjeanlab/warren/internal/events"
	"github.com/alfredjeanlab/warren/internal/reaper"
	"github.com/alfredjeanlab/warren/internal/replication"
	"github.com/alfredjeanlab/warren/internal/server"
	"github.com/alfredjeanlab/warren/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the warren server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (WARREN_NATS_URL not set)")
		}

		// Provisioner and schema lease pool.
		provisioner, err := environ.New(cfg.DatabaseURL, store, cfg.EnvironmentTTL, logger)
		if err != nil {
			publisher.Close()
			store.Close()
			return err
		}
		pool := environ.NewPool(logger)

		// Change-capture coordinator writing to the journal.
		journal := replication.NewJournalWriter(store)
		coordinator := replication.NewCoordinator(cfg.Replication, journal, logger)

		// Create server components.
		warrenServer := server.NewWarrenServer(store, provisioner, pool, coordinator, publisher, logger)

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: warrenServer.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the reaper unless disabled.
		var envReaper *reaper.Reaper
		if cfg.ReapInterval > 0 {
			envReaper = reaper.New(store, provisioner, pool, coordinator, publisher, cfg.ReapInterval, logger)
			envReaper.Start()
			logger.Info("reaper started", "interval", cfg.ReapInterval)
		} else {
			logger.Info("reaper disabled (WARREN_REAP_INTERVAL=0)")
		}

		// Start archive scheduler if a destination is configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 && cfg.ArchiveS3Bucket != "" {
			s3Dest, err := archive.NewS3Destination(
				context.Background(),
				cfg.ArchiveS3Bucket,
				cfg.ArchiveS3Prefix,
				cfg.ArchiveS3Region,
				cfg.ArchiveS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 archive destination", "err", err)
			} else {
				scheduler = archive.NewScheduler(store, []archive.Destination{s3Dest}, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval, "bucket", cfg.ArchiveS3Bucket)
			}
		}

		logger.Info("warren server started",
			"http_addr", cfg.HTTPAddr,
			"environment_ttl", cfg.EnvironmentTTL,
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

		if envReaper != nil {
			envReaper.Stop()
			logger.Info("reaper stopped")
		}

		coordinator.CleanupAll(context.Background())
		logger.Info("replication streams stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := provisioner.Close(); err != nil {
			logger.Error("error closing provisioner", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
