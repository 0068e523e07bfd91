package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/clusterfoundry/backup-sidecar/internal/backup"
	"github.com/clusterfoundry/backup-sidecar/internal/catalog"
	"github.com/clusterfoundry/backup-sidecar/internal/config"
	"github.com/clusterfoundry/backup-sidecar/internal/health"
	"github.com/clusterfoundry/backup-sidecar/internal/metrics"
	"github.com/clusterfoundry/backup-sidecar/internal/refresh"
	"github.com/clusterfoundry/backup-sidecar/internal/server"
	"github.com/clusterfoundry/backup-sidecar/internal/storage"
)

func main() {
	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Backup catalog sidecar starting")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Configuration loaded",
		"cluster", cfg.ClusterName,
		"node", cfg.NodeID,
		"storage_provider", cfg.StorageProvider,
		"backup_location", cfg.BackupLocation,
		"manifest_format", cfg.ManifestFormat,
		"lookback_days", cfg.LookbackDays,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the remote filesystem, codec and catalog
	fs, err := storage.NewRemoteFS(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create remote filesystem", "error", err)
		os.Exit(1)
	}

	codec := backup.NewCodec(cfg.ClusterName, cfg.NodeID, cfg.BackupLocation)

	cat, err := catalog.New(cfg, fs, codec, logger)
	if err != nil {
		logger.Error("Failed to create manifest catalog", "error", err)
		os.Exit(1)
	}

	refresher := refresh.NewRefresher(cfg, cat, logger)

	metrics.Info.WithLabelValues("1.0.0", cfg.StorageProvider, cfg.ManifestFormat).Set(1)

	// Start metrics server if enabled
	var httpServer *server.Server
	var wg sync.WaitGroup

	if metricsPort := os.Getenv("METRICS_PORT"); metricsPort != "" {
		port, err := strconv.Atoi(metricsPort)
		if err != nil {
			logger.Warn("Invalid METRICS_PORT, using default", "error", err)
			port = 8080
		}

		serverConfig := server.DefaultConfig()
		serverConfig.Port = port
		httpServer = server.New(serverConfig, logger, func() map[string]interface{} {
			return map[string]interface{}{
				"manifest_dir": cat.LocalManifestDir(),
				"last_refresh": refresher.LastRefresh(),
			}
		})

		httpServer.RegisterHealthCheck("remote_storage",
			health.StorageCheck(fs, cat.SearchPrefix(nil)))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := httpServer.Start(); err != nil {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Run the first pass immediately, then on a ticker
	if err := refresher.Run(ctx); err != nil {
		logger.Error("Refresh pass failed", "error", err)
	}

	ticker := time.NewTicker(cfg.GetRefreshInterval())
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			if err := refresher.Run(ctx); err != nil {
				logger.Error("Refresh pass failed", "error", err)
			}
		case sig := <-sigCh:
			logger.Info("Received shutdown signal", "signal", sig)
			break loop
		}
	}

	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down HTTP server", "error", err)
		}
	}

	wg.Wait()
	logger.Info("Backup catalog sidecar stopped")
}
