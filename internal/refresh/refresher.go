// Package refresh re-synchronizes the local manifest copy from the
// remote catalog: find the newest manifest in the lookback window, sweep
// the stale local copies, materialize the winner.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clusterfoundry/backup-sidecar/internal/backup"
	"github.com/clusterfoundry/backup-sidecar/internal/catalog"
	"github.com/clusterfoundry/backup-sidecar/internal/config"
	"github.com/clusterfoundry/backup-sidecar/internal/metrics"
	"github.com/clusterfoundry/backup-sidecar/internal/ratelimit"
)

// Refresher coordinates the refresh pass.
type Refresher struct {
	config      *config.Config
	catalog     catalog.Catalog
	rateLimiter ratelimit.RateLimiter
	logger      *slog.Logger

	lastRefresh time.Time
}

// NewRefresher creates a new refresher.
func NewRefresher(cfg *config.Config, cat catalog.Catalog, logger *slog.Logger) *Refresher {
	rlConfig := ratelimit.Config{
		MinInterval:  cfg.GetRefreshMinInterval(),
		ForceRefresh: cfg.ForceRefresh,
	}

	return &Refresher{
		config:      cfg,
		catalog:     cat,
		rateLimiter: ratelimit.NewTimeBasedLimiter(rlConfig),
		logger:      logger,
	}
}

// Run executes one refresh pass. A window with no manifests is a normal,
// successful outcome. PruneLocal and Materialize are serialized here; the
// refresher is the single writer of the local manifest directory.
func (r *Refresher) Run(ctx context.Context) error {
	shouldRefresh, reason := r.rateLimiter.ShouldRefresh(r.lastRefresh)
	r.logger.Info("Rate limiter decision", "should_refresh", shouldRefresh, "reason", reason)

	if !shouldRefresh {
		metrics.RefreshBlocked.Inc()
		return nil
	}

	now := time.Now()
	window, err := backup.NewDateRange(now.Add(-r.config.GetLookbackDuration()), now)
	if err != nil {
		return fmt.Errorf("build search window: %w", err)
	}

	metas, err := r.catalog.Find(ctx, window)
	if err != nil {
		return fmt.Errorf("find manifests: %w", err)
	}

	if len(metas) == 0 {
		r.logger.Info("No backup manifest in window, nothing to refresh", "range", window.String())
		r.lastRefresh = now
		return nil
	}

	newest := metas[0]
	r.logger.Info("Refreshing local manifest",
		"key", newest.RemoteKey,
		"last_modified", newest.LastModified,
		"candidates", len(metas),
	)

	// Stale copies go first; the sweep and the download must not overlap.
	r.catalog.PruneLocal()

	localPath, err := r.catalog.Materialize(ctx, newest)
	if err != nil {
		return fmt.Errorf("materialize manifest: %w", err)
	}

	r.lastRefresh = now
	metrics.LastRefreshTimestamp.Set(float64(now.Unix()))

	r.logger.Info("Refresh completed", "local_path", localPath)
	return nil
}

// LastRefresh returns the time of the last successful pass.
func (r *Refresher) LastRefresh() time.Time {
	return r.lastRefresh
}
