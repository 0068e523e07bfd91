// Package catalog implements the backup manifest catalog: discovery,
// ranking and retrieval of manifest files from the remote store, plus the
// local retention sweep.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/clusterfoundry/backup-sidecar/internal/backup"
	"github.com/clusterfoundry/backup-sidecar/internal/config"
	"github.com/clusterfoundry/backup-sidecar/internal/metrics"
	"github.com/clusterfoundry/backup-sidecar/internal/storage"
)

// ErrRetrieval indicates a manifest could not be materialized locally. It
// wraps the underlying transfer failure.
var ErrRetrieval = errors.New("manifest retrieval failed")

// ErrArtifactListUnsupported is returned by ArtifactList: manifest body
// parsing belongs to the snapshot-format collaborator and is not
// implemented here.
var ErrArtifactListUnsupported = errors.New("artifact list extraction not supported")

// downloadConcurrency is the hint passed through to the transport for
// manifest downloads.
const downloadConcurrency = 10

// Catalog is the manifest catalog boundary exposed to callers. A catalog
// is stateless between calls: every search recomputes its prefixes from
// configuration and the given range.
type Catalog interface {
	// LocalManifestDir returns the directory manifests are materialized into.
	LocalManifestDir() string

	// SearchPrefix returns the remote listing prefix for the given range.
	// A nil range yields the time-independent manifest prefix.
	SearchPrefix(dr *backup.DateRange) string

	// Find returns the manifests whose timestamps fall inside the bounded
	// range, newest first. An empty result is a normal outcome, not an
	// error.
	Find(ctx context.Context, dr backup.DateRange) ([]*backup.Path, error)

	// Materialize downloads the manifest into the local manifest directory
	// and returns the local path. Re-downloading overwrites; the copy is
	// not content-addressed.
	Materialize(ctx context.Context, meta *backup.Path) (string, error)

	// PruneLocal deletes every local file matching the manifest naming
	// convention, best effort. Callers invoke it only when about to
	// repopulate from remote, and must not race it with Materialize.
	PruneLocal()

	// ArtifactList parses the artifact identifiers out of a local
	// manifest. Currently unsupported.
	ArtifactList(localPath string) ([]string, error)
}

// New selects the catalog implementation for the configured manifest
// format. The format set is closed and the choice happens once, at
// construction, so every call path stays monomorphic.
func New(cfg *config.Config, fs storage.RemoteFS, codec *backup.Codec, logger *slog.Logger) (Catalog, error) {
	switch cfg.ManifestFormat {
	case "v2":
		return &v2Catalog{
			dir:    cfg.DataDir,
			fs:     fs,
			codec:  codec,
			logger: logger,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", cfg.ManifestFormat)
	}
}

// v2Catalog manages v2 manifest files.
type v2Catalog struct {
	dir    string
	fs     storage.RemoteFS
	codec  *backup.Codec
	logger *slog.Logger
}

// LocalManifestDir implements Catalog.LocalManifestDir.
func (c *v2Catalog) LocalManifestDir() string {
	return c.dir
}

// SearchPrefix implements Catalog.SearchPrefix.
func (c *v2Catalog) SearchPrefix(dr *backup.DateRange) string {
	prefix := c.codec.RemotePrefix(c.fs.RootPrefix(), backup.KindManifest)
	if dr == nil {
		return prefix
	}
	return path.Join(prefix, dr.Match())
}

// Find implements Catalog.Find. The prefix and marker only narrow by
// the coarse match token, so the exact instant filter runs client-side
// on every streamed key; keys that fail to decode are counted and
// skipped.
func (c *v2Catalog) Find(ctx context.Context, dr backup.DateRange) ([]*backup.Path, error) {
	if dr.Start.IsZero() || !dr.Bounded() {
		return nil, fmt.Errorf("%w: manifest search requires a bounded range, got %s",
			backup.ErrInvalidRange, dr)
	}

	prefix := c.SearchPrefix(&dr)
	marker := c.SearchPrefix(&backup.DateRange{Start: dr.Start})

	c.logger.Info("Listing remote manifests",
		"prefix", prefix,
		"marker", marker,
		"range", dr.String(),
	)

	start := time.Now()
	var metas []*backup.Path

	err := c.fs.Walk(ctx, prefix, marker, func(key string) error {
		meta, err := c.codec.Decode(key)
		if err != nil {
			metrics.MalformedKeys.Inc()
			c.logger.Warn("Skipping undecodable remote key", "key", key, "error", err)
			return nil
		}
		if dr.Contains(meta.LastModified) {
			metas = append(metas, meta)
		}
		return nil
	})

	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RecordSearch(false)
		return nil, fmt.Errorf("list manifests under %q: %w", prefix, err)
	}

	sort.Slice(metas, func(i, j int) bool {
		return backup.Compare(metas[i], metas[j]) < 0
	})

	metrics.RecordSearch(true)
	metrics.ManifestsFound.Set(float64(len(metas)))

	if len(metas) == 0 {
		c.logger.Info("No manifest found in window", "range", dr.String())
	}

	return metas, nil
}

// Materialize implements Catalog.Materialize.
func (c *v2Catalog) Materialize(ctx context.Context, meta *backup.Path) (string, error) {
	localPath := filepath.Join(c.dir, meta.FileName)

	start := time.Now()
	if err := c.fs.Download(ctx, meta.RemoteKey, localPath, downloadConcurrency); err != nil {
		metrics.RecordDownload(false)
		return "", fmt.Errorf("%w: %s: %w", ErrRetrieval, meta.RemoteKey, err)
	}

	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	metrics.RecordDownload(true)

	c.logger.Info("Manifest materialized", "key", meta.RemoteKey, "local_path", localPath)
	return localPath, nil
}

// PruneLocal implements Catalog.PruneLocal. The sweep is non-recursive
// and always completes its pass; individual deletion failures are logged
// and skipped.
func (c *v2Catalog) PruneLocal() {
	c.logger.Info("Pruning local manifest files", "dir", c.dir)

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("Failed to read manifest directory", "dir", c.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !backup.IsManifestFile(entry.Name()) {
			continue
		}

		target := filepath.Join(c.dir, entry.Name())
		if err := os.Remove(target); err != nil {
			c.logger.Warn("Failed to delete local manifest", "path", target, "error", err)
			continue
		}

		metrics.PrunedFiles.Inc()
		c.logger.Debug("Deleted local manifest", "path", target)
	}
}

// ArtifactList implements Catalog.ArtifactList.
func (c *v2Catalog) ArtifactList(localPath string) ([]string, error) {
	return nil, fmt.Errorf("%w: %s", ErrArtifactListUnsupported, localPath)
}
