package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/clusterfoundry/backup-sidecar/internal/utils"
)

// GCSFS implements RemoteFS for Google Cloud Storage.
type GCSFS struct {
	client *storage.Client
	bucket string
	root   string
	logger *slog.Logger
}

// GCSConfig holds GCS-specific configuration.
type GCSConfig struct {
	Bucket             string
	ProjectID          string
	ServiceAccountJSON string
	Root               string // Backup root prefix under the bucket
}

// NewGCSFS creates a new GCS-backed remote filesystem.
func NewGCSFS(ctx context.Context, cfg GCSConfig, logger *slog.Logger) (*GCSFS, error) {
	var opts []option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSFS{
		client: client,
		bucket: cfg.Bucket,
		root:   cfg.Root,
		logger: logger,
	}, nil
}

// Walk implements RemoteFS.Walk. StartOffset is inclusive ("at or after"),
// matching the marker contract exactly.
func (g *GCSFS) Walk(ctx context.Context, prefix, marker string, fn func(key string) error) error {
	bucket := g.client.Bucket(g.bucket)
	query := &storage.Query{
		Prefix:      prefix,
		StartOffset: marker,
	}

	it := bucket.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: list gs://%s/%s: %v", ErrTransfer, g.bucket, prefix, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

// Download implements RemoteFS.Download. The GCS reader is a single
// stream, so the concurrency hint is accepted but unused.
func (g *GCSFS) Download(ctx context.Context, key, localPath string, concurrency int) error {
	_ = concurrency

	obj := g.client.Bucket(g.bucket).Object(key)
	r, err := obj.NewReader(ctx)
	if err != nil {
		return fmt.Errorf("%w: open gs://%s/%s: %v", ErrTransfer, g.bucket, key, err)
	}
	defer r.Close()

	tmpPath := localPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrTransfer, tmpPath, err)
	}

	pr := utils.NewProgressReader(r, func(bytesRead int64, elapsed time.Duration) {
		g.logger.Debug("Download progress",
			"key", key,
			"bytes", utils.FormatBytes(bytesRead),
			"elapsed", elapsed,
		)
	})

	buf := utils.DefaultBufferPool.Get()
	_, err = io.CopyBuffer(f, pr, buf)
	utils.DefaultBufferPool.Put(buf)

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: download gs://%s/%s: %v", ErrTransfer, g.bucket, key, err)
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename %s: %v", ErrTransfer, tmpPath, err)
	}

	return nil
}

// RootPrefix implements RemoteFS.RootPrefix.
func (g *GCSFS) RootPrefix() string {
	return g.root
}

// ValidateServiceAccountJSON checks that the credential blob is
// well-formed service account JSON before a client is built from it.
func ValidateServiceAccountJSON(credentials string) error {
	var sa struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(credentials), &sa); err != nil {
		return fmt.Errorf("invalid service account JSON: %w", err)
	}
	if sa.Type != "service_account" {
		return fmt.Errorf("unexpected credential type %q", sa.Type)
	}
	return nil
}
