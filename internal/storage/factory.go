package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clusterfoundry/backup-sidecar/internal/config"
)

// RetryConfig holds retry configuration for remote operations.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryingFS wraps a RemoteFS with exponential backoff retry logic.
type RetryingFS struct {
	fs     RemoteFS
	config RetryConfig
}

// NewRetryingFS creates a new remote filesystem wrapper with retry logic.
func NewRetryingFS(fs RemoteFS, config RetryConfig) *RetryingFS {
	return &RetryingFS{
		fs:     fs,
		config: config,
	}
}

// Walk implements RemoteFS.Walk with retry logic. The listing sequence is
// not restartable, so a walk is only retried while no key has been
// delivered to fn yet; once fn has seen a key, a failure surfaces to the
// caller rather than replaying entries.
func (r *RetryingFS) Walk(ctx context.Context, prefix, marker string, fn func(key string) error) error {
	delivered := false
	wrapped := func(key string) error {
		delivered = true
		return fn(key)
	}

	delay := r.config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := r.fs.Walk(ctx, prefix, marker, wrapped)
		if err == nil || delivered || attempt == r.config.MaxAttempts {
			if err != nil && !delivered {
				return fmt.Errorf("listing failed after %d attempts: %w", attempt, err)
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.config.Multiplier)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
}

// Download implements RemoteFS.Download with retry logic. Retrying is safe
// because the underlying transfer writes through a temp file.
func (r *RetryingFS) Download(ctx context.Context, key, localPath string, concurrency int) error {
	return r.retry(ctx, func() error {
		return r.fs.Download(ctx, key, localPath, concurrency)
	})
}

// RootPrefix implements RemoteFS.RootPrefix.
func (r *RetryingFS) RootPrefix() string {
	return r.fs.RootPrefix()
}

// retry executes a function with exponential backoff.
func (r *RetryingFS) retry(ctx context.Context, fn func() error) error {
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if attempt == r.config.MaxAttempts {
			return fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.config.Multiplier)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	return nil
}

// NewRemoteFS creates a remote filesystem based on configuration.
func NewRemoteFS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (RemoteFS, error) {
	var fs RemoteFS
	var err error

	switch cfg.StorageProvider {
	case "s3":
		s3Config := S3Config{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			Root:            cfg.BackupLocation,
			UsePathStyle:    cfg.S3Endpoint != "", // Path style for custom endpoints
		}
		fs, err = NewS3FS(ctx, s3Config)

	case "gcs":
		if err := ValidateServiceAccountJSON(cfg.GoogleServiceAccountJSON); err != nil {
			return nil, fmt.Errorf("invalid GCS service account: %w", err)
		}

		gcsConfig := GCSConfig{
			Bucket:             cfg.GCSBucket,
			ProjectID:          cfg.GoogleProjectID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			Root:               cfg.BackupLocation,
		}
		fs, err = NewGCSFS(ctx, gcsConfig, logger)

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.StorageProvider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s remote filesystem: %w", cfg.StorageProvider, err)
	}

	return NewRetryingFS(fs, DefaultRetryConfig()), nil
}
