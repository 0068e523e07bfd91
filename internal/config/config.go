// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Cluster identity
	ClusterName string
	NodeID      string

	// Local manifest directory
	DataDir string

	// Remote layout
	BackupLocation string // Root prefix under the bucket
	ManifestFormat string // "v2"

	// Storage provider configuration
	StorageProvider string // "s3" or "gcs"

	// S3 configuration
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3Region           string
	S3Endpoint         string // Optional custom endpoint

	// GCS configuration
	GCSBucket                string
	GoogleProjectID          string
	GoogleServiceAccountJSON string

	// Refresh behaviour
	LookbackDays            int
	RefreshMinIntervalHours int
	RefreshIntervalMinutes  int
	ForceRefresh            bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ClusterName: os.Getenv("CLUSTER_NAME"),
		NodeID:      os.Getenv("NODE_ID"),
		DataDir:     os.Getenv("DATA_DIR"),

		BackupLocation:  getEnvDefault("BACKUP_LOCATION", "backups"),
		ManifestFormat:  getEnvDefault("MANIFEST_FORMAT", "v2"),
		StorageProvider: os.Getenv("STORAGE_PROVIDER"),

		// S3
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Region:           os.Getenv("S3_REGION"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),

		// GCS
		GCSBucket:                os.Getenv("GCS_BUCKET"),
		GoogleProjectID:          os.Getenv("GOOGLE_PROJECT_ID"),
		GoogleServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
	}

	// Default the node identity to the hostname, the usual sidecar setup.
	if cfg.NodeID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("NODE_ID unset and hostname unavailable: %w", err)
		}
		cfg.NodeID = hostname
	}

	// Parse numeric values with defaults
	cfg.LookbackDays = getEnvInt("LOOKBACK_DAYS", 7)
	cfg.RefreshMinIntervalHours = getEnvInt("REFRESH_MIN_INTERVAL_HOURS", 6)
	cfg.RefreshIntervalMinutes = getEnvInt("REFRESH_INTERVAL_MINUTES", 60)
	cfg.ForceRefresh = getEnvBool("FORCE_REFRESH", false)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("CLUSTER_NAME is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	if c.ManifestFormat != "v2" {
		return fmt.Errorf("unsupported MANIFEST_FORMAT: %s (only 'v2' is supported)", c.ManifestFormat)
	}

	if c.StorageProvider == "" {
		return fmt.Errorf("STORAGE_PROVIDER is required")
	}

	switch c.StorageProvider {
	case "s3":
		if err := c.validateS3(); err != nil {
			return err
		}
	case "gcs":
		if err := c.validateGCS(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid STORAGE_PROVIDER: %s (must be 's3' or 'gcs')", c.StorageProvider)
	}

	if c.LookbackDays <= 0 {
		return fmt.Errorf("LOOKBACK_DAYS must be positive")
	}

	if c.RefreshMinIntervalHours < 0 {
		return fmt.Errorf("REFRESH_MIN_INTERVAL_HOURS must be non-negative")
	}

	if c.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL_MINUTES must be positive")
	}

	return nil
}

func (c *Config) validateS3() error {
	if c.AWSAccessKeyID == "" {
		return fmt.Errorf("AWS_ACCESS_KEY_ID is required for S3 storage")
	}
	if c.AWSSecretAccessKey == "" {
		return fmt.Errorf("AWS_SECRET_ACCESS_KEY is required for S3 storage")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required for S3 storage")
	}
	if c.S3Region == "" && c.S3Endpoint == "" {
		return fmt.Errorf("S3_REGION is required for S3 storage (unless S3_ENDPOINT is set)")
	}
	return nil
}

func (c *Config) validateGCS() error {
	if c.GCSBucket == "" {
		return fmt.Errorf("GCS_BUCKET is required for GCS storage")
	}
	if c.GoogleProjectID == "" {
		return fmt.Errorf("GOOGLE_PROJECT_ID is required for GCS storage")
	}
	if c.GoogleServiceAccountJSON == "" {
		return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is required for GCS storage")
	}
	return nil
}

// GetLookbackDuration returns the search window size as a Duration.
func (c *Config) GetLookbackDuration() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// GetRefreshMinInterval returns the minimum time between refresh passes.
func (c *Config) GetRefreshMinInterval() time.Duration {
	return time.Duration(c.RefreshMinIntervalHours) * time.Hour
}

// GetRefreshInterval returns the scheduling period of the refresh loop.
func (c *Config) GetRefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// getEnvDefault gets a string from environment variable with a default value.
func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer from environment variable with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean from environment variable with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
