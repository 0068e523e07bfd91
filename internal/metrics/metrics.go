// Package metrics provides Prometheus metrics for the manifest catalog sidecar.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ManifestSearches tracks the total number of manifest searches.
	ManifestSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_catalog_manifest_searches_total",
		Help: "Total number of manifest searches against the remote store",
	}, []string{"status"})

	// SearchDuration tracks the duration of manifest searches.
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backup_catalog_search_duration_seconds",
		Help:    "Duration of manifest searches in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
	})

	// ManifestsFound tracks how many manifests the last search returned.
	ManifestsFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backup_catalog_manifests_found",
		Help: "Number of manifests returned by the last search",
	})

	// MalformedKeys tracks remote keys skipped because they failed to decode.
	MalformedKeys = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backup_catalog_malformed_keys_total",
		Help: "Total number of undecodable remote keys skipped during listing",
	})

	// Downloads tracks manifest download attempts.
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_catalog_downloads_total",
		Help: "Total number of manifest download attempts",
	}, []string{"status"})

	// DownloadDuration tracks the duration of manifest downloads.
	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backup_catalog_download_duration_seconds",
		Help:    "Duration of manifest downloads in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// PrunedFiles tracks local manifest files deleted by the prune sweep.
	PrunedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backup_catalog_pruned_files_total",
		Help: "Total number of local manifest files deleted",
	})

	// RefreshBlocked tracks refresh passes skipped by the rate limiter.
	RefreshBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backup_catalog_refresh_blocked_total",
		Help: "Total number of refresh passes blocked by rate limiting",
	})

	// LastRefreshTimestamp tracks when the last successful refresh occurred.
	LastRefreshTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backup_catalog_last_refresh_timestamp",
		Help: "Unix timestamp of the last successful manifest refresh",
	})

	// Info provides static information about the service.
	Info = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backup_catalog_info",
		Help: "Information about the catalog sidecar",
	}, []string{"version", "storage_provider", "manifest_format"})
)

// RecordSearch records a manifest search with its outcome.
func RecordSearch(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	ManifestSearches.WithLabelValues(status).Inc()
}

// RecordDownload records a manifest download attempt with its outcome.
func RecordDownload(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	Downloads.WithLabelValues(status).Inc()
}
