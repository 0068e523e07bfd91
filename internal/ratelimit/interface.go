// Package ratelimit gates how often the local manifest copy is refreshed
// from the remote store.
package ratelimit

import (
	"time"
)

// RateLimiter defines the interface for controlling refresh frequency.
type RateLimiter interface {
	// ShouldRefresh determines if a refresh should proceed based on the
	// last successful refresh time. The string return value contains a
	// human-readable reason when the refresh is skipped.
	ShouldRefresh(lastRefresh time.Time) (bool, string)

	// GetMinInterval returns the minimum time interval between refreshes.
	GetMinInterval() time.Duration
}

// Config holds configuration for rate limiting.
type Config struct {
	// MinInterval is the minimum time between refreshes.
	MinInterval time.Duration

	// ForceRefresh overrides rate limiting when true.
	ForceRefresh bool
}
