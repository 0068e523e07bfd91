package ratelimit

import (
	"fmt"
	"time"
)

// TimeBasedLimiter implements RateLimiter with time-based rate limiting.
type TimeBasedLimiter struct {
	config Config
}

// NewTimeBasedLimiter creates a new time-based rate limiter.
func NewTimeBasedLimiter(config Config) *TimeBasedLimiter {
	return &TimeBasedLimiter{
		config: config,
	}
}

// ShouldRefresh implements RateLimiter.
func (t *TimeBasedLimiter) ShouldRefresh(lastRefresh time.Time) (bool, string) {
	if t.config.ForceRefresh {
		return true, "forced refresh requested"
	}

	if lastRefresh.IsZero() {
		return true, "no previous refresh found"
	}

	sinceLast := time.Since(lastRefresh)
	if sinceLast < t.config.MinInterval {
		untilNext := t.config.MinInterval - sinceLast
		return false, fmt.Sprintf(
			"last refresh was %s ago, next refresh allowed in %s",
			formatDuration(sinceLast),
			formatDuration(untilNext),
		)
	}

	return true, fmt.Sprintf("last refresh was %s ago", formatDuration(sinceLast))
}

// GetMinInterval implements RateLimiter.
func (t *TimeBasedLimiter) GetMinInterval() time.Duration {
	return t.config.MinInterval
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0f minutes", d.Minutes())
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
