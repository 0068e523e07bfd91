package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestTimeBasedLimiter_ShouldRefresh(t *testing.T) {
	tests := []struct {
		name           string
		config         Config
		lastRefresh    time.Time
		wantAllow      bool
		wantReasonPart string
	}{
		{
			name: "no previous refresh",
			config: Config{
				MinInterval:  6 * time.Hour,
				ForceRefresh: false,
			},
			lastRefresh:    time.Time{},
			wantAllow:      true,
			wantReasonPart: "no previous refresh",
		},
		{
			name: "forced refresh",
			config: Config{
				MinInterval:  6 * time.Hour,
				ForceRefresh: true,
			},
			lastRefresh:    time.Now().Add(-1 * time.Hour),
			wantAllow:      true,
			wantReasonPart: "forced refresh",
		},
		{
			name: "refresh too recent",
			config: Config{
				MinInterval:  6 * time.Hour,
				ForceRefresh: false,
			},
			lastRefresh:    time.Now().Add(-2 * time.Hour),
			wantAllow:      false,
			wantReasonPart: "next refresh allowed in",
		},
		{
			name: "refresh allowed after interval",
			config: Config{
				MinInterval:  6 * time.Hour,
				ForceRefresh: false,
			},
			lastRefresh:    time.Now().Add(-7 * time.Hour),
			wantAllow:      true,
			wantReasonPart: "last refresh was",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewTimeBasedLimiter(tt.config)
			gotAllow, gotReason := limiter.ShouldRefresh(tt.lastRefresh)

			if gotAllow != tt.wantAllow {
				t.Errorf("ShouldRefresh() gotAllow = %v, want %v", gotAllow, tt.wantAllow)
			}

			if !strings.Contains(gotReason, tt.wantReasonPart) {
				t.Errorf("ShouldRefresh() gotReason = %v, want to contain %v", gotReason, tt.wantReasonPart)
			}
		})
	}
}

func TestTimeBasedLimiter_GetMinInterval(t *testing.T) {
	config := Config{
		MinInterval: 8 * time.Hour,
	}
	limiter := NewTimeBasedLimiter(config)

	if got := limiter.GetMinInterval(); got != config.MinInterval {
		t.Errorf("GetMinInterval() = %v, want %v", got, config.MinInterval)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{30 * time.Second, "30 seconds"},
		{90 * time.Second, "2 minutes"},
		{45 * time.Minute, "45 minutes"},
		{90 * time.Minute, "1.5 hours"},
		{25 * time.Hour, "25.0 hours"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.want {
				t.Errorf("formatDuration(%v) = %v, want %v", tt.duration, got, tt.want)
			}
		})
	}
}
