package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SecurityConfig holds the thresholds for brute force protection.
type SecurityConfig struct {
	// IPBlockThreshold is the number of failed authentications from an IP
	// within WindowDuration before the IP is blocked.
	IPBlockThreshold int

	// WindowDuration is the time window for counting recent failures.
	WindowDuration time.Duration

	// TrackedIPs bounds the number of addresses remembered at once.
	TrackedIPs int
}

// DefaultSecurityConfig returns 20 failures per 15 minutes over 500 addresses.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		IPBlockThreshold: 20,
		WindowDuration:   15 * time.Minute,
		TrackedIPs:       500,
	}
}

type failureWindow struct {
	start time.Time
	count int
}

// FailureTracker counts failed authentications per client address in memory.
// Least recently seen addresses are evicted once TrackedIPs is reached.
type FailureTracker struct {
	mu      sync.Mutex
	windows *lru.Cache[string, *failureWindow]
	config  SecurityConfig
	now     func() time.Time
	logger  *slog.Logger
}

// NewFailureTracker creates a FailureTracker.
func NewFailureTracker(config SecurityConfig, logger *slog.Logger) (*FailureTracker, error) {
	if config.TrackedIPs <= 0 {
		config.TrackedIPs = DefaultSecurityConfig().TrackedIPs
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, *failureWindow](config.TrackedIPs)
	if err != nil {
		return nil, err
	}
	return &FailureTracker{windows: cache, config: config, now: time.Now, logger: logger}, nil
}

// RecordFailure counts one failed authentication from ip.
func (t *FailureTracker) RecordFailure(ctx context.Context, ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w, ok := t.windows.Get(ip)
	if !ok || now.Sub(w.start) >= t.config.WindowDuration {
		w = &failureWindow{start: now}
		t.windows.Add(ip, w)
	}
	w.count++
	if w.count == t.config.IPBlockThreshold {
		t.logger.WarnContext(ctx, "client address blocked after repeated auth failures",
			"ip", ip,
			"failures", w.count,
		)
	}
}

// IsIPBlocked reports whether ip reached the failure threshold within the
// current window.
func (t *FailureTracker) IsIPBlocked(_ context.Context, ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows.Peek(ip)
	if !ok {
		return false
	}
	if t.now().Sub(w.start) >= t.config.WindowDuration {
		t.windows.Remove(ip)
		return false
	}
	return w.count >= t.config.IPBlockThreshold
}
