package channels

import (
	"sync"
	"time"
)

const (
	// maxTrackedKeys bounds memory when callers rotate source IPs.
	maxTrackedKeys = 4096

	// DefaultWebhookWindow and DefaultWebhookMaxHits allow 30 webhook
	// deliveries per client per minute.
	DefaultWebhookWindow  = 60 * time.Second
	DefaultWebhookMaxHits = 30
)

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

// WebhookRateLimiter is a fixed-window limiter keyed by client address.
// Safe for concurrent use.
type WebhookRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	window  time.Duration
	maxHits int
	now     func() time.Time
}

// NewWebhookRateLimiter creates a limiter allowing maxHits per window.
// Non-positive values fall back to the defaults.
func NewWebhookRateLimiter(maxHits int, window time.Duration) *WebhookRateLimiter {
	if maxHits <= 0 {
		maxHits = DefaultWebhookMaxHits
	}
	if window <= 0 {
		window = DefaultWebhookWindow
	}
	return &WebhookRateLimiter{
		entries: make(map[string]*rateLimitEntry),
		window:  window,
		maxHits: maxHits,
		now:     time.Now,
	}
}

// Allow returns true if the key is within rate limits.
func (r *WebhookRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if len(r.entries) >= maxTrackedKeys {
		r.pruneLocked(now)
	}

	e, ok := r.entries[key]
	if !ok || now.Sub(e.windowStart) >= r.window {
		r.entries[key] = &rateLimitEntry{windowStart: now, count: 1}
		return true
	}

	e.count++
	return e.count <= r.maxHits
}

// pruneLocked drops expired entries, then evicts arbitrary ones while the
// map is still at capacity.
func (r *WebhookRateLimiter) pruneLocked(now time.Time) {
	for k, e := range r.entries {
		if now.Sub(e.windowStart) >= r.window {
			delete(r.entries, k)
		}
	}
	for k := range r.entries {
		if len(r.entries) < maxTrackedKeys {
			break
		}
		delete(r.entries, k)
	}
}

// Tracked returns the number of keys currently held.
func (r *WebhookRateLimiter) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
