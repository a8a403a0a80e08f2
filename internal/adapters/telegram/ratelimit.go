package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds per-chat rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	MessagesPerMinute int  `yaml:"messages_per_minute"` // default: 30
	BurstSize         int  `yaml:"burst_size"`          // default: 5
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled:           true,
		MessagesPerMinute: 30,
		BurstSize:         5,
	}
}

// RateLimiter is a per-chat token bucket
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[int64]*bucket
	mu      sync.Mutex
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[int64]*bucket),
	}
}

// AllowMessage reports whether chatID may send another update now.
func (r *RateLimiter) AllowMessage(chatID int64) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.bucketFor(chatID).limiter.Allow()
}

// GetRemainingMessages returns the whole tokens left in chatID's bucket.
func (r *RateLimiter) GetRemainingMessages(chatID int64) int {
	if !r.config.Enabled {
		return r.burst()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return int(r.bucketFor(chatID).limiter.Tokens())
}

// Cleanup drops buckets idle for at least maxAge.
func (r *RateLimiter) Cleanup(maxAge time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, b := range r.buckets {
		if time.Since(b.lastSeen) >= maxAge {
			delete(r.buckets, id)
		}
	}
}

func (r *RateLimiter) burst() int {
	burst := r.config.MessagesPerMinute
	if r.config.BurstSize > 0 && r.config.BurstSize < burst {
		burst = r.config.BurstSize
	}
	if burst < 1 {
		burst = 1
	}
	return burst
}

// bucketFor must be called with r.mu held.
func (r *RateLimiter) bucketFor(chatID int64) *bucket {
	b, ok := r.buckets[chatID]
	if !ok {
		perSecond := rate.Limit(float64(r.config.MessagesPerMinute) / 60.0)
		b = &bucket{limiter: rate.NewLimiter(perSecond, r.burst())}
		r.buckets[chatID] = b
	}
	b.lastSeen = time.Now()
	return b
}
