// Package ratelimit provides per-principal rate limiting functionality.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting configuration.
type Config struct {
	UserRPS         float64       // Requests per second for authenticated users
	UserBurst       int           // Burst size for authenticated users
	AnonRPS         float64       // Requests per second per anonymous client
	AnonBurst       int           // Burst size per anonymous client
	CleanupInterval time.Duration // How often to clean up idle limiters
}

// DefaultConfig provides sensible defaults for rate limiting.
var DefaultConfig = Config{
	UserRPS:         20,
	UserBurst:       40,
	AnonRPS:         5, // Anonymous traffic mostly hits login and signup
	AnonBurst:       10,
	CleanupInterval: time.Hour,
}

// rateLimiterEntry holds a rate limiter and tracks its last usage.
type rateLimiterEntry struct {
	limiter   *rate.Limiter
	lastUsed  atomic.Int64 // UnixNano; written on the read-locked fast path
	anonymous bool         // Track class to detect reclassification
}

func (e *rateLimiterEntry) touch() {
	e.lastUsed.Store(time.Now().UnixNano())
}

// RateLimiter manages per-principal rate limiting. A principal is either an
// authenticated user ID or an anonymous client key derived from the request.
type RateLimiter struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.RWMutex
	config   Config

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// It starts a background goroutine for cleanup.
func NewRateLimiter(config Config) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// Allow checks if a request from the given principal is allowed.
func (rl *RateLimiter) Allow(principal string, anonymous bool) bool {
	return rl.GetLimiter(principal, anonymous).Allow()
}

// GetLimiter returns the rate limiter for the given principal, creating one
// if necessary. If the principal's class changed (a client logged in), a new
// limiter with appropriate limits is created.
func (rl *RateLimiter) GetLimiter(principal string, anonymous bool) *rate.Limiter {
	// Fast path: check if limiter exists with read lock
	rl.mu.RLock()
	entry, exists := rl.limiters[principal]
	if exists && entry.anonymous == anonymous {
		entry.touch()
		rl.mu.RUnlock()
		return entry.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	entry, exists = rl.limiters[principal]
	if exists && entry.anonymous == anonymous {
		entry.touch()
		return entry.limiter
	}

	var rps float64
	var burst int
	if anonymous {
		rps = rl.config.AnonRPS
		burst = rl.config.AnonBurst
	} else {
		rps = rl.config.UserRPS
		burst = rl.config.UserBurst
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	entry = &rateLimiterEntry{
		limiter:   limiter,
		anonymous: anonymous,
	}
	entry.touch()
	rl.limiters[principal] = entry

	return limiter
}

// Cleanup removes rate limiters that have been idle for longer than the
// cleanup interval.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.CleanupInterval).UnixNano()
	for principal, entry := range rl.limiters {
		if entry.lastUsed.Load() < cutoff {
			delete(rl.limiters, principal)
		}
	}
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish.
// This should be called when shutting down the application.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	rl.wg.Wait()
}

// Len returns the number of active rate limiters.
// This is primarily useful for testing and monitoring.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}
