// Package ratelimit spaces outbound requests to the target host.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/product-crawler/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter admits at most one request per interval across all callers. It
// guards the whole site rather than a single worker.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
}

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the minimum gap between two admitted requests.
	// Zero or negative disables spacing.
	MinInterval time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	l := &Limiter{}
	l.SetInterval(cfg.MinInterval)
	return l
}

// SetInterval changes the spacing between requests. It is used once the
// robots.txt crawl-delay is known.
func (l *Limiter) SetInterval(interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if interval < 0 {
		interval = 0
	}
	l.interval = interval
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if l.limiter == nil {
		l.limiter = rate.NewLimiter(limit, 1)
		return
	}
	l.limiter.SetLimit(limit)
}

// Interval returns the current spacing.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Wait blocks until the next request may start, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(d)
	}
	return nil
}
