// Package progress logs periodic heartbeats while a crawl is running.
package progress

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = 30 * time.Second

// StatsFunc returns the current run counters, e.g. (*crawler.Engine).Stats.
type StatsFunc func() crawler.StatsSnapshot

// Config controls heartbeat frequency.
type Config struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Reporter emits a heartbeat log line with the run counters and the page rate
// since the previous heartbeat.
type Reporter struct {
	interval time.Duration
	stats    StatsFunc
	logger   *zap.Logger
	now      func() time.Time
}

// NewReporter builds a Reporter reading counters from stats.
func NewReporter(cfg Config, stats StatsFunc) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		interval: cfg.Interval,
		stats:    stats,
		logger:   logger.Named("progress"),
		now:      time.Now,
	}
}

// Run blocks until ctx is done, logging one heartbeat per interval.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	last := r.stats()
	lastAt := r.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := r.stats()
			at := r.now()
			r.heartbeat(last, cur, at.Sub(lastAt))
			last, lastAt = cur, at
		}
	}
}

func (r *Reporter) heartbeat(prev, cur crawler.StatsSnapshot, elapsed time.Duration) {
	rate := 0.0
	if elapsed > 0 {
		rate = float64(cur.VisitedCount-prev.VisitedCount) / elapsed.Seconds()
	}
	r.logger.Info("crawl heartbeat",
		zap.Int64("visited", cur.VisitedCount),
		zap.Int64("products", cur.ProductCount),
		zap.Int64("skipped", cur.SkippedCount),
		zap.Int64("images", cur.ImageCount),
		zap.Int64("errors", cur.ErrorCount),
		zap.Float64("pages_per_sec", rate),
	)
}
