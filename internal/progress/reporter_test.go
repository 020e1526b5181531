package progress

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

func TestReporterHeartbeat(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var visited atomic.Int64
	stats := func() crawler.StatsSnapshot {
		return crawler.StatsSnapshot{VisitedCount: visited.Add(5), ProductCount: 1}
	}

	r := NewReporter(Config{Interval: 10 * time.Millisecond, Logger: zap.New(core)}, stats)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("crawl heartbeat").Len() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	entry := logs.FilterMessage("crawl heartbeat").All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, int64(10), fields["visited"])
	assert.Equal(t, int64(1), fields["products"])
	assert.Greater(t, fields["pages_per_sec"], 0.0)
	assert.Equal(t, "progress", entry.LoggerName)
}

func TestHeartbeatZeroElapsed(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewReporter(Config{Logger: zap.New(core)}, func() crawler.StatsSnapshot { return crawler.StatsSnapshot{} })
	require.Equal(t, DefaultInterval, r.interval)

	r.heartbeat(crawler.StatsSnapshot{}, crawler.StatsSnapshot{VisitedCount: 3}, 0)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, 0.0, logs.All()[0].ContextMap()["pages_per_sec"])
}
