package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterFirstCallIsImmediate(t *testing.T) {
	l := New(Config{MinInterval: time.Second})
	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterSpacesConcurrentCallers(t *testing.T) {
	const (
		interval = 50 * time.Millisecond
		callers  = 5
	)
	l := New(Config{MinInterval: interval})

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background()))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, time.Since(start), time.Duration(callers-1)*interval-5*time.Millisecond)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	first, last := times[0], times[len(times)-1]
	require.GreaterOrEqual(t, last.Sub(first), time.Duration(callers-2)*interval)
}

func TestLimiterZeroIntervalIsUnlimited(t *testing.T) {
	l := New(Config{})
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterSetIntervalRaisesSpacing(t *testing.T) {
	l := New(Config{MinInterval: time.Millisecond})
	l.SetInterval(80 * time.Millisecond)
	require.Equal(t, 80*time.Millisecond, l.Interval())

	require.NoError(t, l.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	l := New(Config{MinInterval: time.Hour})
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx))
}
