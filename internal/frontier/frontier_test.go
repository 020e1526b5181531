package frontier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestFrontier(t *testing.T, maxDepth, maxPages int) *Frontier {
	t.Helper()
	f, err := New(Config{BaseURL: "https://example.com", MaxDepth: maxDepth, MaxPages: maxPages})
	require.NoError(t, err)
	return f
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "::not a url"})
	require.Error(t, err)
}

func TestOfferRejectsOffDomain(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	for _, raw := range []string{
		"https://other.com/product/1",
		"https://example.com.evil.org/",
		"https://sub.example.com/",
		"mailto:sales@example.com",
		"ftp://example.com/file",
	} {
		require.False(t, f.Offer(raw, "", 0), raw)
	}
	require.Zero(t, f.Len())
}

func TestOfferAcceptsWWWAndCase(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	require.True(t, f.Offer("https://WWW.Example.com/a", "", 0))
	require.False(t, f.Offer("https://www.example.com/a#reviews", "", 0), "fragment variants are duplicates")
}

func TestOfferAllowedDomains(t *testing.T) {
	f, err := New(Config{BaseURL: "https://example.com", AllowedDomains: []string{"shop.example.com"}, MaxDepth: 1})
	require.NoError(t, err)
	require.True(t, f.Offer("https://shop.example.com/p/1", "", 1))
}

func TestOfferRespectsDepth(t *testing.T) {
	f := newTestFrontier(t, 1, 0)
	require.True(t, f.Offer("https://example.com/a", "", 1))
	require.False(t, f.Offer("https://example.com/b", "", 2))
	require.False(t, f.Offer("https://example.com/c", "", -1))
}

func TestOfferRespectsMaxPages(t *testing.T) {
	f := newTestFrontier(t, 5, 2)
	require.True(t, f.Offer("https://example.com/a", "", 0))
	require.True(t, f.Offer("https://example.com/b", "", 0))
	require.False(t, f.Offer("https://example.com/c", "", 0))
}

func TestMarkVisitedPreventsRequeue(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	ctx := context.Background()

	require.True(t, f.Offer("https://example.com/shoes/", "", 0))
	require.False(t, f.Offer("https://example.com/shoes", "", 0), "queued URL must not be queued twice")

	task, ok := f.Next(ctx)
	require.True(t, ok)
	require.Equal(t, "https://example.com/shoes", task.URL)
	require.False(t, f.Offer("https://example.com/shoes", "", 1), "in-flight URL must not be queued")

	f.MarkVisited(task.URL)
	require.False(t, f.Offer("https://example.com/shoes/", "", 1))
	require.False(t, f.Offer("HTTPS://EXAMPLE.COM/shoes", "", 1))
	require.Equal(t, 1, f.Visited())
}

func TestRecordMarksRedirectTargets(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	require.True(t, f.Record("https://example.com/final"))
	require.False(t, f.Record("https://example.com/final/"), "second record of the same page")
	require.False(t, f.Offer("https://example.com/final", "", 0))
}

func TestRecordLeavesQueuedTargetsToTheirTask(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	ctx := context.Background()
	require.True(t, f.Offer("https://example.com/old", "", 0))
	require.True(t, f.Offer("https://example.com/new", "", 0))

	old, ok := f.Next(ctx)
	require.True(t, ok)
	require.False(t, f.Record("https://example.com/new"), "queued redirect target is not claimed")
	f.MarkVisited(old.URL)

	next, ok := f.Next(ctx)
	require.True(t, ok)
	require.Equal(t, "https://example.com/new", next.URL)
	require.False(t, f.Record("https://example.com/new"), "in-flight redirect target is not claimed")
	f.MarkVisited(next.URL)

	_, ok = f.Next(ctx)
	require.False(t, ok)
	require.Equal(t, 2, f.Visited())
}

func TestNextIsFIFO(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	ctx := context.Background()
	for _, p := range []string{"/a", "/b", "/c"} {
		require.True(t, f.Offer("https://example.com"+p, "https://example.com/", 1))
	}
	for _, want := range []string{"/a", "/b", "/c"} {
		task, ok := f.Next(ctx)
		require.True(t, ok)
		require.Equal(t, "https://example.com"+want, task.URL)
		require.Equal(t, "https://example.com/", task.DiscoveredFrom)
		require.Equal(t, 1, task.Depth)
		f.MarkVisited(task.URL)
	}
	_, ok := f.Next(ctx)
	require.False(t, ok, "drained frontier returns false")
}

func TestNextWaitsForInFlightTasks(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	ctx := context.Background()
	require.True(t, f.Offer("https://example.com/", "", 0))

	first, ok := f.Next(ctx)
	require.True(t, ok)

	got := make(chan string, 1)
	go func() {
		task, ok := f.Next(ctx)
		if ok {
			got <- task.URL
			return
		}
		got <- ""
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, f.Offer("https://example.com/child", first.URL, 1))
	f.MarkVisited(first.URL)

	select {
	case u := <-got:
		require.Equal(t, "https://example.com/child", u)
	case <-time.After(time.Second):
		t.Fatal("waiting worker was not woken by new work")
	}
}

func TestNextHonorsContext(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	require.True(t, f.Offer("https://example.com/", "", 0))
	_, ok := f.Next(context.Background())
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, ok = f.Next(ctx)
	require.False(t, ok)
	require.Less(t, time.Since(start), time.Second)
}

func TestConcurrentNextHandsOutEachTaskOnce(t *testing.T) {
	f := newTestFrontier(t, 3, 0)
	ctx := context.Background()
	const total = 200
	for i := 0; i < total; i++ {
		require.True(t, f.Offer("https://example.com/p/"+string(rune('a'+i%26))+"/"+itoa(i), "", 1))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, ok := f.Next(ctx)
				if !ok {
					return
				}
				mu.Lock()
				seen[task.URL]++
				mu.Unlock()
				f.MarkVisited(task.URL)
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for u, n := range seen {
		require.Equal(t, 1, n, u)
	}
}

func itoa(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var out []byte
	for i > 0 {
		out = append([]byte{digits[i%10]}, out...)
		i /= 10
	}
	return string(out)
}
