// Package frontier implements the breadth-first crawl queue for a single site.
package frontier

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Config scopes the frontier to one site.
type Config struct {
	BaseURL        string
	AllowedDomains []string
	MaxDepth       int
	// MaxPages caps the number of accepted URLs. Zero means unlimited.
	MaxPages int
}

// Frontier is a FIFO queue with visited tracking. Each accepted URL is handed
// out by Next at most once.
type Frontier struct {
	mu       sync.Mutex
	hosts    map[string]struct{}
	maxDepth int
	maxPages int

	queue    []crawler.CrawlTask
	queued   map[string]struct{}
	visited  map[string]struct{}
	accepted int
	inFlight int
	changed  chan struct{}
}

var _ crawler.Frontier = (*Frontier)(nil)

// New builds a Frontier for cfg.BaseURL.
func New(cfg Config) (*Frontier, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Hostname() == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", crawler.ErrFatalConfiguration, cfg.BaseURL)
	}
	hosts := map[string]struct{}{crawler.HostKey(base.Hostname()): {}}
	for _, d := range cfg.AllowedDomains {
		d = crawler.HostKey(d)
		if d != "" {
			hosts[d] = struct{}{}
		}
	}
	return &Frontier{
		hosts:    hosts,
		maxDepth: cfg.MaxDepth,
		maxPages: cfg.MaxPages,
		queued:   make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		changed:  make(chan struct{}),
	}, nil
}

// InScope reports whether rawURL belongs to the target site.
func (f *Frontier) InScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	_, ok := f.hosts[crawler.HostKey(u.Hostname())]
	return ok
}

// Offer enqueues rawURL when it is in scope, unseen and within the depth and
// page budgets.
func (f *Frontier) Offer(rawURL, parent string, depth int) bool {
	if depth < 0 || depth > f.maxDepth {
		return false
	}
	normalized, err := crawler.NormalizeURL(rawURL)
	if err != nil || !f.InScope(normalized) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[normalized]; ok {
		return false
	}
	if _, ok := f.queued[normalized]; ok {
		return false
	}
	if f.maxPages > 0 && f.accepted >= f.maxPages {
		return false
	}
	f.queued[normalized] = struct{}{}
	f.accepted++
	f.queue = append(f.queue, crawler.CrawlTask{URL: normalized, DiscoveredFrom: parent, Depth: depth})
	f.broadcastLocked()
	return true
}

// Next pops the oldest task. It blocks while the queue is empty but other
// tasks are still being processed, and returns false once the frontier has
// drained or ctx is done.
func (f *Frontier) Next(ctx context.Context) (crawler.CrawlTask, bool) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			task := f.queue[0]
			f.queue[0] = crawler.CrawlTask{}
			f.queue = f.queue[1:]
			f.inFlight++
			f.mu.Unlock()
			return task, true
		}
		if f.inFlight == 0 {
			f.mu.Unlock()
			return crawler.CrawlTask{}, false
		}
		wait := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return crawler.CrawlTask{}, false
		case <-wait:
		}
	}
}

// MarkVisited completes a task handed out by Next.
func (f *Frontier) MarkVisited(rawURL string) {
	key := normalizeOrRaw(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.queued, key)
	f.visited[key] = struct{}{}
	if f.inFlight > 0 {
		f.inFlight--
	}
	f.broadcastLocked()
}

// Record adds rawURL to the visited set without touching in-flight
// accounting and reports whether it was new. Used for redirect targets. A URL
// that is queued or in flight is left to its own task and reported as seen.
func (f *Frontier) Record(rawURL string) bool {
	key := normalizeOrRaw(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[key]; ok {
		return false
	}
	if _, ok := f.queued[key]; ok {
		return false
	}
	f.visited[key] = struct{}{}
	return true
}

// Len returns the number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Visited returns the size of the visited set.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

func (f *Frontier) broadcastLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

func normalizeOrRaw(rawURL string) string {
	if normalized, err := crawler.NormalizeURL(rawURL); err == nil {
		return normalized
	}
	return strings.TrimSpace(rawURL)
}
