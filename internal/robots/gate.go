// Package robots enforces robots.txt for the crawled site.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBytes = 1 << 20

// Config controls how robots.txt is fetched and interpreted.
type Config struct {
	BaseURL   string
	UserAgent string
	// Respect disables enforcement when false.
	Respect bool
	// FailOpen allows everything when robots.txt cannot be retrieved.
	FailOpen bool
	// FallbackDelay is reported as the crawl delay after a fail-open load.
	FallbackDelay time.Duration
	Timeout       time.Duration
}

// Gate is loaded once per run and then answers Allowed without I/O.
type Gate struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu       sync.RWMutex
	loaded   bool
	group    *robotstxt.Group
	fellOpen bool
}

// New builds a RobotsPolicy respecting the config toggle.
func New(cfg Config, client *http.Client, logger *zap.Logger) crawler.RobotsPolicy {
	if !cfg.Respect {
		return allowAll{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Gate{cfg: cfg, client: client, logger: logger.Named("robots")}
}

// Load fetches and parses robots.txt. Calling it again is a no-op.
func (g *Gate) Load(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loaded {
		return nil
	}

	robotsURL, err := robotsLocation(g.cfg.BaseURL)
	if err != nil {
		return err
	}
	data, err := g.fetch(ctx, robotsURL)
	if err != nil {
		if !g.cfg.FailOpen {
			return fmt.Errorf("%w: %w", crawler.ErrRobotsUnavailable, err)
		}
		g.logger.Warn("robots fetch failed; allowing access",
			zap.String("url", robotsURL),
			zap.Duration("fallback_delay", g.cfg.FallbackDelay),
			zap.Error(err))
		g.fellOpen = true
		g.loaded = true
		return nil
	}

	g.group = data.FindGroup(g.cfg.UserAgent)
	g.loaded = true
	g.logger.Debug("robots loaded", zap.String("url", robotsURL))
	return nil
}

// Allowed implements RobotsPolicy.
func (g *Gate) Allowed(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	g.mu.RLock()
	group := g.group
	g.mu.RUnlock()
	if group == nil {
		return true
	}
	target := parsed.EscapedPath()
	if target == "" {
		target = "/"
	}
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return group.Test(target)
}

// CrawlDelay returns the Crawl-delay for the configured agent, or the
// fallback delay when robots.txt could not be loaded.
func (g *Gate) CrawlDelay() (time.Duration, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.fellOpen {
		return g.cfg.FallbackDelay, g.cfg.FallbackDelay > 0
	}
	if g.group == nil || g.group.CrawlDelay <= 0 {
		return 0, false
	}
	return g.group.CrawlDelay, true
}

func (g *Gate) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &crawler.HTTPStatusError{URL: robotsURL, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

func robotsLocation(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: invalid base url %q", crawler.ErrFatalConfiguration, baseURL)
	}
	ref := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}
	return ref.String(), nil
}

// IsUnavailable reports whether err came from a fail-closed robots load.
func IsUnavailable(err error) bool {
	return errors.Is(err, crawler.ErrRobotsUnavailable)
}

type allowAll struct{}

func (allowAll) Load(context.Context) error        { return nil }
func (allowAll) Allowed(string) bool               { return true }
func (allowAll) CrawlDelay() (time.Duration, bool) { return 0, false }
