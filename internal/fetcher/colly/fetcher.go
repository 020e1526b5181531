// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
	// MaxBodyBytes truncates larger bodies. Zero keeps colly's default.
	MaxBodyBytes int
	Retry        RetryPolicy
}

// Fetcher implements crawler.Fetcher using the Colly collector. Every
// attempt, retries included, passes through the shared limiter first.
type Fetcher struct {
	cfg           Config
	limiter       crawler.Limiter
	logger        *zap.Logger
	baseCollector *colly.Collector
}

var _ crawler.Fetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil limiter disables spacing.
func New(cfg Config, limiter crawler.Limiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = cfg.MaxBodyBytes
	}
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	// Clones share the base collector's HTTP client, so the timeout and
	// redirect budget are set here once.
	c.SetRequestTimeout(cfg.Timeout)
	maxRedirects := cfg.MaxRedirects
	c.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("%w: stopped after %d", crawler.ErrTooManyRedirects, maxRedirects)
		}
		return nil
	})

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		logger:        logger.Named("fetcher"),
		baseCollector: c,
	}
}

// Fetch performs a GET with retries for transient failures.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return crawler.Page{}, err
			}
		}
		page, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !f.cfg.Retry.ShouldRetry(ctx, err, attempt) {
			break
		}
		backoff := f.cfg.Retry.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		metrics.ObserveRetry()
		if err := sleepContext(ctx, backoff); err != nil {
			return crawler.Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
	}
	return crawler.Page{}, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (crawler.Page, error) {
	var (
		page     crawler.Page
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(rawURL, &page, &fetchErr)
	collector.Context = ctx
	visitErr := f.runCollector(ctx, collector, rawURL)
	metrics.ObserveFetch(time.Since(start))

	switch {
	case visitErr != nil && ctx.Err() != nil:
		return crawler.Page{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case fetchErr != nil:
		return crawler.Page{}, classifyTransportError(rawURL, fetchErr)
	case visitErr != nil:
		return crawler.Page{}, fmt.Errorf("%w: %s: %w", crawler.ErrMalformedURL, rawURL, visitErr)
	}

	if page.StatusCode < http.StatusOK || page.StatusCode >= http.StatusMultipleChoices {
		return page, &crawler.HTTPStatusError{URL: rawURL, StatusCode: page.StatusCode}
	}
	return page, nil
}

func (f *Fetcher) buildCollector(rawURL string, page *crawler.Page, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, rawURL, page, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, rawURL string, page *crawler.Page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		finalURL := rawURL
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*page = crawler.Page{
			URL:         rawURL,
			FinalURL:    finalURL,
			StatusCode:  r.StatusCode,
			ContentType: headers.Get("Content-Type"),
			Headers:     headers,
			Body:        append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

// runCollector waits for the visit or ctx. The request carries ctx through
// collector.Context, so a canceled visit returns promptly.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func classifyTransportError(rawURL string, err error) error {
	switch {
	case errors.Is(err, crawler.ErrTooManyRedirects):
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	default:
		return fmt.Errorf("%w: fetch %s: %w", crawler.ErrTransientNetwork, rawURL, err)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
