package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/product-crawler/internal/metrics"
)

// Engine defaults.
const (
	DefaultConcurrency   = 4
	DefaultShutdownGrace = 10 * time.Second
)

// ErrEngineStarted is returned when Run is called more than once.
var ErrEngineStarted = errors.New("engine already started")

// EngineConfig controls the orchestrator.
type EngineConfig struct {
	BaseURL       string
	Concurrency   int
	MinDelay      time.Duration
	ShutdownGrace time.Duration
}

// Dependencies are the pipeline stages the Engine drives.
type Dependencies struct {
	Frontier   Frontier
	Robots     RobotsPolicy
	Limiter    Limiter
	Fetcher    Fetcher
	Classifier Classifier
	Extractor  Extractor
	Slugger    Slugger
	Store      Store
	IDs        IDGenerator
	Clock      Clock
}

func (d Dependencies) validate() error {
	missing := []struct {
		name string
		nil  bool
	}{
		{"frontier", d.Frontier == nil},
		{"robots", d.Robots == nil},
		{"limiter", d.Limiter == nil},
		{"fetcher", d.Fetcher == nil},
		{"classifier", d.Classifier == nil},
		{"extractor", d.Extractor == nil},
		{"slugger", d.Slugger == nil},
		{"store", d.Store == nil},
		{"ids", d.IDs == nil},
		{"clock", d.Clock == nil},
	}
	for _, m := range missing {
		if m.nil {
			return fmt.Errorf("%w: engine dependency %s is nil", ErrFatalConfiguration, m.name)
		}
	}
	return nil
}

// Engine runs one crawl of a single site with a bounded worker pool.
type Engine struct {
	cfg    EngineConfig
	deps   Dependencies
	logger *zap.Logger

	stats RunStats

	stateMu sync.Mutex
	state   RunState

	// persistMu serializes slug selection with the directory write so two
	// workers never claim the same slug.
	persistMu sync.Mutex

	itemsMu sync.Mutex
	items   []SummaryItem
}

// NewEngine wires the pipeline stages into an Engine in the Idle state.
func NewEngine(cfg EngineConfig, deps Dependencies, logger *zap.Logger) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrFatalConfiguration)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("engine"),
		state:  RunStateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() RunState {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(s RunState) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

func (e *Engine) start() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state != RunStateIdle {
		return false
	}
	e.state = RunStateRunning
	return true
}

// Stats returns a snapshot of the run counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

// Run crawls until the frontier drains or ctx is canceled. Cancellation stops
// new work immediately; in-flight pages get ShutdownGrace to finish before
// their context is canceled too. The run summary is written in both cases.
func (e *Engine) Run(ctx context.Context) (StatsSnapshot, error) {
	if !e.start() {
		return e.stats.Snapshot(), ErrEngineStarted
	}
	started := e.deps.Clock.Now()

	runID, err := e.deps.IDs.NewID()
	if err != nil {
		e.setState(RunStateAborted)
		return e.stats.Snapshot(), fmt.Errorf("generate run id: %w", err)
	}
	logger := e.logger.With(zap.String("run_id", runID), zap.String("base_url", e.cfg.BaseURL))
	logger.Info("crawl starting", zap.Int("concurrency", e.cfg.Concurrency))

	if err := e.deps.Robots.Load(ctx); err != nil {
		return e.finish(ctx, logger, runID, started, fmt.Errorf("load robots.txt: %w", err))
	}
	interval := e.cfg.MinDelay
	if delay, ok := e.deps.Robots.CrawlDelay(); ok && delay > interval {
		logger.Info("honoring robots.txt crawl-delay", zap.Duration("crawl_delay", delay))
		interval = delay
	}
	e.deps.Limiter.SetInterval(interval)

	if !e.deps.Frontier.Offer(e.cfg.BaseURL, "", 0) {
		return e.finish(ctx, logger, runID, started,
			fmt.Errorf("%w: base url %q rejected by frontier", ErrFatalConfiguration, e.cfg.BaseURL))
	}

	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	stopGrace := context.AfterFunc(ctx, func() {
		logger.Warn("crawl canceled, draining in-flight pages", zap.Duration("grace", e.cfg.ShutdownGrace))
		time.AfterFunc(e.cfg.ShutdownGrace, cancelWork)
	})
	defer stopGrace()

	var g errgroup.Group
	for i := 0; i < e.cfg.Concurrency; i++ {
		worker := logger.With(zap.Int("worker", i))
		g.Go(func() error {
			e.work(ctx, workCtx, worker)
			return nil
		})
	}
	_ = g.Wait()

	var cause error
	if ctx.Err() != nil {
		cause = fmt.Errorf("crawl canceled: %w", ctx.Err())
	}
	return e.finish(ctx, logger, runID, started, cause)
}

func (e *Engine) work(ctx, workCtx context.Context, logger *zap.Logger) {
	for {
		task, ok := e.deps.Frontier.Next(ctx)
		if !ok {
			return
		}
		if ctx.Err() != nil {
			e.deps.Frontier.MarkVisited(task.URL)
			return
		}
		metrics.IncActiveWorkers()
		e.process(workCtx, task, logger.With(zap.String("url", task.URL), zap.Int("depth", task.Depth)))
		metrics.DecActiveWorkers()
		e.deps.Frontier.MarkVisited(task.URL)
	}
}

func (e *Engine) process(ctx context.Context, task CrawlTask, logger *zap.Logger) {
	if !e.deps.Robots.Allowed(task.URL) {
		metrics.ObserveRobotsDisallowed()
		logger.Debug("skipping url disallowed by robots.txt")
		return
	}

	page, err := e.deps.Fetcher.Fetch(ctx, task.URL)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("fetch abandoned on shutdown", zap.Error(err))
			return
		}
		e.stats.AddVisited()
		e.pageError(logger, "fetch failed", err)
		return
	}
	e.stats.AddVisited()

	pageURL := task.URL
	if page.FinalURL != "" {
		if final, err := NormalizeURL(page.FinalURL); err == nil && final != task.URL {
			if !e.deps.Frontier.Record(final) {
				logger.Debug("redirect target already seen", zap.String("final_url", final))
				return
			}
			if !e.deps.Frontier.InScope(final) {
				logger.Info("redirect left the site", zap.String("final_url", final))
				metrics.ObservePage(final, string(PageKindIrrelevant), page.ContentLength())
				return
			}
			pageURL = final
		}
	}

	if !page.IsHTML() {
		logger.Debug("ignoring non-html response", zap.String("content_type", page.ContentType))
		metrics.ObservePage(pageURL, string(PageKindIrrelevant), page.ContentLength())
		return
	}

	verdict, err := e.deps.Classifier.Classify(page.Body, pageURL)
	if err != nil {
		e.pageError(logger, "classify failed", err)
		return
	}
	metrics.ObservePage(pageURL, string(verdict.Kind), page.ContentLength())
	logger.Debug("page classified",
		zap.String("kind", string(verdict.Kind)),
		zap.String("signal", verdict.Signal),
		zap.Int("links", len(verdict.Links)),
	)

	offered := 0
	for _, link := range verdict.Links {
		if e.deps.Frontier.Offer(link, pageURL, task.Depth+1) {
			offered++
		}
	}
	if offered > 0 {
		logger.Debug("links queued", zap.Int("queued", offered))
	}

	if verdict.Kind == PageKindProduct {
		e.persistProduct(ctx, pageURL, page.Body, logger)
	}
}

func (e *Engine) persistProduct(ctx context.Context, pageURL string, body []byte, logger *zap.Logger) {
	record, err := e.deps.Extractor.Extract(body, pageURL)
	if err != nil {
		e.pageError(logger, "extract failed", err)
		e.addItem(SummaryItem{URL: pageURL, Error: err.Error()})
		return
	}

	e.persistMu.Lock()
	slug := e.deps.Slugger.Slugify(record.Title, record.SKU, record.SourceURL)
	result, err := e.deps.Store.Write(ctx, slug, record)
	e.persistMu.Unlock()
	if err != nil {
		e.pageError(logger.With(zap.String("slug", slug)), "store write failed", err)
		e.addItem(SummaryItem{URL: pageURL, Slug: slug, Error: err.Error()})
		return
	}

	switch result.Status {
	case StoreStatusSkipped:
		e.stats.AddSkipped()
		logger.Info("product already stored", zap.String("slug", result.Slug))
	default:
		e.stats.AddProduct()
		e.stats.AddImages(result.ImagesSaved)
		logger.Info("product stored",
			zap.String("slug", result.Slug),
			zap.String("title", record.Title),
			zap.Int("images", result.ImagesSaved),
			zap.Int("documents", result.DocumentsSent),
		)
	}
	for _, img := range result.Images {
		if img.Status == ImageStatusFailed {
			logger.Warn("image download failed", zap.String("image_url", img.URL), zap.String("error", img.Error))
		}
	}
	e.addItem(SummaryItem{URL: pageURL, Slug: result.Slug, Status: result.Status})
}

func (e *Engine) pageError(logger *zap.Logger, msg string, err error) {
	kind := ErrorKind(err)
	e.stats.AddError()
	metrics.ObserveError(kind)
	logger.Warn(msg, zap.String("error_kind", kind), zap.Error(err))
}

func (e *Engine) addItem(item SummaryItem) {
	e.itemsMu.Lock()
	e.items = append(e.items, item)
	e.itemsMu.Unlock()
}

func (e *Engine) finish(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	started time.Time,
	cause error,
) (StatsSnapshot, error) {
	state := RunStateCompleted
	if cause != nil {
		state = RunStateAborted
	}
	snapshot := e.stats.Snapshot()

	e.itemsMu.Lock()
	items := append([]SummaryItem(nil), e.items...)
	e.itemsMu.Unlock()

	summary := RunSummary{
		RunID:      runID,
		BaseURL:    e.cfg.BaseURL,
		State:      state,
		Stats:      snapshot,
		StartedAt:  started,
		FinishedAt: e.deps.Clock.Now(),
		Items:      items,
	}
	if err := e.deps.Store.WriteSummary(context.WithoutCancel(ctx), summary); err != nil {
		logger.Error("write run summary failed", zap.Error(err))
		if cause == nil {
			cause = fmt.Errorf("write run summary: %w", err)
		}
	}
	e.setState(state)

	fields := []zap.Field{
		zap.String("state", string(state)),
		zap.Int64("visited", snapshot.VisitedCount),
		zap.Int64("products", snapshot.ProductCount),
		zap.Int64("skipped", snapshot.SkippedCount),
		zap.Int64("images", snapshot.ImageCount),
		zap.Int64("errors", snapshot.ErrorCount),
		zap.Duration("elapsed", summary.FinishedAt.Sub(started)),
	}
	if cause != nil {
		logger.Error("crawl aborted", append(fields, zap.Error(cause))...)
		return snapshot, cause
	}
	logger.Info("crawl completed", fields...)
	return snapshot, nil
}
