package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/classify"
	"github.com/JakeFAU/product-crawler/internal/clock/system"
	"github.com/JakeFAU/product-crawler/internal/config"
	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/product-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/product-crawler/internal/frontier"
	"github.com/JakeFAU/product-crawler/internal/id/uuid"
	"github.com/JakeFAU/product-crawler/internal/images"
	"github.com/JakeFAU/product-crawler/internal/logging"
	"github.com/JakeFAU/product-crawler/internal/metrics"
	"github.com/JakeFAU/product-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/product-crawler/internal/progress"
	"github.com/JakeFAU/product-crawler/internal/robots"
	"github.com/JakeFAU/product-crawler/internal/slug"
	"github.com/JakeFAU/product-crawler/internal/store"
)

// newCrawlCmd creates the 'crawl' subcommand. Flags override config file and
// environment values.
func newCrawlCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured site and store its products",
		Long: `Crawls the site at --base-url (or crawler.base_url), staying on that
host, honoring robots.txt and the configured request spacing. Products
already present in the output directory are skipped unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, v, *cfgFile)
		},
	}

	f := cmd.Flags()
	f.String("base-url", "", "site to crawl, e.g. https://shop.example.com")
	f.StringSlice("allowed-domains", nil, "extra hosts treated as part of the site")
	f.String("output-dir", "data/products", "directory receiving one folder per product")
	f.Int("concurrency", crawler.DefaultConcurrency, "number of crawl workers")
	f.Int("max-depth", 5, "maximum link depth from the base URL")
	f.Int("max-pages", 0, "maximum pages to queue (0 = unlimited)")
	f.Bool("force", false, "rewrite products that are already stored")
	f.Duration("min-delay", time.Second, "minimum spacing between requests")
	f.String("user-agent", config.DefaultUserAgent, "User-Agent header")
	f.Bool("respect-robots", true, "obey robots.txt")
	f.Bool("images", true, "download product images")
	f.Bool("documents", true, "download linked product documents")
	f.String("metrics-addr", "", "serve /metrics and /healthz on this address")

	for key, name := range map[string]string{
		"crawler.base_url":        "base-url",
		"crawler.allowed_domains": "allowed-domains",
		"crawler.output_dir":      "output-dir",
		"crawler.concurrency":     "concurrency",
		"crawler.max_depth":       "max-depth",
		"crawler.max_pages":       "max-pages",
		"crawler.force":           "force",
		"crawler.min_delay":       "min-delay",
		"crawler.user_agent":      "user-agent",
		"robots.respect":          "respect-robots",
		"images.enabled":          "images",
		"documents.enabled":       "documents",
		"metrics.addr":            "metrics-addr",
	} {
		cobra.CheckErr(v.BindPFlag(key, f.Lookup(name)))
	}
	return cmd
}

func runCrawl(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	cfg, err := config.LoadFrom(v, cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		metricsCtx, stopMetrics := context.WithCancel(context.WithoutCancel(ctx))
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	if cfg.Logging.ProgressInterval > 0 {
		reporterCtx, stopReporter := context.WithCancel(ctx)
		defer stopReporter()
		reporter := progress.NewReporter(progress.Config{
			Interval: cfg.Logging.ProgressInterval,
			Logger:   logger,
		}, engine.Stats)
		go reporter.Run(reporterCtx)
	}

	stats, runErr := engine.Run(ctx)
	fmt.Fprintf(cmd.OutOrStdout(),
		"%s: visited=%d products=%d skipped=%d images=%d errors=%d\n",
		engine.State(), stats.VisitedCount, stats.ProductCount, stats.SkippedCount,
		stats.ImageCount, stats.ErrorCount)
	if runErr != nil {
		return fmt.Errorf("crawl %s: %w", cfg.Crawler.BaseURL, runErr)
	}
	return nil
}

// buildEngine wires every pipeline stage from cfg.
func buildEngine(cfg config.Config, logger *zap.Logger) (*crawler.Engine, error) {
	clock := system.New()

	front, err := frontier.New(frontier.Config{
		BaseURL:        cfg.Crawler.BaseURL,
		AllowedDomains: cfg.Crawler.AllowedDomains,
		MaxDepth:       cfg.Crawler.MaxDepth,
		MaxPages:       cfg.Crawler.MaxPages,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init frontier: %w", crawler.ErrFatalConfiguration, err)
	}

	robotsPolicy := robots.New(robots.Config{
		BaseURL:       cfg.Crawler.BaseURL,
		UserAgent:     cfg.Crawler.UserAgent,
		Respect:       cfg.Robots.Respect,
		FailOpen:      cfg.Robots.FailOpen,
		FallbackDelay: cfg.Robots.FallbackDelay,
		Timeout:       cfg.HTTP.Timeout,
	}, &http.Client{Timeout: cfg.HTTP.Timeout}, logger)

	limiter := ratelimit.New(ratelimit.Config{MinInterval: cfg.Crawler.MinDelay})
	retry := collyfetcher.RetryPolicy{
		MaxRetries: cfg.HTTP.Retries,
		BaseDelay:  cfg.HTTP.BackoffInitial,
		MaxDelay:   cfg.HTTP.BackoffMax,
	}
	pages := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Crawler.UserAgent,
		Timeout:      cfg.HTTP.Timeout,
		MaxRedirects: cfg.HTTP.MaxRedirects,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Retry:        retry,
	}, limiter, logger)
	// Asset bodies may run one byte past the image limit so the downloader
	// can reject oversized files instead of saving truncated ones.
	assets := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Crawler.UserAgent,
		Timeout:      cfg.HTTP.Timeout,
		MaxRedirects: cfg.HTTP.MaxRedirects,
		MaxBodyBytes: int(cfg.Images.MaxBytes) + 1,
		Retry:        retry,
	}, limiter, logger)

	st, err := store.New(store.Config{
		OutputDir:         cfg.Crawler.OutputDir,
		Force:             cfg.Crawler.Force,
		DownloadImages:    cfg.Images.Enabled,
		DownloadDocuments: cfg.Documents.Enabled,
	}, images.New(assets, images.Config{MaxBytes: cfg.Images.MaxBytes}, logger), logger)
	if err != nil {
		return nil, err
	}

	return crawler.NewEngine(crawler.EngineConfig{
		BaseURL:       cfg.Crawler.BaseURL,
		Concurrency:   cfg.Crawler.Concurrency,
		MinDelay:      cfg.Crawler.MinDelay,
		ShutdownGrace: cfg.Crawler.ShutdownGrace,
	}, crawler.Dependencies{
		Frontier:   front,
		Robots:     robotsPolicy,
		Limiter:    limiter,
		Fetcher:    pages,
		Classifier: classify.New(cfg.Crawler.ProductURLKeywords),
		Extractor:  extract.New(clock, logger),
		Slugger:    slug.Generator{Lookup: st.Lookup},
		Store:      st,
		IDs:        uuid.NewUUIDGenerator(),
		Clock:      clock,
	}, logger)
}
