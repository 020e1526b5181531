// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// EnvPrefix namespaces environment overrides, e.g. CRAWLER_CRAWLER_BASE_URL.
const EnvPrefix = "CRAWLER"

// DefaultUserAgent identifies the crawler to the target site.
const DefaultUserAgent = "product-crawler/1.0 (+https://github.com/JakeFAU/product-crawler)"

// Config captures every knob of a crawl run.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Robots    RobotsConfig    `mapstructure:"robots"`
	Images    ImagesConfig    `mapstructure:"images"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// CrawlerConfig governs the frontier and the worker pool.
type CrawlerConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	AllowedDomains     []string      `mapstructure:"allowed_domains"`
	OutputDir          string        `mapstructure:"output_dir"`
	Concurrency        int           `mapstructure:"concurrency"`
	MaxDepth           int           `mapstructure:"max_depth"`
	MaxPages           int           `mapstructure:"max_pages"`
	Force              bool          `mapstructure:"force"`
	MinDelay           time.Duration `mapstructure:"min_delay"`
	UserAgent          string        `mapstructure:"user_agent"`
	ProductURLKeywords []string      `mapstructure:"product_url_keywords"`
	ShutdownGrace      time.Duration `mapstructure:"shutdown_grace"`
}

// HTTPConfig configures the fetcher's timeouts and retries.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
}

// RobotsConfig controls robots.txt handling.
type RobotsConfig struct {
	Respect       bool          `mapstructure:"respect"`
	FailOpen      bool          `mapstructure:"fail_open"`
	FallbackDelay time.Duration `mapstructure:"fallback_delay"`
}

// ImagesConfig controls product image downloads.
type ImagesConfig struct {
	Enabled  bool  `mapstructure:"enabled"`
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// DocumentsConfig controls downloads of linked product documents.
type DocumentsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// ProgressInterval spaces heartbeat log lines. Zero disables them.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// NewViper returns a Viper instance with defaults and environment binding.
// Callers may bind flags to it before handing it to LoadFrom.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadFrom(NewViper(), path)
}

// LoadFrom reads the optional config file into v, then decodes and validates.
func LoadFrom(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read config: %w", crawler.ErrFatalConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unmarshal config: %w", crawler.ErrFatalConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "")
	v.SetDefault("crawler.allowed_domains", []string{})
	v.SetDefault("crawler.output_dir", "data/products")
	v.SetDefault("crawler.concurrency", crawler.DefaultConcurrency)
	v.SetDefault("crawler.max_depth", 5)
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.force", false)
	v.SetDefault("crawler.min_delay", time.Second)
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.product_url_keywords", []string{"/product/", "/products/", "/p/", "/item/"})
	v.SetDefault("crawler.shutdown_grace", crawler.DefaultShutdownGrace)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.retries", 3)
	v.SetDefault("http.backoff_initial", 250*time.Millisecond)
	v.SetDefault("http.backoff_max", 5*time.Second)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("robots.respect", true)
	v.SetDefault("robots.fail_open", true)
	v.SetDefault("robots.fallback_delay", 2*time.Second)
	v.SetDefault("images.enabled", true)
	v.SetDefault("images.max_bytes", 50_000_000)
	v.SetDefault("documents.enabled", true)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.progress_interval", 30*time.Second)
	v.SetDefault("metrics.addr", "")
}

// Validate reports every violation at once, wrapped in ErrFatalConfiguration.
func (c Config) Validate() error {
	var result *multierror.Error

	if err := validateBaseURL(c.Crawler.BaseURL); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Crawler.OutputDir == "" {
		result = multierror.Append(result, fmt.Errorf("crawler.output_dir is required"))
	}
	if c.Crawler.Concurrency <= 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.concurrency must be > 0"))
	}
	if c.Crawler.MaxDepth < 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.max_depth must be >= 0"))
	}
	if c.Crawler.MaxPages < 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.max_pages must be >= 0"))
	}
	if c.Crawler.MinDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.min_delay must be >= 0"))
	}
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		result = multierror.Append(result, fmt.Errorf("crawler.user_agent is required"))
	}
	if c.Crawler.ShutdownGrace < 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.shutdown_grace must be >= 0"))
	}
	if c.HTTP.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("http.timeout must be > 0"))
	}
	if c.HTTP.Retries < 0 {
		result = multierror.Append(result, fmt.Errorf("http.retries must be >= 0"))
	}
	if c.HTTP.BackoffInitial < 0 || c.HTTP.BackoffMax < c.HTTP.BackoffInitial {
		result = multierror.Append(result, fmt.Errorf("http.backoff_max must be >= http.backoff_initial >= 0"))
	}
	if c.HTTP.MaxRedirects < 0 {
		result = multierror.Append(result, fmt.Errorf("http.max_redirects must be >= 0"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		result = multierror.Append(result, fmt.Errorf("http.max_body_bytes must be > 0"))
	}
	if c.Robots.FallbackDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("robots.fallback_delay must be >= 0"))
	}
	if c.Logging.ProgressInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("logging.progress_interval must be >= 0"))
	}
	if c.Images.MaxBytes <= 0 {
		result = multierror.Append(result, fmt.Errorf("images.max_bytes must be > 0"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", crawler.ErrFatalConfiguration, err)
	}
	return nil
}

func validateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("crawler.base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("crawler.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("crawler.base_url must be an absolute http(s) url, got %q", raw)
	}
	return nil
}
