// Package images downloads product assets into a product directory.
package images

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/hash/sha256"
	"github.com/JakeFAU/product-crawler/internal/metrics"
	"github.com/JakeFAU/product-crawler/internal/storage/local"
)

// DefaultMaxBytes bounds a single asset.
const DefaultMaxBytes = 50_000_000

// ErrTooLarge is returned for assets above the configured size limit.
var ErrTooLarge = errors.New("asset exceeds size limit")

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// preferredExt picks a stable extension where mime.ExtensionsByType
// returns several.
var preferredExt = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"image/avif":      ".avif",
	"application/pdf": ".pdf",
}

// Config controls asset downloads.
type Config struct {
	MaxBytes int64
}

// Downloader implements crawler.AssetDownloader. Requests go through the
// shared Fetcher so they are rate limited with page fetches.
type Downloader struct {
	fetcher  crawler.Fetcher
	maxBytes int64
	logger   *zap.Logger

	mu   sync.Mutex
	seen map[string]string // destDir + digest -> filename
}

var _ crawler.AssetDownloader = (*Downloader)(nil)

// New builds a Downloader.
func New(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Downloader{
		fetcher:  fetcher,
		maxBytes: cfg.MaxBytes,
		logger:   logger.Named("images"),
		seen:     make(map[string]string),
	}
}

// DownloadAll downloads urls in order. Individual failures are reported in
// the results and never stop the batch.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string, destDir string) []crawler.ImageResult {
	results := make([]crawler.ImageResult, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			results = append(results, crawler.ImageResult{URL: u, Status: crawler.ImageStatusFailed, Error: ctx.Err().Error()})
			continue
		}
		res, err := d.Download(ctx, u, destDir)
		if err != nil {
			d.logger.Warn("asset download failed", zap.String("url", u), zap.Error(err))
		}
		results = append(results, res)
	}
	return results
}

// Download saves one asset into destDir.
func (d *Downloader) Download(ctx context.Context, rawURL, destDir string) (crawler.ImageResult, error) {
	result := crawler.ImageResult{URL: rawURL}
	blobs, err := local.New(local.Config{BaseDir: destDir})
	if err != nil {
		return d.fail(result, fmt.Errorf("open dest dir: %w", err))
	}

	name := FilenameFromURL(rawURL)
	if name != "" && blobs.Exists(name) {
		return d.skip(result, name), nil
	}

	page, err := d.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return d.fail(result, err)
	}
	size := int64(len(page.Body))
	if size == 0 {
		return d.fail(result, fmt.Errorf("empty body for %s", rawURL))
	}
	if size > d.maxBytes {
		return d.fail(result, fmt.Errorf("%w: %s is larger than %d bytes", ErrTooLarge, rawURL, d.maxBytes))
	}

	digest := sha256.Sum(page.Body)
	if name == "" {
		name = digest[:16] + extensionFor(page.ContentType)
		if blobs.Exists(name) {
			return d.skip(result, name), nil
		}
	}

	key := destDir + "\x00" + digest
	d.mu.Lock()
	if existing, dup := d.seen[key]; dup {
		d.mu.Unlock()
		return d.skip(result, existing), nil
	}
	d.seen[key] = name
	d.mu.Unlock()

	if _, err := blobs.PutObject(ctx, name, page.Body); err != nil {
		d.mu.Lock()
		delete(d.seen, key)
		d.mu.Unlock()
		return d.fail(result, fmt.Errorf("write asset: %w", err))
	}

	result.Filename = name
	result.Status = crawler.ImageStatusSaved
	result.Bytes = len(page.Body)
	metrics.ObserveImage(string(result.Status))
	return result, nil
}

func (d *Downloader) skip(result crawler.ImageResult, name string) crawler.ImageResult {
	result.Filename = name
	result.Status = crawler.ImageStatusSkipped
	metrics.ObserveImage(string(result.Status))
	return result
}

func (d *Downloader) fail(result crawler.ImageResult, err error) (crawler.ImageResult, error) {
	result.Status = crawler.ImageStatusFailed
	result.Error = err.Error()
	metrics.ObserveImage(string(result.Status))
	return result, err
}

// FilenameFromURL returns a sanitized base name for rawURL, or "" when the
// path has no usable name with an extension.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return ""
	}
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	ext = strings.ToLower(invalidFilenameChars.ReplaceAllString(ext, ""))
	stem = strings.Trim(invalidFilenameChars.ReplaceAllString(stem, "_"), "._")
	if stem == "" || len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	if len(stem) > 100 {
		stem = stem[:100]
	}
	return stem + ext
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := preferredExt[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
