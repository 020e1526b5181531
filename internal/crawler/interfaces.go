package crawler

import (
	"context"
	"time"
)

// Frontier hands out crawl tasks and tracks visited URLs.
type Frontier interface {
	InScope(rawURL string) bool
	Offer(rawURL, parent string, depth int) bool
	Next(ctx context.Context) (CrawlTask, bool)
	MarkVisited(rawURL string)
	Record(rawURL string) bool
}

// RobotsPolicy answers crawl-permission questions for the target site.
type RobotsPolicy interface {
	Load(ctx context.Context) error
	Allowed(rawURL string) bool
	CrawlDelay() (time.Duration, bool)
}

// Limiter is the host-wide request gate.
type Limiter interface {
	Wait(ctx context.Context) error
	SetInterval(interval time.Duration)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Classifier decides what a fetched page is and which links it exposes.
type Classifier interface {
	Classify(body []byte, pageURL string) (Classification, error)
}

// Extractor builds a product record from a product page.
type Extractor interface {
	Extract(body []byte, pageURL string) (ProductRecord, error)
}

// Slugger derives the directory name for a record.
type Slugger interface {
	Slugify(title, sku, sourceURL string) string
}

// Store persists product records.
type Store interface {
	Exists(slug string) bool
	Write(ctx context.Context, slug string, record ProductRecord) (StoreResult, error)
	WriteSummary(ctx context.Context, summary RunSummary) error
}

// AssetDownloader saves binary assets referenced by a record.
type AssetDownloader interface {
	DownloadAll(ctx context.Context, urls []string, destDir string) []ImageResult
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
