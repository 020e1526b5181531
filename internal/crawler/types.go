package crawler

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"
)

// CrawlTask is a unit of frontier work. It is never mutated after creation.
type CrawlTask struct {
	URL            string
	DiscoveredFrom string
	Depth          int
}

// Page is the result returned by a Fetcher implementation.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Headers     http.Header
	Body        []byte
}

// ContentLength reports the number of body bytes.
func (p Page) ContentLength() int {
	return len(p.Body)
}

// IsHTML reports whether the page declared an HTML media type. A missing
// Content-Type header is treated as HTML.
func (p Page) IsHTML() bool {
	if strings.TrimSpace(p.ContentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return strings.Contains(strings.ToLower(p.ContentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// PageKind is the classifier verdict for a fetched page.
type PageKind string

// Supported page kinds.
const (
	PageKindProduct    PageKind = "product"
	PageKindListing    PageKind = "listing"
	PageKindIrrelevant PageKind = "irrelevant"
)

// Classification is returned by a Classifier.
type Classification struct {
	Kind PageKind
	// Signal names the strategy that decided Kind.
	Signal string
	Links  []string
}

// Price keeps the raw price text alongside a best-effort numeric parse.
type Price struct {
	Amount   *float64
	Currency string
	Raw      string
}

// IsZero reports whether no price information was captured.
func (p Price) IsZero() bool {
	return p.Amount == nil && p.Raw == "" && p.Currency == ""
}

// ProductRecord is the structured output of the extractor.
type ProductRecord struct {
	SourceURL       string
	Title           string
	SKU             string
	Price           Price
	DescriptionHTML string
	DescriptionText string
	Categories      []string
	ImageURLs       []string
	Documents       []string
	Associated      []AssociatedProduct
	ExtractedAt     time.Time
}

// AssociatedProduct is a same-site product the page links to as related.
type AssociatedProduct struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Validate enforces that a record carries enough identity to be stored.
func (r ProductRecord) Validate() error {
	if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.SKU) == "" {
		return fmt.Errorf("%w: record for %s has neither title nor sku", ErrExtractionFailure, r.SourceURL)
	}
	return nil
}

// StoreStatus is the outcome of a Store.Write call.
type StoreStatus string

// Store outcomes.
const (
	StoreStatusWritten StoreStatus = "written"
	StoreStatusSkipped StoreStatus = "skipped"
)

// StoreResult describes what the store did for a record.
type StoreResult struct {
	Slug          string
	Dir           string
	Status        StoreStatus
	Images        []ImageResult
	ImagesSaved   int
	DocumentsSent int
}

// ImageStatus is the outcome of a single asset download.
type ImageStatus string

// Image download outcomes.
const (
	ImageStatusSaved   ImageStatus = "saved"
	ImageStatusSkipped ImageStatus = "skipped"
	ImageStatusFailed  ImageStatus = "failed"
)

// ImageResult reports the result of downloading one asset.
type ImageResult struct {
	URL      string      `json:"url"`
	Filename string      `json:"filename,omitempty"`
	Status   ImageStatus `json:"status"`
	Bytes    int         `json:"bytes,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// RunState is the orchestrator lifecycle state.
type RunState string

// Orchestrator states.
const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateAborted   RunState = "aborted"
)

// SummaryItem is one product entry in the run summary.
type SummaryItem struct {
	URL    string      `json:"url"`
	Slug   string      `json:"slug,omitempty"`
	Status StoreStatus `json:"status,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// RunSummary is persisted at the end of a run.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	BaseURL    string        `json:"base_url"`
	State      RunState      `json:"state"`
	Stats      StatsSnapshot `json:"stats"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Items      []SummaryItem `json:"items"`
}
