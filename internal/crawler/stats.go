package crawler

import "sync/atomic"

// RunStats is the run-scoped accumulator owned by the Engine. Every counter
// is updated with a single atomic add.
type RunStats struct {
	visited  atomic.Int64
	products atomic.Int64
	skipped  atomic.Int64
	images   atomic.Int64
	errors   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of RunStats.
type StatsSnapshot struct {
	VisitedCount int64 `json:"visited_count"`
	ProductCount int64 `json:"product_count"`
	SkippedCount int64 `json:"skipped_count"`
	ImageCount   int64 `json:"image_count"`
	ErrorCount   int64 `json:"error_count"`
}

// AddVisited records a processed page.
func (s *RunStats) AddVisited() { s.visited.Add(1) }

// AddProduct records a newly written product.
func (s *RunStats) AddProduct() { s.products.Add(1) }

// AddSkipped records a product that was already on disk.
func (s *RunStats) AddSkipped() { s.skipped.Add(1) }

// AddImages records saved images.
func (s *RunStats) AddImages(n int) {
	if n > 0 {
		s.images.Add(int64(n))
	}
}

// AddError records a contained per-page failure.
func (s *RunStats) AddError() { s.errors.Add(1) }

// Snapshot copies the counters.
func (s *RunStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		VisitedCount: s.visited.Load(),
		ProductCount: s.products.Load(),
		SkippedCount: s.skipped.Load(),
		ImageCount:   s.images.Load(),
		ErrorCount:   s.errors.Load(),
	}
}
