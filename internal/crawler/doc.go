// Package crawler holds the shared product-crawl types, the error taxonomy and
// the interfaces each pipeline stage implements, plus the Engine that drives
// them: frontier, robots gate, rate limiter, fetcher, classifier, extractor,
// slugger and store.
package crawler
