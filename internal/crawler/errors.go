package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by every pipeline stage.
var (
	// ErrTransientNetwork marks failures that are retried with backoff.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrPermanentHTTP marks 4xx responses other than 429.
	ErrPermanentHTTP = errors.New("permanent http error")
	// ErrTooManyRedirects is returned when the redirect budget is exhausted.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrMalformedURL is returned for URLs that cannot be requested.
	ErrMalformedURL = errors.New("malformed url")
	// ErrRobotsDisallowed marks URLs rejected by robots.txt. It is not counted as an error.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	// ErrExtractionFailure marks product pages that produced no usable record.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrStoreConflict marks an existing product directory on a non-force run.
	ErrStoreConflict = errors.New("product already stored")
	// ErrFatalConfiguration aborts a run before any work starts.
	ErrFatalConfiguration = errors.New("fatal configuration error")
	// ErrRobotsUnavailable aborts a run when robots.txt cannot be loaded and no fallback is allowed.
	ErrRobotsUnavailable = errors.New("robots.txt unavailable")
)

// HTTPStatusError carries a non-2xx status code.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps the status onto the taxonomy.
func (e *HTTPStatusError) Unwrap() error {
	if IsRetryableStatus(e.StatusCode) {
		return ErrTransientNetwork
	}
	return ErrPermanentHTTP
}

// IsRetryableStatus reports whether a status code is worth retrying.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// ErrorKind returns a short label used for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTooManyRedirects):
		return "redirects"
	case errors.Is(err, ErrMalformedURL):
		return "malformed_url"
	case errors.Is(err, ErrPermanentHTTP):
		return "permanent_http"
	case errors.Is(err, ErrTransientNetwork):
		return "transient_network"
	case errors.Is(err, ErrExtractionFailure):
		return "extraction"
	case errors.Is(err, ErrRobotsDisallowed):
		return "robots"
	default:
		return "other"
	}
}
