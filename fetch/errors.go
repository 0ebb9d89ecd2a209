package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the fetcher.
var (
	// ErrConcurrencyLimit is returned when the browser page cap is reached.
	// Callers are expected to retry with backoff rather than queue.
	ErrConcurrencyLimit = errors.New("concurrent page limit exceeded")

	// ErrBrowserClosed is returned when the shared browser has been shut
	// down. Unlike per-URL failures this is fatal to batch processing.
	ErrBrowserClosed = errors.New("browser is closed")
)

// HTTPError reports a non-2xx response for the main document.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d", e.Status)
}

// Category classifies a fetch failure for statistics and retry decisions.
type Category string

// Failure categories.
const (
	CategoryTimeout           Category = "TIMEOUT"
	CategoryDNS               Category = "DNS_ERROR"
	CategoryConnectionRefused Category = "CONNECTION_REFUSED"
	CategoryHTTP              Category = "HTTP_ERROR"
	CategorySSL               Category = "SSL_ERROR"
	CategoryRateLimit         Category = "RATE_LIMIT"
	CategoryUnknown           Category = "UNKNOWN"
)

// Categorize maps a fetch error to a failure category by inspecting sentinel
// errors first and falling back to pattern-matching the transport error text.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}

	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrConcurrencyLimit):
		return CategoryRateLimit
	case errors.As(err, &httpErr):
		return CategoryHTTP
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "timed out"):
		return CategoryTimeout
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "name_not_resolved") ||
		strings.Contains(msg, "dns"):
		return CategoryDNS
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection_refused") ||
		strings.Contains(msg, "connection reset"):
		return CategoryConnectionRefused
	case strings.Contains(msg, "certificate") || strings.Contains(msg, "ssl") ||
		strings.Contains(msg, "tls") || strings.Contains(msg, "cert_"):
		return CategorySSL
	default:
		return CategoryUnknown
	}
}
