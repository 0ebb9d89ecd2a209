package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/webmill/fetch"
	"github.com/c360studio/webmill/weburl"
)

// Category classifies pipeline failures for callers and batch records.
type Category string

const (
	CategoryValidation  Category = "VALIDATION_ERROR"
	CategoryNetwork     Category = "NETWORK_ERROR"
	CategoryHTTP        Category = "HTTP_ERROR"
	CategoryConcurrency Category = "CONCURRENCY_LIMIT"
	CategoryRateLimit   Category = "RATE_LIMITED"
	CategoryExtraction  Category = "EXTRACTION_ERROR"
	CategoryConversion  Category = "CONVERSION_ERROR"
	CategoryCache       Category = "CACHE_ERROR"
	CategoryUnknown     Category = "UNKNOWN_ERROR"
)

// Error is the structured failure surfaced by pipeline operations.
type Error struct {
	Category  Category  `json:"category"`
	Message   string    `json:"message"`
	URL       string    `json:"url"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// newError wraps a failure with its category and request context.
func newError(category Category, url, requestID string, cause error) *Error {
	return &Error{
		Category:  category,
		Message:   cause.Error(),
		URL:       url,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// classify maps an underlying error to a pipeline category.
func classify(err error) Category {
	var validationErr *weburl.ValidationError
	if errors.As(err, &validationErr) {
		return CategoryValidation
	}
	var httpErr *fetch.HTTPError
	if errors.As(err, &httpErr) {
		return CategoryHTTP
	}
	if errors.Is(err, fetch.ErrConcurrencyLimit) {
		return CategoryConcurrency
	}

	switch fetch.Categorize(err) {
	case fetch.CategoryTimeout, fetch.CategoryDNS, fetch.CategoryConnectionRefused, fetch.CategorySSL:
		return CategoryNetwork
	case fetch.CategoryRateLimit:
		return CategoryRateLimit
	case fetch.CategoryHTTP:
		return CategoryHTTP
	}
	return CategoryUnknown
}
