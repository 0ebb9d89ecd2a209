// Package pipeline composes URL validation, browser fetching, content
// extraction, Markdown conversion, caching, and link discovery into the
// operations the product exposes: single-URL conversion, batch
// conversion, and link discovery.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/webmill/batch"
	"github.com/c360studio/webmill/cache"
	"github.com/c360studio/webmill/extract"
	"github.com/c360studio/webmill/fetch"
	"github.com/c360studio/webmill/links"
	"github.com/c360studio/webmill/markdown"
	"github.com/c360studio/webmill/weburl"
)

// Fetcher retrieves a fully rendered page.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.Options) (*fetch.Result, error)
}

// Extractor isolates the main content region of a page.
type Extractor interface {
	Extract(rawHTML string, opts extract.Options) (*extract.Content, error)
}

// Converter turns extracted HTML into Markdown.
type Converter interface {
	Convert(rawHTML string) (*markdown.Result, error)
}

// Cacher is the cache surface the pipeline consumes.
type Cacher interface {
	GetContent(rawURL string, opts cache.KeyOptions) (any, bool)
	CacheContent(rawURL string, opts cache.KeyOptions, value any, size int, ttl time.Duration) bool
	CheckRateLimit(identifier string, limit int, window time.Duration) cache.RateLimitResult
	Health() cache.Health
}

// Config tunes pipeline-level behavior.
type Config struct {
	Retry              RetryConfig
	CacheTTL           time.Duration
	RateLimitPerDomain int
	RateLimitWindow    time.Duration
}

// DefaultConfig returns the standard pipeline configuration. Rate limiting
// is off unless a per-domain limit is set.
func DefaultConfig() Config {
	return Config{
		Retry:           DefaultRetryConfig(),
		RateLimitWindow: time.Minute,
	}
}

// Pipeline owns its collaborators rather than reaching for globals, so
// tests can substitute fakes and multiple pipelines can coexist.
type Pipeline struct {
	cfg        Config
	fetcher    Fetcher
	extractor  Extractor
	converter  Converter
	cache      Cacher
	logger     *slog.Logger
	orchConfig batch.Config
	history    batch.History
}

// New wires a pipeline from its collaborators. The cache may be nil, which
// disables caching and rate limiting.
func New(cfg Config, batchCfg batch.Config, fetcher Fetcher, extractor Extractor, converter Converter, cacher Cacher, history batch.History, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		fetcher:    fetcher,
		extractor:  extractor,
		converter:  converter,
		cache:      cacher,
		logger:     logger.With("component", "pipeline"),
		orchConfig: batchCfg,
		history:    history,
	}
}

// Options controls a single conversion.
type Options struct {
	Fetch       fetch.Options
	Extract     extract.Options
	BypassCache bool
}

// Document is the payload of a successful conversion.
type Document struct {
	URL          string           `json:"url"`
	FinalURL     string           `json:"finalUrl"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	Language     string           `json:"language,omitempty"`
	CanonicalURL string           `json:"canonicalUrl,omitempty"`
	Markdown     string           `json:"markdown"`
	ContentHash  string           `json:"contentHash"`
	HTTPStatus   int              `json:"httpStatus"`
	Extract      extract.Metrics  `json:"extractMetrics"`
	Convert      markdown.Metrics `json:"convertMetrics"`
	Quality      markdown.Quality `json:"quality"`
}

// ConvertResult is the envelope for one conversion attempt.
type ConvertResult struct {
	Success        bool          `json:"success"`
	Document       *Document     `json:"data,omitempty"`
	Err            *Error        `json:"error,omitempty"`
	ProcessingTime time.Duration `json:"processingTimeMs"`
	FromCache      bool          `json:"fromCache"`
	RequestID      string        `json:"requestId"`
}

// ConvertURL runs the full validate-fetch-extract-convert cycle for one
// URL, serving from cache when possible. The error return mirrors
// result.Err for callers that prefer error handling over envelope
// inspection.
func (p *Pipeline) ConvertURL(ctx context.Context, rawURL string, opts Options) (*ConvertResult, error) {
	requestID := uuid.NewString()
	start := time.Now()
	logger := p.logger.With("request_id", requestID, "url", rawURL)

	// Stage failures carry their stage category; zero means classify the
	// cause by inspection.
	fail := func(category Category, cause error) (*ConvertResult, error) {
		if category == "" {
			category = classify(cause)
		}
		perr := newError(category, rawURL, requestID, cause)
		logger.Warn("conversion failed",
			"category", perr.Category,
			"error", cause,
			"duration", time.Since(start))
		return &ConvertResult{
			Err:            perr,
			ProcessingTime: time.Since(start),
			RequestID:      requestID,
		}, perr
	}

	if err := weburl.Validate(rawURL); err != nil {
		return fail("", err)
	}

	keyOpts := cacheKeyOptions(opts.Fetch)
	if p.cache != nil && !opts.BypassCache {
		if cached, ok := p.cache.GetContent(rawURL, keyOpts); ok {
			if doc, ok := cached.(*Document); ok {
				logger.Debug("cache hit", "duration", time.Since(start))
				return &ConvertResult{
					Success:        true,
					Document:       doc,
					ProcessingTime: time.Since(start),
					FromCache:      true,
					RequestID:      requestID,
				}, nil
			}
		}
	}

	if res := p.checkRateLimit(rawURL); res != nil && res.IsLimited {
		cause := fmt.Errorf("domain rate limit exceeded, retry after %ds", res.RetryAfterSeconds)
		return fail(CategoryRateLimit, cause)
	}

	page, err := Retry(ctx, p.cfg.Retry, func(ctx context.Context) (*fetch.Result, error) {
		return p.fetcher.Fetch(ctx, rawURL, opts.Fetch)
	})
	if err != nil {
		return fail("", err)
	}

	extractOpts := opts.Extract
	if extractOpts.BaseURL == "" {
		extractOpts.BaseURL = page.FinalURL
	}
	content, err := p.extractor.Extract(page.HTML, extractOpts)
	if err != nil {
		return fail(CategoryExtraction, err)
	}

	converted, err := p.converter.Convert(content.HTML)
	if err != nil {
		return fail(CategoryConversion, err)
	}

	doc := &Document{
		URL:          rawURL,
		FinalURL:     page.FinalURL,
		Title:        page.Title,
		Description:  page.Description,
		Language:     page.Language,
		CanonicalURL: page.CanonicalURL,
		Markdown:     converted.Markdown,
		ContentHash:  contentHash(converted.Markdown),
		HTTPStatus:   page.HTTPStatus,
		Extract:      content.Metrics,
		Convert:      converted.Metrics,
		Quality:      converted.Quality,
	}

	if p.cache != nil {
		p.cache.CacheContent(rawURL, keyOpts, doc, len(doc.Markdown), p.cfg.CacheTTL)
	}

	logger.Info("conversion completed",
		"final_url", doc.FinalURL,
		"http_status", doc.HTTPStatus,
		"markdown_bytes", len(doc.Markdown),
		"duration", time.Since(start))

	return &ConvertResult{
		Success:        true,
		Document:       doc,
		ProcessingTime: time.Since(start),
		RequestID:      requestID,
	}, nil
}

// ConvertURLsBatch runs ConvertURL over a URL list with chunked, bounded
// concurrency and history bookkeeping.
func (p *Pipeline) ConvertURLsBatch(ctx context.Context, userID string, urls []string, opts Options) (*batch.Result, error) {
	runner := batch.RunnerFunc(func(ctx context.Context, url string) (batch.RunOutcome, error) {
		res, err := p.ConvertURL(ctx, url, opts)
		outcome := batch.RunOutcome{}
		if res != nil && res.Document != nil {
			outcome.HTTPStatus = res.Document.HTTPStatus
			outcome.Title = res.Document.Title
			outcome.SizeBytes = len(res.Document.Markdown)
		}
		if res != nil && res.Err != nil {
			outcome.ErrorCode = string(res.Err.Category)
		}
		return outcome, err
	})

	orchestrator := batch.New(p.orchConfig, runner, p.history, p.logger)
	return orchestrator.Run(ctx, userID, urls)
}

// DiscoverOptions controls link discovery.
type DiscoverOptions struct {
	Fetch fetch.Options
	Links links.Options
}

// DiscoverLinks fetches a page and catalogs its outgoing links.
func (p *Pipeline) DiscoverLinks(ctx context.Context, rawURL string, opts DiscoverOptions) (*links.Result, error) {
	if err := weburl.Validate(rawURL); err != nil {
		return nil, newError(CategoryValidation, rawURL, "", err)
	}

	page, err := Retry(ctx, p.cfg.Retry, func(ctx context.Context) (*fetch.Result, error) {
		return p.fetcher.Fetch(ctx, rawURL, opts.Fetch)
	})
	if err != nil {
		return nil, newError(classify(err), rawURL, "", err)
	}

	return links.Discover(page.HTML, page.FinalURL, opts.Links)
}

// Health reports cache health for operational monitoring.
func (p *Pipeline) Health() cache.Health {
	if p.cache == nil {
		return cache.Health{Status: "healthy"}
	}
	return p.cache.Health()
}

// checkRateLimit applies the per-domain sliding window when configured.
func (p *Pipeline) checkRateLimit(rawURL string) *cache.RateLimitResult {
	if p.cache == nil || p.cfg.RateLimitPerDomain <= 0 {
		return nil
	}
	domain := weburl.ExtractDomain(rawURL)
	if domain == "" {
		return nil
	}
	window := p.cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	res := p.cache.CheckRateLimit(domain, p.cfg.RateLimitPerDomain, window)
	return &res
}

func cacheKeyOptions(opts fetch.Options) cache.KeyOptions {
	return cache.KeyOptions{
		WaitUntil:       string(opts.WaitUntil),
		Timeout:         opts.Timeout,
		WaitForSelector: opts.WaitForSelector,
		IgnoreTLSErrors: opts.IgnoreTLSErrors,
	}
}

func contentHash(markdown string) string {
	sum := sha256.Sum256([]byte(markdown))
	return hex.EncodeToString(sum[:])
}
