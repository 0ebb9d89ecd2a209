// Package batch orchestrates bounded-concurrency pipeline runs over URL
// lists, with chunking, politeness delays, partial-failure aggregation,
// and retry-session bookkeeping against an external history store.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/webmill/fetch"
)

// Status is the per-URL state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Config controls chunking, concurrency, and politeness delays.
type Config struct {
	MaxConcurrent     int           `yaml:"max_concurrent"`
	ChunkSize         int           `yaml:"chunk_size"`
	InterRequestDelay time.Duration `yaml:"inter_request_delay"`
	InterChunkDelay   time.Duration `yaml:"inter_chunk_delay"`
	MaxRetries        int           `yaml:"max_retries"`
}

// DefaultConfig returns the standard batch configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     3,
		ChunkSize:         10,
		InterRequestDelay: 200 * time.Millisecond,
		InterChunkDelay:   1 * time.Second,
		MaxRetries:        3,
	}
}

// GetMaxConcurrent returns the concurrency bound or its default.
func (c Config) GetMaxConcurrent() int {
	if c.MaxConcurrent <= 0 {
		return 3
	}
	return c.MaxConcurrent
}

// GetChunkSize returns the chunk size or its default.
func (c Config) GetChunkSize() int {
	if c.ChunkSize <= 0 {
		return 10
	}
	return c.ChunkSize
}

// URLResult records the outcome of a single URL in a batch.
type URLResult struct {
	URL              string        `json:"url"`
	Status           Status        `json:"status"`
	HTTPStatus       int           `json:"httpStatus,omitempty"`
	Title            string        `json:"title,omitempty"`
	SizeBytes        int           `json:"sizeBytes,omitempty"`
	ProcessingTime   time.Duration `json:"processingTimeMs"`
	ErrorCode        string        `json:"errorCode,omitempty"`
	ErrorMessage     string        `json:"errorMessage,omitempty"`
	PreviousErrorMsg string        `json:"previousErrorMessage,omitempty"`
	Attempt          int           `json:"attempt"`
}

// Summary aggregates a completed batch.
type Summary struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"successRate"`
}

// Result is the full outcome of a batch run.
type Result struct {
	SessionID string      `json:"sessionId,omitempty"`
	Results   []URLResult `json:"results"`
	Summary   Summary     `json:"summary"`
}

// RunOutcome is what the injected runner reports for one URL.
type RunOutcome struct {
	HTTPStatus int
	Title      string
	SizeBytes  int
	ErrorCode  string
}

// Runner executes the fetch-extract-convert cycle for a single URL. The
// orchestrator treats any returned error as that URL's failure.
type Runner interface {
	Run(ctx context.Context, url string) (RunOutcome, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, url string) (RunOutcome, error)

func (f RunnerFunc) Run(ctx context.Context, url string) (RunOutcome, error) { return f(ctx, url) }

// Orchestrator drives batches through a Runner with History bookkeeping.
type Orchestrator struct {
	cfg     Config
	runner  Runner
	history History
	logger  *slog.Logger
}

// New creates an orchestrator. A nil history disables bookkeeping.
func New(cfg Config, runner Runner, history History, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if history == nil {
		history = NoopHistory{}
	}
	return &Orchestrator{
		cfg:     cfg,
		runner:  runner,
		history: history,
		logger:  logger.With("component", "batch"),
	}
}

// Run processes urls in chunks. A single URL's failure never aborts the
// batch; only a closed browser stops further scheduling, since every
// remaining fetch would fail the same way.
func (o *Orchestrator) Run(ctx context.Context, userID string, urls []string) (*Result, error) {
	if len(urls) == 0 {
		return &Result{Summary: Summary{}}, nil
	}

	start := time.Now()
	session := o.startSession(ctx, userID, urls)

	var (
		mu      sync.Mutex
		results = make([]URLResult, 0, len(urls))
		fatal   error
	)

	chunks := chunk(urls, o.cfg.GetChunkSize())
	for ci, ch := range chunks {
		if fatal != nil || ctx.Err() != nil {
			break
		}
		if ci > 0 && o.cfg.InterChunkDelay > 0 {
			if !sleep(ctx, o.cfg.InterChunkDelay) {
				break
			}
		}

		records := o.createRecords(ctx, session, ch, ci)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.GetMaxConcurrent())
		for i, u := range ch {
			if i > 0 && o.cfg.InterRequestDelay > 0 {
				if !sleep(ctx, o.cfg.InterRequestDelay) {
					break
				}
			}
			url := u
			record := records[i]
			g.Go(func() error {
				res, browserClosed := o.runOne(gctx, url)
				o.recordOutcome(ctx, record, res)

				mu.Lock()
				results = append(results, res)
				if browserClosed {
					fatal = fetch.ErrBrowserClosed
				}
				mu.Unlock()
				return nil
			})
		}
		// Workers never return errors; Wait is a join.
		_ = g.Wait()
	}

	out := &Result{Results: results, Summary: summarize(results)}
	o.finishSession(ctx, session, out, time.Since(start))
	if session != nil {
		out.SessionID = session.ID
	}

	if fatal != nil {
		return out, fmt.Errorf("batch aborted: %w", fatal)
	}
	return out, nil
}

// runOne executes the pipeline for one URL and converts the outcome into a
// URLResult. The second return reports a closed browser, the only failure
// that halts further scheduling.
func (o *Orchestrator) runOne(ctx context.Context, url string) (URLResult, bool) {
	start := time.Now()
	res := URLResult{URL: url, Status: StatusProcessing, Attempt: 1}

	outcome, err := o.runner.Run(ctx, url)
	res.ProcessingTime = time.Since(start)
	res.HTTPStatus = outcome.HTTPStatus
	res.Title = outcome.Title
	res.SizeBytes = outcome.SizeBytes

	if err != nil {
		res.Status = StatusFailed
		res.ErrorCode = errorCode(err, outcome)
		res.ErrorMessage = err.Error()
		o.logger.Warn("url failed",
			"url", url,
			"error_code", res.ErrorCode,
			"error", err)
		return res, errors.Is(err, fetch.ErrBrowserClosed)
	}

	res.Status = StatusSucceeded
	return res, false
}

// RetryableURLs asks the history store for previously failed records
// eligible for retry and converts them into pending results.
func (o *Orchestrator) RetryableURLs(ctx context.Context, userID string, query RetryQuery) ([]URLResult, error) {
	records, err := o.history.ListRetryableURLs(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("listing retryable urls: %w", err)
	}

	out := make([]URLResult, 0, len(records))
	for _, r := range records {
		out = append(out, URLResult{
			URL:              r.URL,
			Status:           StatusPending,
			PreviousErrorMsg: fmt.Sprintf("%s: %s", r.ErrorCode, r.ErrorMessage),
		})
	}
	return out, nil
}

// RetryBatch builds a new URL list from the failed entries of a previous
// result, carrying each one's prior error for diagnostics. The returned
// results start with a fresh attempt counter offset by the prior attempt.
func (o *Orchestrator) RetryBatch(prev *Result) []URLResult {
	var retry []URLResult
	for _, r := range prev.Results {
		if r.Status != StatusFailed {
			continue
		}
		retry = append(retry, URLResult{
			URL:              r.URL,
			Status:           StatusPending,
			PreviousErrorMsg: fmt.Sprintf("%s: %s", r.ErrorCode, r.ErrorMessage),
			Attempt:          r.Attempt + 1,
		})
	}
	return retry
}

func errorCode(err error, outcome RunOutcome) string {
	if outcome.ErrorCode != "" {
		return outcome.ErrorCode
	}
	return string(fetch.Categorize(err))
}

func chunk(urls []string, size int) [][]string {
	var out [][]string
	for len(urls) > size {
		out = append(out, urls[:size])
		urls = urls[size:]
	}
	if len(urls) > 0 {
		out = append(out, urls)
	}
	return out
}

// sleep waits for d unless ctx is canceled first. Returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func summarize(results []URLResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Status == StatusSucceeded {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.Total)
	}
	return s
}
