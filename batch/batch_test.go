package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/webmill/fetch"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InterRequestDelay = 0
	cfg.InterChunkDelay = 0
	return cfg
}

func urlList(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/page-%d", i)
	}
	return urls
}

func TestRunAllSucceed(t *testing.T) {
	runner := RunnerFunc(func(_ context.Context, url string) (RunOutcome, error) {
		return RunOutcome{HTTPStatus: 200, SizeBytes: 100}, nil
	})
	o := New(fastConfig(), runner, nil, nil)

	res, err := o.Run(context.Background(), "user-1", urlList(7))
	require.NoError(t, err)

	assert.Len(t, res.Results, 7)
	assert.Equal(t, 7, res.Summary.Total)
	assert.Equal(t, 7, res.Summary.Successful)
	assert.Equal(t, 0, res.Summary.Failed)
	assert.Equal(t, 1.0, res.Summary.SuccessRate)
	for _, r := range res.Results {
		assert.Equal(t, StatusSucceeded, r.Status)
		assert.Equal(t, 1, r.Attempt)
	}
}

func TestRunPartialFailure(t *testing.T) {
	runner := RunnerFunc(func(_ context.Context, url string) (RunOutcome, error) {
		if url == "https://example.com/page-3" {
			return RunOutcome{HTTPStatus: 500}, fmt.Errorf("fetching %s: server error", url)
		}
		return RunOutcome{HTTPStatus: 200}, nil
	})
	o := New(fastConfig(), runner, nil, nil)

	res, err := o.Run(context.Background(), "user-1", urlList(5))
	require.NoError(t, err, "one failed URL must not fail the batch")

	assert.Equal(t, 5, res.Summary.Total)
	assert.Equal(t, 4, res.Summary.Successful)
	assert.Equal(t, 1, res.Summary.Failed)
	assert.InDelta(t, 0.8, res.Summary.SuccessRate, 0.001)

	var failed *URLResult
	for i := range res.Results {
		if res.Results[i].Status == StatusFailed {
			failed = &res.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "https://example.com/page-3", failed.URL)
	assert.NotEmpty(t, failed.ErrorCode)
	assert.Contains(t, failed.ErrorMessage, "server error")
}

func TestRunConcurrencyBound(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 2
	cfg.ChunkSize = 20

	var active, peak int64
	runner := RunnerFunc(func(_ context.Context, _ string) (RunOutcome, error) {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return RunOutcome{HTTPStatus: 200}, nil
	})

	o := New(cfg, runner, nil, nil)
	res, err := o.Run(context.Background(), "user-1", urlList(8))
	require.NoError(t, err)
	assert.Equal(t, 8, res.Summary.Successful)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestRunBrowserClosedAbortsScheduling(t *testing.T) {
	cfg := fastConfig()
	cfg.ChunkSize = 2
	cfg.MaxConcurrent = 1

	var calls int64
	runner := RunnerFunc(func(_ context.Context, _ string) (RunOutcome, error) {
		if atomic.AddInt64(&calls, 1) == 2 {
			return RunOutcome{}, fmt.Errorf("acquiring tab: %w", fetch.ErrBrowserClosed)
		}
		return RunOutcome{HTTPStatus: 200}, nil
	})

	o := New(cfg, runner, nil, nil)
	res, err := o.Run(context.Background(), "user-1", urlList(8))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrBrowserClosed))
	// The first chunk completed; later chunks were never scheduled.
	assert.Equal(t, 2, res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Failed)
}

func TestRetryBatch(t *testing.T) {
	prev := &Result{Results: []URLResult{
		{URL: "https://example.com/ok", Status: StatusSucceeded, Attempt: 1},
		{URL: "https://example.com/bad", Status: StatusFailed, Attempt: 1,
			ErrorCode: "TIMEOUT", ErrorMessage: "context deadline exceeded"},
		{URL: "https://example.com/worse", Status: StatusFailed, Attempt: 2,
			ErrorCode: "HTTP_503", ErrorMessage: "service unavailable"},
	}}

	o := New(fastConfig(), nil, nil, nil)
	retry := o.RetryBatch(prev)

	require.Len(t, retry, 2)
	assert.Equal(t, "https://example.com/bad", retry[0].URL)
	assert.Equal(t, StatusPending, retry[0].Status)
	assert.Equal(t, 2, retry[0].Attempt)
	assert.Equal(t, "TIMEOUT: context deadline exceeded", retry[0].PreviousErrorMsg)
	assert.Empty(t, retry[0].ErrorCode, "prior error moves to the diagnostic field")
	assert.Equal(t, 3, retry[1].Attempt)
}

func TestRunEmptyInput(t *testing.T) {
	o := New(fastConfig(), nil, nil, nil)
	res, err := o.Run(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summary.Total)
	assert.Equal(t, 0.0, res.Summary.SuccessRate)
}

func TestChunk(t *testing.T) {
	chunks := chunk(urlList(7), 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 1)

	assert.Len(t, chunk(urlList(3), 3), 1)
	assert.Empty(t, chunk(nil, 3))
}

// recordingHistory captures calls and can be told to fail.
type recordingHistory struct {
	mu            sync.Mutex
	failAll       bool
	sessions      int
	recordUpdates []RecordUpdate
	sessionDone   bool
}

func (h *recordingHistory) CreateSession(_ context.Context, userID, sourceURL string, s Session) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAll {
		return nil, errors.New("history unavailable")
	}
	h.sessions++
	s.ID = "session-1"
	return &s, nil
}

func (h *recordingHistory) CreateURLRecords(_ context.Context, sessionID string, urls []string, chunkNumber int) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAll {
		return nil, errors.New("history unavailable")
	}
	records := make([]Record, len(urls))
	for i, u := range urls {
		records[i] = Record{ID: fmt.Sprintf("rec-%d-%d", chunkNumber, i), SessionID: sessionID, URL: u}
	}
	return records, nil
}

func (h *recordingHistory) UpdateURLRecord(_ context.Context, recordID string, update RecordUpdate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAll {
		return errors.New("history unavailable")
	}
	h.recordUpdates = append(h.recordUpdates, update)
	return nil
}

func (h *recordingHistory) UpdateSession(_ context.Context, sessionID string, update SessionUpdate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAll {
		return errors.New("history unavailable")
	}
	h.sessionDone = true
	return nil
}

func (h *recordingHistory) ListRetryableURLs(_ context.Context, _ string, _ RetryQuery) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAll {
		return nil, errors.New("history unavailable")
	}
	return nil, nil
}

func TestRunRecordsHistory(t *testing.T) {
	hist := &recordingHistory{}
	runner := RunnerFunc(func(_ context.Context, _ string) (RunOutcome, error) {
		return RunOutcome{HTTPStatus: 200}, nil
	})
	o := New(fastConfig(), runner, hist, nil)

	res, err := o.Run(context.Background(), "user-1", urlList(4))
	require.NoError(t, err)

	assert.Equal(t, "session-1", res.SessionID)
	assert.Equal(t, 1, hist.sessions)
	assert.Len(t, hist.recordUpdates, 4)
	assert.True(t, hist.sessionDone)
}

func TestRetryableURLs(t *testing.T) {
	hist := &recordingHistory{}
	o := New(fastConfig(), nil, hist, nil)

	// recordingHistory returns nil records; the call still succeeds.
	out, err := o.RetryableURLs(context.Background(), "user-1", RetryQuery{ErrorCode: "TIMEOUT"})
	require.NoError(t, err)
	assert.Empty(t, out)

	hist.failAll = true
	o = New(fastConfig(), nil, hist, nil)
	_, err = o.RetryableURLs(context.Background(), "user-1", RetryQuery{})
	assert.Error(t, err)
}

func TestRunHistoryFailuresAreNonFatal(t *testing.T) {
	hist := &recordingHistory{failAll: true}
	runner := RunnerFunc(func(_ context.Context, _ string) (RunOutcome, error) {
		return RunOutcome{HTTPStatus: 200}, nil
	})
	o := New(fastConfig(), runner, hist, nil)

	res, err := o.Run(context.Background(), "user-1", urlList(3))
	require.NoError(t, err, "bookkeeping failures never block content processing")
	assert.Equal(t, 3, res.Summary.Successful)
	assert.Empty(t, res.SessionID)
}
