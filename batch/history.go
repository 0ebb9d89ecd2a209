package batch

import (
	"context"
	"time"
)

// Session is the external history store's record of one batch run.
type Session struct {
	ID          string
	UserID      string
	SourceURL   string
	SessionName string
	TotalURLs   int
	ChunkSize   int
	MaxRetries  int
	Status      Status
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Record tracks one URL within a session.
type Record struct {
	ID           string
	SessionID    string
	URL          string
	ChunkNumber  int
	Status       Status
	HTTPStatus   int
	SizeBytes    int
	ErrorCode    string
	ErrorMessage string
	Title        string
}

// RecordUpdate carries the fields written back after a URL completes.
type RecordUpdate struct {
	Status         Status
	HTTPStatus     int
	SizeBytes      int
	ProcessingTime time.Duration
	ErrorCode      string
	ErrorMessage   string
	Title          string
}

// SessionUpdate carries the fields written back when a session ends.
type SessionUpdate struct {
	Status         Status
	ProcessingTime time.Duration
	ErrorMessage   string
	CompletedAt    time.Time
}

// RetryQuery selects previously failed records eligible for retry.
type RetryQuery struct {
	SessionID        string
	ErrorCode        string
	MinRetryInterval time.Duration
}

// History is the session and record bookkeeping collaborator. Failures from
// any of these methods are logged by the orchestrator and never propagated;
// content processing must not be blocked by bookkeeping.
type History interface {
	CreateSession(ctx context.Context, userID, sourceURL string, s Session) (*Session, error)
	CreateURLRecords(ctx context.Context, sessionID string, urls []string, chunkNumber int) ([]Record, error)
	UpdateURLRecord(ctx context.Context, recordID string, update RecordUpdate) error
	UpdateSession(ctx context.Context, sessionID string, update SessionUpdate) error
	ListRetryableURLs(ctx context.Context, userID string, query RetryQuery) ([]Record, error)
}

// NoopHistory satisfies History without persisting anything.
type NoopHistory struct{}

func (NoopHistory) CreateSession(context.Context, string, string, Session) (*Session, error) {
	return nil, nil
}

func (NoopHistory) CreateURLRecords(context.Context, string, []string, int) ([]Record, error) {
	return nil, nil
}

func (NoopHistory) UpdateURLRecord(context.Context, string, RecordUpdate) error { return nil }

func (NoopHistory) UpdateSession(context.Context, string, SessionUpdate) error { return nil }

func (NoopHistory) ListRetryableURLs(context.Context, string, RetryQuery) ([]Record, error) {
	return nil, nil
}

// startSession opens a history session. A bookkeeping failure is logged and
// the batch proceeds without one.
func (o *Orchestrator) startSession(ctx context.Context, userID string, urls []string) *Session {
	sourceURL := ""
	if len(urls) > 0 {
		sourceURL = urls[0]
	}
	session, err := o.history.CreateSession(ctx, userID, sourceURL, Session{
		UserID:     userID,
		SourceURL:  sourceURL,
		TotalURLs:  len(urls),
		ChunkSize:  o.cfg.GetChunkSize(),
		MaxRetries: o.cfg.MaxRetries,
		Status:     StatusProcessing,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		o.logger.Warn("history session creation failed", "error", err)
		return nil
	}
	return session
}

// createRecords registers a chunk's URLs. Always returns one slot per URL
// so callers can index it; slots are nil-ID when bookkeeping failed.
func (o *Orchestrator) createRecords(ctx context.Context, session *Session, urls []string, chunkNumber int) []Record {
	placeholders := make([]Record, len(urls))
	for i, u := range urls {
		placeholders[i] = Record{URL: u, ChunkNumber: chunkNumber, Status: StatusPending}
	}
	if session == nil {
		return placeholders
	}

	records, err := o.history.CreateURLRecords(ctx, session.ID, urls, chunkNumber)
	if err != nil || len(records) != len(urls) {
		o.logger.Warn("history record creation failed",
			"session_id", session.ID,
			"chunk", chunkNumber,
			"error", err)
		return placeholders
	}
	return records
}

func (o *Orchestrator) recordOutcome(ctx context.Context, record Record, res URLResult) {
	if record.ID == "" {
		return
	}
	err := o.history.UpdateURLRecord(ctx, record.ID, RecordUpdate{
		Status:         res.Status,
		HTTPStatus:     res.HTTPStatus,
		SizeBytes:      res.SizeBytes,
		ProcessingTime: res.ProcessingTime,
		ErrorCode:      res.ErrorCode,
		ErrorMessage:   res.ErrorMessage,
		Title:          res.Title,
	})
	if err != nil {
		o.logger.Warn("history record update failed",
			"record_id", record.ID,
			"url", res.URL,
			"error", err)
	}
}

func (o *Orchestrator) finishSession(ctx context.Context, session *Session, res *Result, elapsed time.Duration) {
	if session == nil {
		return
	}
	status := StatusSucceeded
	if res.Summary.Failed > 0 {
		status = StatusFailed
	}
	err := o.history.UpdateSession(ctx, session.ID, SessionUpdate{
		Status:         status,
		ProcessingTime: elapsed,
		CompletedAt:    time.Now(),
	})
	if err != nil {
		o.logger.Warn("history session update failed",
			"session_id", session.ID,
			"error", err)
	}
}
