package transcription

import (
	"context"
	"fmt"
	"time"

	"github.com/nijaru/yt-summary/captions"
	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/ledger"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/nijaru/yt-summary/validation"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

type Fetcher interface {
	Fetch(ctx context.Context, videoID string, policy captions.RetryPolicy) (*captions.Transcript, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Recorder stores outcome metadata of a run.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) error
}

type Request struct {
	URL        string
	MaxRetries int
	RetryDelay time.Duration
	Summarize  bool
}

// NewRequest returns a request for url with the default retry policy and
// summarization requested.
func NewRequest(url string) Request {
	return Request{
		URL:        url,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Summarize:  true,
	}
}

// Result is the outcome of one run. On failure Err is set and the other
// fields are empty.
type Result struct {
	VideoID    string
	Transcript string
	Summary    string
	Attempts   int
	Err        error
}

type Config struct {
	MaxRetriesCap int
	MaxRetryDelay time.Duration
	EnableSummary bool
}

type Service struct {
	fetcher    Fetcher
	summarizer Summarizer
	recorder   Recorder
	cfg        Config
	logger     *logrus.Logger
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func NewService(fetcher Fetcher, summarizer Summarizer, cfg Config, opts ...Option) *Service {
	s := &Service{
		fetcher:    fetcher,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process runs extraction, fetching and optional summarization for one
// request. Summarization problems never fail the run.
func (s *Service) Process(ctx context.Context, req Request) Result {
	start := time.Now()
	logger := s.loggerFor(ctx).WithField("url", req.URL)

	res := s.process(ctx, req, logger)

	fields := logrus.Fields{
		"video_id": res.VideoID,
		"attempts": res.Attempts,
		"duration": time.Since(start).String(),
	}
	if res.Err != nil {
		fields["kind"] = string(errors.KindOf(res.Err))
		if errors.IsClientError(res.Err) {
			logger.WithFields(fields).WithError(res.Err).Info("Rejected request")
		} else {
			logger.WithFields(fields).WithError(res.Err).Warn("Transcript request failed")
		}
	} else {
		logger.WithFields(fields).Info("Transcript request completed")
	}

	s.record(ctx, logger, res, time.Since(start))
	if res.Err != nil {
		return Result{Attempts: res.Attempts, Err: res.Err}
	}
	return res
}

func (s *Service) process(ctx context.Context, req Request, logger *logrus.Entry) Result {
	const op = "transcription.Service.Process"

	videoID, err := validation.ExtractVideoID(req.URL)
	if err != nil {
		return Result{Err: err}
	}
	if err := s.validatePolicy(op, req); err != nil {
		return Result{VideoID: videoID, Err: err}
	}

	policy := captions.RetryPolicy{MaxRetries: req.MaxRetries, RetryDelay: req.RetryDelay}
	transcript, err := s.fetcher.Fetch(ctx, videoID, policy)
	if err != nil {
		attempts := 1
		if errors.Is(err, errors.KindBlocked) {
			attempts = req.MaxRetries
		}
		return Result{VideoID: videoID, Attempts: attempts, Err: err}
	}

	res := Result{
		VideoID:    videoID,
		Transcript: transcript.Text,
		Attempts:   transcript.Attempts,
	}

	if req.Summarize && s.cfg.EnableSummary && s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, transcript.Text)
		if err != nil {
			logger.WithError(err).WithField("video_id", videoID).Warn("Summarization failed, returning transcript only")
			summary = ""
		}
		res.Summary = summary
	}
	return res
}

func (s *Service) validatePolicy(op string, req Request) error {
	switch {
	case req.MaxRetries < 1:
		return errors.InvalidRequest(op, nil, "max_retries must be at least 1")
	case s.cfg.MaxRetriesCap > 0 && req.MaxRetries > s.cfg.MaxRetriesCap:
		return errors.InvalidRequest(op, nil, fmt.Sprintf("max_retries must not exceed %d", s.cfg.MaxRetriesCap))
	case req.RetryDelay < 0:
		return errors.InvalidRequest(op, nil, "retry_delay must not be negative")
	case s.cfg.MaxRetryDelay > 0 && req.RetryDelay > s.cfg.MaxRetryDelay:
		return errors.InvalidRequest(op, nil, fmt.Sprintf("retry_delay must not exceed %g seconds", s.cfg.MaxRetryDelay.Seconds()))
	}
	return nil
}

func (s *Service) loggerFor(ctx context.Context) *logrus.Entry {
	if l, ok := middleware.LoggerFromContext(ctx); ok {
		return l
	}
	return logrus.NewEntry(s.logger)
}

func (s *Service) record(ctx context.Context, logger *logrus.Entry, res Result, elapsed time.Duration) {
	if s.recorder == nil {
		return
	}
	outcome := "success"
	if res.Err != nil {
		outcome = string(errors.KindOf(res.Err))
	}
	entry := ledger.Entry{
		VideoID:    res.VideoID,
		Outcome:    outcome,
		Attempts:   res.Attempts,
		Duration:   elapsed,
		Summarized: res.Err == nil && res.Summary != "",
	}
	// The client may already be gone; the ledger write should still happen.
	if err := s.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.WithError(err).WithField("video_id", res.VideoID).Warn("Failed to record outcome")
	}
}
