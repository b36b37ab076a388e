package captions

import (
	"context"
	"time"

	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/middleware"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Fetcher retrieves a video's transcript through a Provider, retrying when
// the upstream blocks the request.
type Fetcher struct {
	provider  Provider
	languages []string
	sleep     Sleeper
	logger    logrus.FieldLogger
}

type Option func(*Fetcher)

// WithSleeper replaces the wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		f.sleep = s
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

func NewFetcher(provider Provider, languages []string, opts ...Option) *Fetcher {
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	f := &Fetcher{
		provider:  provider,
		languages: languages,
		sleep:     contextSleep,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the transcript of videoID. Only blocked requests are retried;
// the wait after attempt n is policy.RetryDelay * n.
func (f *Fetcher) Fetch(ctx context.Context, videoID string, policy RetryPolicy) (*Transcript, error) {
	const op = "captions.Fetcher.Fetch"

	if policy.MaxRetries < 1 {
		return nil, errors.InvalidRequest(op, nil, "max_retries must be at least 1")
	}
	if policy.RetryDelay < 0 {
		return nil, errors.InvalidRequest(op, nil, "retry_delay must not be negative")
	}

	logger := f.loggerFor(ctx).WithField("video_id", videoID)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		transcript, err := f.fetchOnce(ctx, videoID)
		if err == nil {
			transcript.Attempts = attempt
			if transcript.Text == "" {
				return nil, errors.EmptyTranscript(op)
			}
			logger.WithFields(logrus.Fields{
				"attempts": attempt,
				"language": transcript.Language,
				"items":    len(transcript.Items),
			}).Info("Fetched transcript")
			return transcript, nil
		}

		if !pkgerrors.Is(err, ErrBlocked) {
			return nil, classify(op, err)
		}
		lastErr = err
		if attempt == policy.MaxRetries {
			break
		}

		wait := policy.Backoff(attempt)
		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		}).Warn("Blocked by YouTube, retrying")
		if err := f.sleep(ctx, wait); err != nil {
			return nil, errors.Upstream(op, err)
		}
	}

	logger.WithField("attempts", policy.MaxRetries).Error("Giving up after repeated blocks")
	return nil, errors.Blocked(op, lastErr, policy.MaxRetries)
}

// loggerFor prefers the request-scoped logger so pipeline lines carry the
// request id.
func (f *Fetcher) loggerFor(ctx context.Context) logrus.FieldLogger {
	if l, ok := middleware.LoggerFromContext(ctx); ok {
		return l
	}
	return f.logger
}

func (f *Fetcher) fetchOnce(ctx context.Context, videoID string) (*Transcript, error) {
	tracks, err := f.provider.ListTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	track, err := SelectTrack(tracks, f.languages)
	if err != nil {
		return nil, err
	}
	raw, err := f.provider.FetchTrack(ctx, track)
	if err != nil {
		return nil, err
	}

	items := Normalize(raw)
	return &Transcript{
		VideoID:   videoID,
		Language:  track.LanguageCode,
		Generated: track.Generated,
		Items:     items,
		Text:      Format(items),
	}, nil
}

func classify(op string, err error) error {
	switch {
	case pkgerrors.Is(err, ErrTranscriptsDisabled):
		return errors.TranscriptsDisabled(op, err)
	case pkgerrors.Is(err, ErrNoTranscriptFound):
		return errors.NoTranscriptFound(op, err)
	case pkgerrors.Is(err, ErrVideoUnavailable):
		return errors.VideoUnavailable(op, err)
	}
	return errors.Upstream(op, err)
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
