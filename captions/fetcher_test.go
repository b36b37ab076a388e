package captions

import (
	"context"
	"testing"
	"time"

	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/middleware"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers ListTracks with the queued errors first, then with
// tracks.
type fakeProvider struct {
	listErrs  []error
	tracks    []Track
	items     []any
	fetchErr  error
	listCalls int
	fetched   []Track
}

func (p *fakeProvider) ListTracks(_ context.Context, _ string) ([]Track, error) {
	p.listCalls++
	if len(p.listErrs) > 0 {
		err := p.listErrs[0]
		p.listErrs = p.listErrs[1:]
		return nil, err
	}
	return p.tracks, nil
}

func (p *fakeProvider) FetchTrack(_ context.Context, track Track) ([]any, error) {
	p.fetched = append(p.fetched, track)
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.items, nil
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func helloWorldProvider() *fakeProvider {
	return &fakeProvider{
		tracks: []Track{{VideoID: "dQw4w9WgXcQ", LanguageCode: "en"}},
		items: []any{
			map[string]any{"text": "hello", "start": 0.0, "duration": 1.0},
			map[string]any{"text": "world", "start": 1.0, "duration": 1.0},
		},
	}
}

func blocked() error {
	return pkgerrors.Wrap(ErrBlocked, "HTTP 429")
}

func TestFetchSuccess(t *testing.T) {
	provider := helloWorldProvider()
	sleeper := &recordingSleeper{}
	f := NewFetcher(provider, []string{"en"}, WithSleeper(sleeper.sleep))

	got, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 3, RetryDelay: 2 * time.Second})

	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", got.Text)
	assert.Equal(t, "dQw4w9WgXcQ", got.VideoID)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, 1, got.Attempts)
	assert.Len(t, got.Items, 2)
	assert.Empty(t, sleeper.waits)
}

func TestFetchRetriesBlockedWithLinearBackoff(t *testing.T) {
	provider := helloWorldProvider()
	provider.listErrs = []error{blocked(), blocked()}
	sleeper := &recordingSleeper{}
	f := NewFetcher(provider, nil, WithSleeper(sleeper.sleep))

	got, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 3, RetryDelay: 2 * time.Second})

	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", got.Text)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.waits)
}

func TestFetchBlockedExhausted(t *testing.T) {
	provider := helloWorldProvider()
	provider.listErrs = []error{blocked(), blocked(), blocked()}
	sleeper := &recordingSleeper{}
	f := NewFetcher(provider, nil, WithSleeper(sleeper.sleep))

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 3, RetryDelay: 2 * time.Second})

	require.Error(t, err)
	assert.Equal(t, errors.KindBlocked, errors.KindOf(err))
	assert.Equal(t, 3, provider.listCalls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.waits)
}

func TestFetchSingleAttemptDoesNotWait(t *testing.T) {
	provider := helloWorldProvider()
	provider.listErrs = []error{blocked()}
	sleeper := &recordingSleeper{}
	f := NewFetcher(provider, nil, WithSleeper(sleeper.sleep))

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 1, RetryDelay: 5 * time.Second})

	require.Error(t, err)
	assert.Equal(t, errors.KindBlocked, errors.KindOf(err))
	assert.Equal(t, 1, provider.listCalls)
	assert.Empty(t, sleeper.waits)
}

func TestFetchZeroDelayRetriesImmediately(t *testing.T) {
	provider := helloWorldProvider()
	provider.listErrs = []error{blocked()}
	f := NewFetcher(provider, nil)

	got, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 2, RetryDelay: 0})

	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
}

func TestFetchPermanentErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Kind
	}{
		{"disabled", pkgerrors.Wrap(ErrTranscriptsDisabled, "video"), errors.KindTranscriptsDisabled},
		{"not found", ErrNoTranscriptFound, errors.KindNoTranscriptFound},
		{"unavailable", pkgerrors.Wrap(ErrVideoUnavailable, "private"), errors.KindVideoUnavailable},
		{"unknown", pkgerrors.New("connection reset"), errors.KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := helloWorldProvider()
			provider.listErrs = []error{tt.err}
			sleeper := &recordingSleeper{}
			f := NewFetcher(provider, nil, WithSleeper(sleeper.sleep))

			_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 3, RetryDelay: time.Second})

			require.Error(t, err)
			assert.Equal(t, tt.want, errors.KindOf(err))
			assert.Equal(t, 1, provider.listCalls)
			assert.Empty(t, sleeper.waits)
		})
	}
}

func TestFetchUpstreamMessageKeepsCause(t *testing.T) {
	provider := helloWorldProvider()
	provider.listErrs = []error{pkgerrors.Wrap(pkgerrors.New("connection reset"), "watch page")}
	f := NewFetcher(provider, nil)

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 1})

	require.Error(t, err)
	assert.Contains(t, errors.PublicMessage(err), "connection reset")
}

func TestFetchNoMatchingLanguage(t *testing.T) {
	provider := helloWorldProvider()
	provider.tracks = []Track{{LanguageCode: "de"}}
	f := NewFetcher(provider, []string{"en"})

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 3})

	require.Error(t, err)
	assert.Equal(t, errors.KindNoTranscriptFound, errors.KindOf(err))
	assert.Empty(t, provider.fetched)
}

func TestFetchEmptyTranscript(t *testing.T) {
	provider := helloWorldProvider()
	provider.items = []any{map[string]any{"text": "  "}, map[string]any{"text": "\n"}}
	f := NewFetcher(provider, nil)

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 3})

	require.Error(t, err)
	assert.Equal(t, errors.KindEmptyTranscript, errors.KindOf(err))
	assert.Equal(t, 1, provider.listCalls)
}

func TestFetchInvalidPolicy(t *testing.T) {
	f := NewFetcher(helloWorldProvider(), nil)

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 0})
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))

	_, err = f.Fetch(context.Background(), "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 1, RetryDelay: -time.Second})
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))
}

func TestFetchCancelledDuringWait(t *testing.T) {
	provider := helloWorldProvider()
	provider.listErrs = []error{blocked(), blocked()}
	f := NewFetcher(provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 3, RetryDelay: time.Hour})

	require.Error(t, err)
	assert.Equal(t, errors.KindUpstream, errors.KindOf(err))
	assert.Equal(t, 1, provider.listCalls)
}

func TestFetchRetryLogsCarryRequestID(t *testing.T) {
	provider := helloWorldProvider()
	provider.listErrs = []error{blocked()}
	fallback, fallbackHook := logtest.NewNullLogger()
	requestLogger, requestHook := logtest.NewNullLogger()
	f := NewFetcher(provider, []string{"en"}, WithSleeper((&recordingSleeper{}).sleep), WithLogger(fallback))

	ctx := middleware.WithLogger(context.Background(), requestLogger.WithField("request_id", "req-7"))
	_, err := f.Fetch(ctx, "dQw4w9WgXcQ", RetryPolicy{MaxRetries: 2, RetryDelay: time.Second})

	require.NoError(t, err)
	assert.Empty(t, fallbackHook.AllEntries())
	entries := requestHook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, "Blocked by YouTube, retrying", entries[0].Message)
	for _, e := range entries {
		assert.Equal(t, "req-7", e.Data["request_id"])
		assert.Equal(t, "dQw4w9WgXcQ", e.Data["video_id"])
	}
}
