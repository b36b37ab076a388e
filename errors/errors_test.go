package errors

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := E(KindInternal, "op", nil, "test message")
	assert.Equal(t, "test message", err.Error())

	cause := fmt.Errorf("cause error")
	err = E(KindInternal, "op", cause, "test message")
	assert.Equal(t, "test message: cause error", err.Error())
	assert.Equal(t, cause, pkgerrors.Unwrap(err))
}

func TestInvalidURLCarriesInput(t *testing.T) {
	err := InvalidURL("validation.ExtractVideoID", "not a url")

	assert.Equal(t, KindInvalidURL, err.Kind)
	assert.Equal(t, "not a url", err.Input)
	assert.Contains(t, err.Error(), `"not a url"`)
	assert.Equal(t, "Invalid YouTube URL", PublicMessage(err))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", Blocked("op", nil, 3), KindBlocked},
		{"wrapped", pkgerrors.Wrap(VideoUnavailable("op", nil), "context"), KindVideoUnavailable},
		{"fmt wrapped", fmt.Errorf("outer: %w", TranscriptsDisabled("op", nil)), KindTranscriptsDisabled},
		{"plain error", fmt.Errorf("standard error"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	assert.True(t, Is(EmptyTranscript("op"), KindEmptyTranscript))
	assert.False(t, Is(EmptyTranscript("op"), KindBlocked))
	assert.False(t, Is(nil, KindInternal))
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"disabled", TranscriptsDisabled("op", fmt.Errorf("raw")), "Transcripts are disabled for this video."},
		{"blocked", Blocked("op", fmt.Errorf("429"), 3), "YouTube blocked this request after 3 attempt(s)."},
		{"upstream keeps original message", Upstream("op", pkgerrors.Wrap(fmt.Errorf("connection reset"), "watch page")), "Failed to fetch transcript: connection reset"},
		{"non-custom", fmt.Errorf("boom"), "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicMessage(tt.err))
		})
	}
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(InvalidURL("op", "x")))
	assert.True(t, IsClientError(InvalidRequest("op", nil, "bad")))
	assert.False(t, IsClientError(Upstream("op", fmt.Errorf("x"))))
}
