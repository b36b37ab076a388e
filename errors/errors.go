package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a failure on the transcript pipeline.
type Kind string

const (
	KindInvalidURL          Kind = "invalid_url"
	KindInvalidRequest      Kind = "invalid_request"
	KindTranscriptsDisabled Kind = "transcripts_disabled"
	KindNoTranscriptFound   Kind = "no_transcript_found"
	KindVideoUnavailable    Kind = "video_unavailable"
	KindBlocked             Kind = "blocked"
	KindEmptyTranscript     Kind = "empty_transcript"
	KindUpstream            Kind = "upstream_error"
	KindSummarization       Kind = "summarization_error"
	KindInternal            Kind = "internal"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Input is the offending client value, kept for diagnostics.
	Input string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Input != "" {
		msg = fmt.Sprintf("%s (input %q)", msg, e.Input)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, op string, err error, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func InvalidURL(op, input string) *Error {
	return &Error{
		Kind:    KindInvalidURL,
		Op:      op,
		Message: "Invalid YouTube URL",
		Input:   input,
	}
}

func InvalidRequest(op string, err error, message string) *Error {
	return E(KindInvalidRequest, op, err, message)
}

func TranscriptsDisabled(op string, err error) *Error {
	return E(KindTranscriptsDisabled, op, err, "Transcripts are disabled for this video.")
}

func NoTranscriptFound(op string, err error) *Error {
	return E(KindNoTranscriptFound, op, err, "No transcript was found for the requested language.")
}

func VideoUnavailable(op string, err error) *Error {
	return E(KindVideoUnavailable, op, err, "The video is unavailable.")
}

func Blocked(op string, err error, attempts int) *Error {
	return E(KindBlocked, op, err, fmt.Sprintf("YouTube blocked this request after %d attempt(s).", attempts))
}

func EmptyTranscript(op string) *Error {
	return E(KindEmptyTranscript, op, nil, "The transcript is empty.")
}

func Upstream(op string, err error) *Error {
	return E(KindUpstream, op, err, "Failed to fetch transcript")
}

func Summarization(op string, err error, message string) *Error {
	return E(KindSummarization, op, err, message)
}

func Internal(op string, err error, message string) *Error {
	return E(KindInternal, op, err, message)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if pkgerrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// PublicMessage renders err for API clients. Upstream failures carry the
// original upstream message; every other kind exposes only its own message.
func PublicMessage(err error) string {
	var e *Error
	if !pkgerrors.As(err, &e) {
		return "Internal server error"
	}
	if e.Kind == KindUpstream && e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, pkgerrors.Cause(e.Err).Error())
	}
	return e.Message
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindInvalidURL, KindInvalidRequest:
		return true
	}
	return false
}
