package captions

import (
	"context"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Provider errors. Providers wrap these so the fetcher can classify the
// failure with errors.Is.
var (
	ErrTranscriptsDisabled = pkgerrors.New("transcripts are disabled")
	ErrNoTranscriptFound   = pkgerrors.New("no transcript found")
	ErrVideoUnavailable    = pkgerrors.New("video unavailable")
	ErrBlocked             = pkgerrors.New("request blocked")
)

// Provider lists and downloads caption tracks for a video.
type Provider interface {
	ListTracks(ctx context.Context, videoID string) ([]Track, error)
	// FetchTrack returns the raw caption items of a track. Items may be of any
	// shape Normalize understands.
	FetchTrack(ctx context.Context, track Track) ([]any, error)
}

// SelectTrack picks a human-authored track in the first matching preferred
// language, falling back to an auto-generated one.
func SelectTrack(tracks []Track, languages []string) (Track, error) {
	for _, generated := range []bool{false, true} {
		for _, lang := range languages {
			for _, track := range tracks {
				if track.Generated == generated && matchesLanguage(track.LanguageCode, lang) {
					return track, nil
				}
			}
		}
	}
	return Track{}, pkgerrors.Wrapf(ErrNoTranscriptFound, "languages %v", languages)
}

func matchesLanguage(code, lang string) bool {
	code = strings.ToLower(code)
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return false
	}
	return code == lang || strings.HasPrefix(code, lang+"-")
}
