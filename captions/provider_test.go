package captions

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectTrack(t *testing.T) {
	manualEN := Track{LanguageCode: "en", Name: "English"}
	manualENGB := Track{LanguageCode: "en-GB", Name: "English (UK)"}
	autoEN := Track{LanguageCode: "en", Name: "English (auto-generated)", Generated: true}
	manualDE := Track{LanguageCode: "de", Name: "Deutsch"}
	autoFR := Track{LanguageCode: "fr", Generated: true}

	tests := []struct {
		name      string
		tracks    []Track
		languages []string
		want      Track
	}{
		{"manual preferred over generated", []Track{autoEN, manualEN}, []string{"en"}, manualEN},
		{"regional variant matches", []Track{manualENGB, autoEN}, []string{"en"}, manualENGB},
		{"generated fallback", []Track{manualDE, autoEN}, []string{"en"}, autoEN},
		{"language order", []Track{manualEN, manualDE}, []string{"de", "en"}, manualDE},
		{"manual in later language beats generated in first", []Track{autoFR, manualDE}, []string{"fr", "de"}, manualDE},
		{"case insensitive", []Track{{LanguageCode: "EN"}}, []string{"en"}, Track{LanguageCode: "EN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectTrack(tt.tracks, tt.languages)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectTrackNoMatch(t *testing.T) {
	tests := []struct {
		name      string
		tracks    []Track
		languages []string
	}{
		{"no tracks", nil, []string{"en"}},
		{"other languages", []Track{{LanguageCode: "de"}}, []string{"en"}},
		{"prefix is not a match", []Track{{LanguageCode: "eng"}}, []string{"en"}},
		{"no languages", []Track{{LanguageCode: "en"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectTrack(tt.tracks, tt.languages)
			require.Error(t, err)
			assert.True(t, pkgerrors.Is(err, ErrNoTranscriptFound))
		})
	}
}
