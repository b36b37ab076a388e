package captions

import "time"

// CaptionItem is one timed caption segment. Start and Duration are seconds
// and never negative.
type CaptionItem struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Track describes one caption track offered for a video.
type Track struct {
	VideoID      string
	LanguageCode string
	Name         string
	// Generated marks auto-generated (speech recognition) tracks.
	Generated bool
	BaseURL   string
}

// Transcript is the ordered caption sequence of the selected track together
// with its joined display text.
type Transcript struct {
	VideoID   string
	Language  string
	Generated bool
	Items     []CaptionItem
	Text      string
	Attempts  int
}

// RetryPolicy bounds how often a fetch is retried after the upstream signals
// a transient block.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts, at least 1.
	MaxRetries int
	RetryDelay time.Duration
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.RetryDelay * time.Duration(attempt)
}
