package captions

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultYouTubeBase   = "https://www.youtube.com"
	playerResponseMarker = "ytInitialPlayerResponse = "
	browserUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	maxWatchPageBytes = 8 << 20
	maxTimedTextBytes = 2 << 20
)

// YouTubeConfig configures the YouTube caption provider.
type YouTubeConfig struct {
	// BaseURL overrides https://www.youtube.com.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// YouTube reads caption tracks from the public watch page and downloads them
// from the timedtext endpoint.
type YouTube struct {
	client  *http.Client
	baseURL string
}

func NewYouTube(cfg YouTubeConfig) *YouTube {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultYouTubeBase
	}
	return &YouTube{client: client, baseURL: base}
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"name"`
}

func (t captionTrack) displayName() string {
	if t.Name.SimpleText != "" {
		return t.Name.SimpleText
	}
	parts := make([]string, 0, len(t.Name.Runs))
	for _, r := range t.Name.Runs {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "")
}

// ListTracks scrapes the watch page for the player response and returns its
// caption tracks.
func (y *YouTube) ListTracks(ctx context.Context, videoID string) ([]Track, error) {
	watchURL := y.baseURL + "/watch?v=" + url.QueryEscape(videoID) + "&hl=en"
	body, err := y.get(ctx, watchURL, maxWatchPageBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "watch page")
	}

	page := string(body)
	if strings.Contains(page, `class="g-recaptcha"`) {
		return nil, pkgerrors.Wrap(ErrBlocked, "captcha challenge")
	}

	raw, err := extractPlayerResponse(page)
	if err != nil {
		return nil, err
	}
	var player playerResponse
	if err := json.Unmarshal([]byte(raw), &player); err != nil {
		return nil, pkgerrors.Wrap(err, "decode player response")
	}

	if err := playabilityError(player.PlayabilityStatus.Status, player.PlayabilityStatus.Reason); err != nil {
		return nil, err
	}
	if player.Captions == nil || len(player.Captions.Renderer.CaptionTracks) == 0 {
		return nil, pkgerrors.Wrapf(ErrTranscriptsDisabled, "video %s", videoID)
	}

	tracks := make([]Track, 0, len(player.Captions.Renderer.CaptionTracks))
	for _, ct := range player.Captions.Renderer.CaptionTracks {
		tracks = append(tracks, Track{
			VideoID:      videoID,
			LanguageCode: ct.LanguageCode,
			Name:         ct.displayName(),
			Generated:    ct.Kind == "asr",
			BaseURL:      y.resolveTrackURL(ct.BaseURL),
		})
	}

	logrus.WithFields(logrus.Fields{
		"video_id": videoID,
		"tracks":   len(tracks),
	}).Debug("Listed caption tracks")
	return tracks, nil
}

// FetchTrack downloads a timedtext XML track. Each returned item exposes
// Text/Start/Duration accessors.
func (y *YouTube) FetchTrack(ctx context.Context, track Track) ([]any, error) {
	if track.BaseURL == "" {
		return nil, pkgerrors.Wrapf(ErrNoTranscriptFound, "track %s has no url", track.LanguageCode)
	}
	body, err := y.get(ctx, track.BaseURL, maxTimedTextBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "timedtext")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, pkgerrors.Wrap(err, "parse timedtext")
	}
	items := make([]any, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		items = append(items, line)
	}
	return items, nil
}

func (y *YouTube) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+1"})

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, pkgerrors.Wrapf(ErrBlocked, "HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.Errorf("unexpected status: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read body")
	}
	return body, nil
}

func (y *YouTube) resolveTrackURL(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "/") {
		raw = y.baseURL + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	// srv3 and json3 formats are not the plain timedtext XML we parse.
	q := u.Query()
	q.Del("fmt")
	u.RawQuery = q.Encode()
	return u.String()
}

func playabilityError(status, reason string) error {
	switch status {
	case "", "OK":
		return nil
	case "LOGIN_REQUIRED":
		lower := strings.ToLower(reason)
		if strings.Contains(lower, "bot") {
			return pkgerrors.Wrap(ErrBlocked, reason)
		}
		return pkgerrors.Wrap(ErrVideoUnavailable, reason)
	case "ERROR", "UNPLAYABLE":
		return pkgerrors.Wrap(ErrVideoUnavailable, reason)
	}
	return pkgerrors.Wrapf(ErrVideoUnavailable, "%s: %s", status, reason)
}

func extractPlayerResponse(page string) (string, error) {
	idx := strings.Index(page, playerResponseMarker)
	if idx < 0 {
		return "", pkgerrors.New("player response not found in watch page")
	}
	raw := extractJSON(page[idx+len(playerResponseMarker):])
	if raw == "" {
		return "", pkgerrors.New("player response is not a JSON object")
	}
	return raw, nil
}

// extractJSON returns the balanced JSON object at the start of s, or "" when
// s does not start with one.
func extractJSON(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, "{") {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

type timedText struct {
	Lines []timedTextLine `xml:"text"`
}

// timedTextLine keeps attributes as strings so one malformed value does not
// fail the whole document.
type timedTextLine struct {
	Body     string `xml:",chardata"`
	StartRaw string `xml:"start,attr"`
	DurRaw   string `xml:"dur,attr"`
}

// Text is HTML-unescaped once more: timedtext bodies arrive double-escaped.
func (l timedTextLine) Text() string { return html.UnescapeString(l.Body) }

func (l timedTextLine) Start() float64 { return parseSeconds(l.StartRaw) }

func (l timedTextLine) Duration() float64 { return parseSeconds(l.DurRaw) }

func parseSeconds(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
