package validation

import (
	"regexp"
	"strings"

	"github.com/nijaru/yt-summary/errors"
)

// videoIDPattern matches the known YouTube URL shapes followed by an
// 11-character video id.
var videoIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/|shorts/|embed/|/v/)([0-9A-Za-z_-]{11})`)

// ExtractVideoID returns the first video id found in rawURL. It accepts any
// string, well-formed or not, and fails with an InvalidURL error that carries
// the original input.
func ExtractVideoID(rawURL string) (string, error) {
	const op = "validation.ExtractVideoID"

	m := videoIDPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if len(m) < 2 {
		return "", errors.InvalidURL(op, rawURL)
	}
	return m[1], nil
}
