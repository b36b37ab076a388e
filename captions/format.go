package captions

import "strings"

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Format joins caption texts into display text, one caption per line.
// Line breaks inside a caption become spaces and blank captions are dropped.
func Format(items []CaptionItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(lineBreaks.Replace(item.Text))
		if text == "" {
			continue
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}
