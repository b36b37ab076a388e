package summary

import (
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

const LoadingPlaceholder = "[summary unavailable: model is loading]"

// ErrorPlaceholder marks a summary the model refused to produce.
func ErrorPlaceholder(msg string) string {
	return fmt.Sprintf("[summary unavailable: %s]", msg)
}

type outcome struct {
	text string
	kind string
}

// parseResponse interprets a model response. Error and loading records are
// honoured whatever the status; any other body must come with a 2xx status.
func parseResponse(body []byte, status int) (outcome, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		if status < 200 || status > 299 {
			return outcome{}, pkgerrors.Errorf("HTTP %d: %s", status, snippet(body))
		}
		return outcome{}, pkgerrors.Wrap(err, "decode response")
	}

	if record, ok := decoded.(map[string]any); ok {
		if out, ok := errorRecord(record); ok {
			return out, nil
		}
	}
	if status < 200 || status > 299 {
		return outcome{}, pkgerrors.Errorf("HTTP %d: %s", status, snippet(body))
	}

	switch v := decoded.(type) {
	case []any:
		return fromList(v), nil
	case map[string]any:
		if text, ok := recordText(v); ok {
			return outcome{text: text, kind: "summary"}, nil
		}
	}
	return outcome{kind: "unexpected"}, nil
}

func errorRecord(record map[string]any) (outcome, bool) {
	raw, ok := record["error"]
	if !ok || raw == nil {
		return outcome{}, false
	}
	if _, loading := record["estimated_time"]; loading {
		return outcome{text: LoadingPlaceholder, kind: "loading"}, true
	}
	msg := strings.TrimSpace(fmt.Sprint(raw))
	if list, ok := raw.([]any); ok && len(list) > 0 {
		msg = strings.TrimSpace(fmt.Sprint(list[0]))
	}
	if msg == "" {
		msg = "unknown error"
	}
	return outcome{text: ErrorPlaceholder(msg), kind: "error"}, true
}

// fromList joins the per-input summaries of a batched response in order.
// An error record inside the list wins over partial results.
func fromList(list []any) outcome {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case map[string]any:
			if out, ok := errorRecord(v); ok {
				return out
			}
			if text, ok := recordText(v); ok && text != "" {
				parts = append(parts, text)
			}
		case []any:
			// Some pipelines nest one list per input.
			if nested := fromList(v); nested.text != "" {
				parts = append(parts, nested.text)
			}
		}
	}
	if len(parts) == 0 {
		return outcome{kind: "unexpected"}
	}
	return outcome{text: strings.Join(parts, " "), kind: "summary"}
}

func recordText(record map[string]any) (string, bool) {
	for _, key := range []string{"summary_text", "generated_text"} {
		if s, ok := record[key].(string); ok {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

const snippetRunes = 200

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty body"
	}
	if cut := Truncate(s, snippetRunes); cut != s {
		return cut + "..."
	}
	return s
}
