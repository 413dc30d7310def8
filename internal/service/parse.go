package service

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/timmy/capvis/internal/domain"
)

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// parseCaption parses the model's textual response into a structured
// Caption. Malformed-but-present output is never discarded: when no valid
// JSON can be extracted the verbatim response is kept in the RawText
// fallback field.
func parseCaption(raw string) *domain.Caption {
	cleaned := sanitizeModelJSON(raw)

	if !strings.HasPrefix(cleaned, "{") {
		return &domain.Caption{RawText: raw}
	}

	var caption domain.Caption
	if err := json.Unmarshal([]byte(cleaned), &caption); err != nil {
		return &domain.Caption{RawText: raw}
	}
	return &caption
}

// sanitizeModelJSON removes code fences, comments, and trailing commas that
// vision models commonly wrap around their JSON output.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
