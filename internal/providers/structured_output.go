package providers

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedJSON is returned when no JSON value can be recovered from model output.
var ErrMalformedJSON = errors.New("malformed structured output")

// ParseJSON recovers a JSON value from model output. It tolerates markdown
// code fences and prose around the payload.
func ParseJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.Join(ErrMalformedJSON, errors.New("empty output"))
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	var lastErr error
	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			lastErr = err
			continue
		}
		return json.RawMessage(candidate), nil
	}
	return nil, errors.Join(ErrMalformedJSON, lastErr)
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// First line is the opening fence, possibly with a language tag.
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONCandidate slices from the first opening bracket to the last
// matching closing bracket of the same kind.
func extractJSONCandidate(content string) string {
	objectStart := strings.Index(content, "{")
	arrayStart := strings.Index(content, "[")

	start, closeChar := -1, ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start, closeChar = objectStart, "}"
	case arrayStart >= 0:
		start, closeChar = arrayStart, "]"
	default:
		return ""
	}

	end := strings.LastIndex(content, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
