package ai

import (
	"encoding/json"
	"regexp"
)

var (
	fencedJSONPattern = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*(\{.*?\})\s*` + "```")
	substrJSONPattern = regexp.MustCompile(`(?s)\{[^{}]*\}`)
)

// ExtractJSON mirrors the original helper's extract_json: try (1) a
// fenced ```json``` code block, (2) the whole string, (3) the first
// {...} substring. It returns the first strategy that parses, or false
// if none does.
func ExtractJSON(text string) (map[string]any, bool) {
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		if obj, ok := tryUnmarshal(m[1]); ok {
			return obj, true
		}
	}

	if obj, ok := tryUnmarshal(text); ok {
		return obj, true
	}

	if m := substrJSONPattern.FindString(text); m != "" {
		if obj, ok := tryUnmarshal(m); ok {
			return obj, true
		}
	}

	return nil, false
}

func tryUnmarshal(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
