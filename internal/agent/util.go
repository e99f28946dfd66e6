package agent

import (
	"encoding/json"
	"regexp"
)

var unresolvedTemplatePattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// hasUnresolvedTemplates reports whether any {{...}} placeholder survives
// in the JSON-serialized payload, meaning the orchestrator's
// template-resolution layer could not fill it in.
func hasUnresolvedTemplates(payload map[string]any) bool {
	b, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	return unresolvedTemplatePattern.Match(b)
}

// isUnresolvedTemplateString reports whether s itself is (or still
// contains) an unresolved {{...}} placeholder.
func isUnresolvedTemplateString(s string) bool {
	return unresolvedTemplatePattern.MatchString(s)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
