package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// fieldRule is the internal, normalized shape of a validation rule.
type fieldRule struct {
	Required bool
	Type     string // "number" | "string" | ""
	Min      *float64
}

// ValidatorAgent validates a record (or list of records) against a set
// of per-field rules, accepting either the internal rule shape or a
// JSON-Schema-ish one that gets normalized first.
type ValidatorAgent struct {
	AI domain.AIClient
}

func NewValidatorAgent(ai domain.AIClient) *ValidatorAgent {
	return &ValidatorAgent{AI: ai}
}

func (a *ValidatorAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	data, ok := task.Payload["data"]
	if !ok {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "data is required"}, nil
	}
	rawRules, ok := task.Payload["rules"].(map[string]any)
	if !ok {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "rules is required"}, nil
	}

	rules := normalizeRules(rawRules)

	rows := asRows(data)
	errs := []string{}
	warnings := []string{}

	for i, row := range rows {
		for field, rule := range rules {
			v, present := row[field]
			if rule.Required && !present {
				errs = append(errs, fmt.Sprintf("row %d: missing required field %q", i, field))
				continue
			}
			if !present {
				continue
			}
			if rule.Type == "number" {
				if _, ok := asFloat(v); !ok {
					errs = append(errs, fmt.Sprintf("row %d: field %q must be a number", i, field))
					continue
				}
			}
			if rule.Type == "string" {
				if _, ok := asString(v); !ok {
					errs = append(errs, fmt.Sprintf("row %d: field %q must be a string", i, field))
					continue
				}
			}
			if rule.Min != nil {
				if n, ok := asFloat(v); ok && n < *rule.Min {
					warnings = append(warnings, fmt.Sprintf("row %d: field %q is below minimum %v", i, field, *rule.Min))
				}
			}
		}
	}

	result := map[string]any{
		"valid":          len(errs) == 0,
		"errors":         errs,
		"warnings":       warnings,
		"ai_validation":  a.aiCritique(ctx, rows, rules),
	}
	return Outcome{Kind: OutcomeSuccess, Result: result}, nil
}

func (a *ValidatorAgent) aiCritique(ctx context.Context, rows []map[string]any, rules map[string]fieldRule) string {
	if a.AI == nil {
		return "AI validation unavailable"
	}
	b, _ := json.Marshal(rows)
	rb, _ := json.Marshal(rules)
	prompt := fmt.Sprintf("Critique whether this data plausibly satisfies these rules. Data: %s Rules: %s", string(b), string(rb))
	out, err := a.AI.Generate(ctx, prompt, domain.GenerateOptions{TaskType: "validator_critique"})
	if err != nil || strings.TrimSpace(out) == "" {
		return "AI validation unavailable"
	}
	return strings.TrimSpace(out)
}

// asRows normalizes data into a list of row maps: a single object
// becomes a one-element list; a list of objects passes through.
func asRows(data any) []map[string]any {
	switch v := data.(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		var rows []map[string]any
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		return rows
	default:
		return nil
	}
}

// normalizeRules accepts either the internal {field: {required, type,
// min}} form or a JSON-Schema-ish {properties, required, items}
// form and returns the internal form either way (idempotent on
// already-internal input).
func normalizeRules(raw map[string]any) map[string]fieldRule {
	if props, ok := raw["properties"].(map[string]any); ok {
		return normalizeJSONSchemaRules(props, raw["required"])
	}
	if items, ok := raw["items"].(map[string]any); ok {
		if props, ok := items["properties"].(map[string]any); ok {
			return normalizeJSONSchemaRules(props, items["required"])
		}
	}

	rules := make(map[string]fieldRule, len(raw))
	for field, v := range raw {
		ruleMap, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rule := fieldRule{}
		if req, ok := ruleMap["required"].(bool); ok {
			rule.Required = req
		}
		if t, ok := asString(ruleMap["type"]); ok {
			rule.Type = t
		}
		if m, ok := asFloat(ruleMap["min"]); ok {
			rule.Min = &m
		}
		rules[field] = rule
	}
	return rules
}

func normalizeJSONSchemaRules(props map[string]any, requiredRaw any) map[string]fieldRule {
	required := map[string]bool{}
	if list, ok := requiredRaw.([]any); ok {
		for _, r := range list {
			if s, ok := asString(r); ok {
				required[s] = true
			}
		}
	}

	rules := make(map[string]fieldRule, len(props))
	for field, v := range props {
		schema, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rule := fieldRule{Required: required[field]}
		if t, ok := asString(schema["type"]); ok {
			switch t {
			case "integer", "number":
				rule.Type = "number"
			case "string":
				rule.Type = "string"
			}
		}
		if m, ok := asFloat(schema["minimum"]); ok {
			rule.Min = &m
		}
		rules[field] = rule
	}
	return rules
}

var _ Agent = (*ValidatorAgent)(nil)
