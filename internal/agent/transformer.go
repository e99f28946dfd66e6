package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/taskexec-worker/internal/adapter/ai"
	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// TransformerAgent applies a built-in or AI-driven transform to data.
type TransformerAgent struct {
	AI domain.AIClient
}

func NewTransformerAgent(aiClient domain.AIClient) *TransformerAgent {
	return &TransformerAgent{AI: aiClient}
}

func (a *TransformerAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	data, ok := task.Payload["data"]
	if !ok {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "data is required"}, nil
	}
	transform, ok := asString(task.Payload["transform"])
	if !ok || transform == "" {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "transform is required"}, nil
	}

	originalCount := countItems(data)

	var transformed any
	if instruction, isAI := strings.CutPrefix(transform, "ai:"); isAI {
		transformed = a.aiTransform(ctx, data, instruction)
	} else {
		transformed = builtinTransform(data, transform)
	}

	result := map[string]any{
		"transformed":    transformed,
		"result":         transformed,
		"original_count": originalCount,
	}
	return Outcome{Kind: OutcomeSuccess, Result: result}, nil
}

func countItems(data any) int {
	switch v := data.(type) {
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	case string:
		return 1
	default:
		return 0
	}
}

func builtinTransform(data any, transform string) any {
	list, ok := data.([]any)
	if !ok {
		return data
	}
	switch transform {
	case "uppercase":
		return mapStrings(list, strings.ToUpper)
	case "lowercase":
		return mapStrings(list, strings.ToLower)
	case "reverse":
		out := make([]any, len(list))
		for i, v := range list {
			out[len(list)-1-i] = v
		}
		return out
	case "unique":
		return uniqueStable(list)
	default:
		return data
	}
}

func mapStrings(list []any, f func(string) string) []any {
	out := make([]any, len(list))
	for i, v := range list {
		if s, ok := v.(string); ok {
			out[i] = f(s)
		} else {
			out[i] = v
		}
	}
	return out
}

func uniqueStable(list []any) []any {
	seen := make(map[string]bool, len(list))
	out := make([]any, 0, len(list))
	for _, v := range list {
		key := uniqueKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// uniqueKey serializes v to JSON for use as a dedup key, since list
// elements may be maps or lists (unhashable as a Go map key directly).
func uniqueKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// aiTransform invokes the AI with an explicit JSON-only contract and
// falls back to passing the input through untouched on any failure.
func (a *TransformerAgent) aiTransform(ctx context.Context, data any, instruction string) any {
	if a.AI == nil {
		return data
	}
	prompt := fmt.Sprintf(
		"Apply this transform instruction to the data and return JSON only, no explanation.\nInstruction: %s\nData: %v",
		instruction, data,
	)
	out, err := a.AI.Generate(ctx, prompt, domain.GenerateOptions{TaskType: "transformer"})
	if err != nil {
		return data
	}
	obj, ok := ai.ExtractJSON(out)
	if !ok {
		return data
	}
	return obj
}

var _ Agent = (*TransformerAgent)(nil)
