package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairyhunter13/taskexec-worker/internal/adapter/ai"
	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

const genericContextCap = 3000

// cannedOutputs is the closed table of canned results for task names the
// generic executor recognizes without an AI call.
var cannedOutputs = map[string]string{
	"fetch_data":      `{"status":"fetched","records":0}`,
	"process_data":    `{"status":"processed"}`,
	"generate_report": "Report generated.",
}

// GenericAgent handles any agent_type not matched by a dedicated
// executor: it calls the AI when the payload carries a prompt or
// instruction, and otherwise falls back to a tiny canned-output table
// keyed by task name.
type GenericAgent struct {
	AI domain.AIClient
}

func NewGenericAgent(aiClient domain.AIClient) *GenericAgent {
	return &GenericAgent{AI: aiClient}
}

func (a *GenericAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	if hasUnresolvedTemplates(task.Payload) {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "payload contains unresolved templates"}, nil
	}

	text, parsed, err := a.produce(ctx, task)
	if err != nil {
		return Outcome{}, fmt.Errorf("op=generic_run task=%s: %w: %w", task.Name, domain.ErrAgentExecution, err)
	}

	contentType := "text/plain"
	if len(text) > 0 && (text[0] == '{' || text[0] == '[') {
		contentType = "application/json"
	}

	result := map[string]any{"text": text}
	if parsed != nil {
		result["result"] = parsed
	} else {
		result["result"] = text
	}

	artifact := &domain.ArtifactUpload{
		Type:        domain.ArtifactText,
		Filename:    task.ID + ".txt",
		ContentType: contentType,
		Bytes:       []byte(text),
		Role:        "generic_output",
	}
	return Outcome{Kind: OutcomeSuccess, Result: result, Artifact: artifact}, nil
}

// produce returns the raw text output and, when it parses as JSON, the
// decoded value too.
func (a *GenericAgent) produce(ctx context.Context, task domain.TaskRow) (string, map[string]any, error) {
	prompt, hasPrompt := asString(task.Payload["prompt"])
	instruction, hasInstruction := asString(task.Payload["instruction"])
	if (hasPrompt && prompt != "") || (hasInstruction && instruction != "") {
		return a.generate(ctx, task, prompt, instruction)
	}

	out, ok := cannedOutputs[strings.ToLower(task.Name)]
	if !ok {
		out = fmt.Sprintf("No handler for task %q; nothing to do.", task.Name)
	}
	if obj, ok := ai.ExtractJSON(out); ok {
		return out, obj, nil
	}
	return out, nil, nil
}

func (a *GenericAgent) generate(ctx context.Context, task domain.TaskRow, prompt, instruction string) (string, map[string]any, error) {
	if a.AI == nil {
		return "", nil, fmt.Errorf("generic executor requires an AI client for task %q", task.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Name)
	if prompt != "" {
		fmt.Fprintf(&b, "Prompt: %s\n", prompt)
	}
	if instruction != "" {
		fmt.Fprintf(&b, "Instruction: %s\n", instruction)
	}
	if ctxVal, ok := asString(task.Payload["context"]); ok && ctxVal != "" {
		if len(ctxVal) > genericContextCap {
			ctxVal = ctxVal[:genericContextCap]
		}
		fmt.Fprintf(&b, "Context: %s\n", ctxVal)
	}

	out, err := a.AI.Generate(ctx, b.String(), domain.GenerateOptions{TaskType: "generic"})
	if err != nil {
		return "", nil, fmt.Errorf("generic ai call: %w", err)
	}
	if obj, ok := ai.ExtractJSON(out); ok {
		return out, obj, nil
	}
	return out, nil, nil
}

var _ Agent = (*GenericAgent)(nil)
