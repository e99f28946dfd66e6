package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

func TestGenericAgent_UnresolvedTemplateGuard(t *testing.T) {
	a := NewGenericAgent(nil)
	task := domain.TaskRow{Payload: map[string]any{"prompt": "{{goal}}"}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationFailed, out.Kind)
}

func TestGenericAgent_CannedOutputForKnownTaskName(t *testing.T) {
	a := NewGenericAgent(nil)
	task := domain.TaskRow{ID: "t1", Name: "Fetch_Data", Payload: map[string]any{}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, `{"status":"fetched","records":0}`, out.Result["text"])
	require.Equal(t, "application/json", out.Artifact.ContentType)
	require.IsType(t, map[string]any{}, out.Result["result"])
}

func TestGenericAgent_UnknownTaskNameWithoutPromptProducesPlaceholder(t *testing.T) {
	a := NewGenericAgent(nil)
	task := domain.TaskRow{ID: "t2", Name: "mystery_task", Payload: map[string]any{}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, "text/plain", out.Artifact.ContentType)
	require.Contains(t, out.Result["text"], "mystery_task")
}

func TestGenericAgent_PromptCallsAIAndParsesJSON(t *testing.T) {
	ai := &stubAIClient{out: `{"answer": 42}`}
	a := NewGenericAgent(ai)
	task := domain.TaskRow{ID: "t3", Name: "ask", Payload: map[string]any{"prompt": "what is the answer?"}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, map[string]any{"answer": float64(42)}, out.Result["result"])
}

func TestGenericAgent_ContextIsCapped(t *testing.T) {
	longCtx := make([]byte, genericContextCap+500)
	for i := range longCtx {
		longCtx[i] = 'x'
	}
	var capturedPrompt string
	ai := &capturingAIClient{onGenerate: func(prompt string) { capturedPrompt = prompt }}
	a := NewGenericAgent(ai)
	task := domain.TaskRow{ID: "t4", Name: "ask", Payload: map[string]any{
		"instruction": "summarize",
		"context":     string(longCtx),
	}}
	_, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.LessOrEqual(t, len(capturedPrompt), genericContextCap+200)
}

func TestGenericAgent_PromptWithoutAIClientIsExecutionError(t *testing.T) {
	a := NewGenericAgent(nil)
	task := domain.TaskRow{ID: "t5", Name: "ask", Payload: map[string]any{"prompt": "hi"}}
	_, err := a.Run(context.Background(), task)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrAgentExecution)
}

func TestGenericAgent_AIFailureIsExecutionError(t *testing.T) {
	ai := &stubAIClient{err: errors.New("upstream down")}
	a := NewGenericAgent(ai)
	task := domain.TaskRow{ID: "t6", Name: "ask", Payload: map[string]any{"prompt": "hi"}}
	_, err := a.Run(context.Background(), task)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrAgentExecution)
}

type capturingAIClient struct {
	onGenerate func(prompt string)
}

func (c *capturingAIClient) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	c.onGenerate(prompt)
	return "ok", nil
}
