package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

const summarizerMaxInputChars = 6000

var sentenceSplitPattern = regexp.MustCompile(`[.!?]+`)

// SummarizerAgent produces a constrained-length summary of input text,
// preferring the AI helper and falling back to an extractive strategy.
type SummarizerAgent struct {
	AI domain.AIClient
}

func NewSummarizerAgent(ai domain.AIClient) *SummarizerAgent {
	return &SummarizerAgent{AI: ai}
}

func (a *SummarizerAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	text, ok := asString(task.Payload["text"])
	if !ok || strings.TrimSpace(text) == "" {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "text is required"}, nil
	}

	maxSentences := 3
	if v, ok := asFloat(task.Payload["max_sentences"]); ok && v > 0 {
		maxSentences = int(v)
	}
	sentenceBudget := maxSentences
	if v, ok := asFloat(task.Payload["max_words"]); ok && v > 0 {
		sentenceBudget = int(v) / 20
		if sentenceBudget < 1 {
			sentenceBudget = 1
		}
	}

	original := text
	if len(text) > summarizerMaxInputChars {
		text = text[:summarizerMaxInputChars]
	}

	summary := a.aiSummarize(ctx, text, sentenceBudget)
	if summary == "" {
		summary = extractiveSummary(text, sentenceBudget)
	}

	result := map[string]any{
		"summary":         summary,
		"original_length": len(original),
	}
	return Outcome{Kind: OutcomeSuccess, Result: result}, nil
}

func (a *SummarizerAgent) aiSummarize(ctx context.Context, text string, sentenceBudget int) string {
	if a.AI == nil {
		return ""
	}
	prompt := fmt.Sprintf("Summarize the following text in at most %d sentences:\n\n%s", sentenceBudget, text)
	out, err := a.AI.Generate(ctx, prompt, domain.GenerateOptions{TaskType: "summarizer"})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// extractiveSummary splits on sentence terminators and takes the first
// n sentences, the fallback used when the AI helper is unavailable.
func extractiveSummary(text string, n int) string {
	parts := sentenceSplitPattern.Split(text, -1)
	var sentences []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	return strings.Join(sentences, ". ")
}

var _ Agent = (*SummarizerAgent)(nil)
