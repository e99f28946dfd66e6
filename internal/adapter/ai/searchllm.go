package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

const searchLLMBaseURL = "https://api.perplexity.ai"

// searchLLMProvider is a search-augmented, Perplexity-shaped provider:
// OpenAI-compatible chat completions against a fixed sonar-pro model.
type searchLLMProvider struct {
	apiKey string
	http   *http.Client
	limit  *rateLimiter
}

func newSearchLLMProvider(apiKey string) *searchLLMProvider {
	return &searchLLMProvider{
		apiKey: apiKey,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limit: newRateLimiter(time.Second),
	}
}

func (p *searchLLMProvider) name() string { return "search_llm" }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *searchLLMProvider) generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("op=search_llm_generate: %w: client not configured", domain.ErrAgentExecution)
	}

	return withRateLimitRetry(ctx, func() (string, error) {
		if err := p.limit.wait(ctx); err != nil {
			return "", err
		}

		body, err := json.Marshal(chatCompletionRequest{
			Model:    "sonar-pro",
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		})
		if err != nil {
			return "", fmt.Errorf("op=search_llm_generate: encode request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchLLMBaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("op=search_llm_generate: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("op=search_llm_generate: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("search_llm rate limited: status=429")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("search_llm generation failed: status=%d", resp.StatusCode)
		}

		var out chatCompletionResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("op=search_llm_generate: decode response: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", fmt.Errorf("search_llm empty response")
		}

		content := strings.TrimSpace(out.Choices[0].Message.Content)
		if content == "" {
			return "", fmt.Errorf("search_llm empty response")
		}
		return content, nil
	})
}

var _ provider = (*searchLLMProvider)(nil)
