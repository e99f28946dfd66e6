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

// openAICompatProvider is an OpenAI-compatible chat completions provider,
// SambaNova-shaped: configurable base URL and model.
type openAICompatProvider struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	limit   *rateLimiter
}

func newOpenAICompatProvider(apiKey, baseURL, model string) *openAICompatProvider {
	return &openAICompatProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limit: newRateLimiter(time.Second),
	}
}

func (p *openAICompatProvider) name() string { return "openai_compatible" }

func (p *openAICompatProvider) generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("op=openai_compatible_generate: %w: client not configured", domain.ErrAgentExecution)
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	return withRateLimitRetry(ctx, func() (string, error) {
		if err := p.limit.wait(ctx); err != nil {
			return "", err
		}

		body, err := json.Marshal(chatCompletionRequest{
			Model:       p.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("op=openai_compatible_generate: encode request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("op=openai_compatible_generate: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("op=openai_compatible_generate: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("openai_compatible rate limited: status=429")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("openai_compatible generation failed: status=%d", resp.StatusCode)
		}

		var out chatCompletionResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("op=openai_compatible_generate: decode response: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", fmt.Errorf("openai_compatible empty response")
		}

		content := strings.TrimSpace(out.Choices[0].Message.Content)
		if content == "" {
			return "", fmt.Errorf("openai_compatible empty response")
		}
		return content, nil
	})
}

var _ provider = (*openAICompatProvider)(nil)
