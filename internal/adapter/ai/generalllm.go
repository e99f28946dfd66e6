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

const generalLLMBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// generalLLMProvider is a general-purpose, Gemini-shaped provider,
// called over its REST generateContent endpoint.
type generalLLMProvider struct {
	apiKey string
	model  string
	http   *http.Client
	limit  *rateLimiter
}

func newGeneralLLMProvider(apiKey, model string) *generalLLMProvider {
	return &generalLLMProvider{
		apiKey: apiKey,
		model:  model,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limit: newRateLimiter(time.Second),
	}
}

func (p *generalLLMProvider) name() string { return "general_llm" }

type generateContentRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *generalLLMProvider) generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("op=general_llm_generate: %w: client not configured", domain.ErrAgentExecution)
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

		body, err := json.Marshal(generateContentRequest{
			Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
			GenerationConfig: geminiGenerationConfig{
				Temperature:     temperature,
				MaxOutputTokens: maxTokens,
			},
		})
		if err != nil {
			return "", fmt.Errorf("op=general_llm_generate: encode request: %w", err)
		}

		url := fmt.Sprintf("%s/%s:generateContent?key=%s", generalLLMBaseURL, p.model, p.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("op=general_llm_generate: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("op=general_llm_generate: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("general_llm rate limited: status=429")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("general_llm generation failed: status=%d", resp.StatusCode)
		}

		var out generateContentResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("op=general_llm_generate: decode response: %w", err)
		}
		if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("general_llm empty response")
		}

		content := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
		if content == "" {
			return "", fmt.Errorf("general_llm empty response")
		}
		return content, nil
	})
}

var _ provider = (*generalLLMProvider)(nil)
