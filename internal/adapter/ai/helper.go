package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
	"github.com/fairyhunter13/taskexec-worker/internal/observability"
)

// Config carries every AI_* environment setting needed to construct the
// three providers.
type Config struct {
	AIProvider string

	PerplexityAPIKey string

	SambanovaAPIKey  string
	SambanovaBaseURL string
	SambanovaModel   string

	GeminiAPIKey string
	GeminiModel  string
}

// Helper implements domain.AIClient by fanning a generate() call across
// the statically ordered provider list, falling through to the next
// provider on any non-rate-limit failure.
type Helper struct {
	cfg       Config
	providers []provider
}

// New builds a Helper and constructs all three providers immediately;
// there is no lazy, on-first-use construction. A provider missing its
// API key simply fails fast with ErrAgentExecution and is skipped by
// Generate's fallthrough.
func New(cfg Config) *Helper {
	search := newSearchLLMProvider(cfg.PerplexityAPIKey)
	openaiCompat := newOpenAICompatProvider(cfg.SambanovaAPIKey, cfg.SambanovaBaseURL, cfg.SambanovaModel)
	general := newGeneralLLMProvider(cfg.GeminiAPIKey, cfg.GeminiModel)

	ordered := []provider{search, openaiCompat, general}

	if cfg.AIProvider != "" {
		ordered = reorderPrimary(ordered, cfg.AIProvider)
	}

	return &Helper{cfg: cfg, providers: ordered}
}

// reorderPrimary moves the provider matching name (matched loosely
// against its provider name, e.g. "perplexity" -> "search_llm") to the
// front of the list, preserving the relative order of the rest.
func reorderPrimary(providers []provider, name string) []provider {
	name = strings.ToLower(name)
	alias := map[string]string{
		"perplexity": "search_llm",
		"sambanova":  "openai_compatible",
		"gemini":     "general_llm",
	}
	target := name
	if mapped, ok := alias[name]; ok {
		target = mapped
	}

	reordered := make([]provider, 0, len(providers))
	var primary provider
	for _, p := range providers {
		if p.name() == target {
			primary = p
			continue
		}
		reordered = append(reordered, p)
	}
	if primary != nil {
		reordered = append([]provider{primary}, reordered...)
	}
	return reordered
}

// Generate satisfies domain.AIClient by trying every provider in order
// until one returns non-empty content. It returns ErrAllProvidersFailed
// only when every provider in the list errored.
func (h *Helper) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	providers := h.providers
	if opts.PreferPrimary && len(providers) > 0 {
		// prefer_primary re-asserts the configured primary at the front,
		// matching the original helper's prefer_perplexity behavior.
		providers = reorderPrimary(providers, h.cfg.AIProvider)
	}

	var lastErr error
	for _, p := range providers {
		start := time.Now()
		out, err := p.generate(ctx, prompt, opts)
		observability.AIRequestDuration.WithLabelValues(p.name()).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.AIRequestsTotal.WithLabelValues(p.name(), "error").Inc()
			lastErr = err
			continue
		}
		observability.AIRequestsTotal.WithLabelValues(p.name(), "success").Inc()
		return out, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return "", fmt.Errorf("op=ai_generate: %w: %w", domain.ErrAllProvidersFailed, lastErr)
}

var _ domain.AIClient = (*Helper)(nil)
