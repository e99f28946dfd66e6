package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

const scraperUserAgent = "Mozilla/5.0 (compatible; task-executor-worker/1.0; +https://example.invalid/bot)"

// ScraperAgent fetches a URL, extracts text via an optional CSS
// selector or a paragraph heuristic, and produces a best-effort AI
// summary.
type ScraperAgent struct {
	AI     domain.AIClient
	Client *http.Client
}

// NewScraperAgent builds a ScraperAgent with a 10s-timeout HTTP client.
func NewScraperAgent(ai domain.AIClient) *ScraperAgent {
	return &ScraperAgent{AI: ai, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (a *ScraperAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	url, ok := asString(task.Payload["url"])
	if !ok || url == "" {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "url is required"}, nil
	}
	selector, _ := asString(task.Payload["selector"])

	items, text, err := a.fetchAndExtract(ctx, url, selector)
	if err != nil {
		// fetch/parse failure is terminal for this task, not a retryable
		// execution error: call fail, not complete (spec status=failed).
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: fmt.Sprintf("status=failed url=%s: %v", url, err)}, nil
	}
	now := time.Now().UTC().Format(time.RFC3339)

	summary := a.summarize(ctx, text)

	sample := items
	if len(sample) > 10 {
		sample = sample[:10]
	}

	result := map[string]any{
		"url":          url,
		"selector":     selector,
		"items_found":  len(items),
		"sample_data":  sample,
		"text":         text,
		"ai_summary":   summary,
		"status":       "completed",
		"timestamp":    now,
	}
	return Outcome{Kind: OutcomeSuccess, Result: result}, nil
}

func (a *ScraperAgent) fetchAndExtract(ctx context.Context, url, selector string) ([]string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", err
	}

	var items []string
	if selector != "" {
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text != "" {
				items = append(items, text)
			}
			return len(items) < 30
		})
	} else {
		doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if len(text) > 30 {
				items = append(items, text)
			}
			return len(items) < 30
		})
		if len(items) == 0 {
			doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
				text := strings.TrimSpace(s.Text())
				if text != "" {
					items = append(items, text)
				}
				return len(items) < 20
			})
		}
	}

	return items, strings.Join(items, "\n"), nil
}

func (a *ScraperAgent) summarize(ctx context.Context, text string) string {
	if a.AI == nil || text == "" {
		return "AI analysis unavailable"
	}
	prompt := "Summarize the following scraped content in 2-3 sentences:\n\n" + text
	out, err := a.AI.Generate(ctx, prompt, domain.GenerateOptions{TaskType: "scraper_summary"})
	if err != nil || strings.TrimSpace(out) == "" {
		return "AI analysis unavailable"
	}
	return out
}

var _ Agent = (*ScraperAgent)(nil)
