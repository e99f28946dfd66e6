package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

var analyzerPreferredFields = []string{"score", "value", "amount", "sales"}

// AnalyzerAgent computes descriptive statistics or a deterministic trend
// label over a numeric series, plus an AI-generated insight.
type AnalyzerAgent struct {
	AI domain.AIClient
}

func NewAnalyzerAgent(ai domain.AIClient) *AnalyzerAgent {
	return &AnalyzerAgent{AI: ai}
}

func (a *AnalyzerAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	if text, ok := asString(task.Payload["text"]); ok && text != "" {
		if _, hasData := task.Payload["data"]; !hasData {
			return a.textAnalysis(ctx, text)
		}
	}

	series, err := extractNumericSeries(task.Payload["data"])
	if err != nil || len(series) == 0 {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "data must be a numeric sequence, JSON string, or list of objects with a numeric field"}, nil
	}

	analysisType, _ := asString(task.Payload["analysis_type"])

	var insights string
	if analysisType == "trend" {
		insights = trendLabel(series)
	} else {
		insights = a.aiInsight(ctx, series)
	}

	stats := computeStats(series)
	result := map[string]any{
		"stats":    stats,
		"insights": insights,
	}
	return Outcome{Kind: OutcomeSuccess, Result: result}, nil
}

func (a *AnalyzerAgent) textAnalysis(ctx context.Context, text string) (Outcome, error) {
	insights := "AI analysis unavailable"
	if a.AI != nil {
		prompt := "Provide a brief analysis (2-3 sentences) of the following text:\n\n" + text
		if out, err := a.AI.Generate(ctx, prompt, domain.GenerateOptions{TaskType: "text_analysis"}); err == nil && strings.TrimSpace(out) != "" {
			insights = strings.TrimSpace(out)
		}
	}
	result := map[string]any{
		"stats":    map[string]any{},
		"insights": insights,
	}
	return Outcome{Kind: OutcomeSuccess, Result: result}, nil
}

func (a *AnalyzerAgent) aiInsight(ctx context.Context, series []float64) string {
	if a.AI == nil {
		return "AI analysis unavailable"
	}
	stats := computeStats(series)
	b, _ := json.Marshal(stats)
	prompt := fmt.Sprintf("Given these statistics: %s, provide a 2-3 sentence insight.", string(b))
	out, err := a.AI.Generate(ctx, prompt, domain.GenerateOptions{TaskType: "analyzer_insight"})
	if err != nil || strings.TrimSpace(out) == "" {
		return "AI analysis unavailable"
	}
	return strings.TrimSpace(out)
}

type analyzerStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func computeStats(series []float64) analyzerStats {
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(len(series))

	var median float64
	n := len(sorted)
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	return analyzerStats{
		Count:  len(series),
		Mean:   mean,
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

// trendLabel derives "increasing"/"decreasing"/"mixed" from a simple
// sign-of-slope comparison between the first and second half averages.
func trendLabel(series []float64) string {
	if len(series) < 2 {
		return "mixed"
	}
	mid := len(series) / 2
	firstAvg, secondAvg := average(series[:mid]), average(series[mid:])
	const epsilon = 1e-9
	switch {
	case secondAvg-firstAvg > epsilon:
		return "increasing"
	case firstAvg-secondAvg > epsilon:
		return "decreasing"
	default:
		return "mixed"
	}
}

func average(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// extractNumericSeries accepts a numeric sequence, a JSON-string
// encoding one, or a list of objects from which a numeric column is
// extracted by preferred field name.
func extractNumericSeries(raw any) ([]float64, error) {
	switch v := raw.(type) {
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, err
		}
		return extractNumericSeries(decoded)
	case []any:
		return seriesFromList(v)
	default:
		return nil, fmt.Errorf("unsupported data shape")
	}
}

func seriesFromList(items []any) ([]float64, error) {
	var series []float64
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			series = append(series, v)
		case map[string]any:
			for _, field := range analyzerPreferredFields {
				if f, ok := asFloat(v[field]); ok {
					series = append(series, f)
					break
				}
			}
		}
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no numeric values found")
	}
	return series, nil
}

var _ Agent = (*AnalyzerAgent)(nil)
