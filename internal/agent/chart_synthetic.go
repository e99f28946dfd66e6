package agent

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/taskexec-worker/internal/adapter/ai"
	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// synthesizeChartData asks the AI helper to fabricate a plausible x/y
// series for a chart whose payload carries no usable data. It is only
// ever invoked behind the payload["allow_synthetic"] == true flag; the
// strict variant (resolveChartSpec) never calls it.
func synthesizeChartData(ctx context.Context, aiClient domain.AIClient, payload map[string]any) (chartSpec, error) {
	if aiClient == nil {
		return chartSpec{}, fmt.Errorf("synthetic chart data requires an AI client")
	}

	title := stringOr(payload["title"], "Chart")
	chartType, _ := asString(payload["type"])
	if chartType == "" {
		chartType = "bar"
	}

	prompt := fmt.Sprintf(
		"Invent a plausible small dataset for a %s chart titled %q. "+
			"Return JSON only, no explanation, shaped as "+
			`{"labels": [...string], "values": [...number]}`+
			" with 3 to 6 points.",
		chartType, title,
	)
	out, err := aiClient.Generate(ctx, prompt, domain.GenerateOptions{TaskType: "chart_synthetic"})
	if err != nil {
		return chartSpec{}, fmt.Errorf("synthesize chart data: %w", err)
	}

	obj, ok := ai.ExtractJSON(out)
	if !ok {
		return chartSpec{}, fmt.Errorf("AI did not return usable synthetic chart data")
	}

	spec := chartSpec{
		Title:     title,
		ChartType: chartType,
		Labels:    stringSlice(obj["labels"]),
		Values:    floatSlice(obj["values"]),
	}
	if spec.ChartType == "bar" || spec.ChartType == "" {
		spec.XLabels = spec.Labels
		spec.Y = spec.Values
		if spec.ChartType == "" {
			spec.ChartType = "bar"
		}
	}
	if err := validateChartSpec(spec); err != nil {
		return chartSpec{}, fmt.Errorf("synthetic chart data failed validation: %w", err)
	}
	return spec, nil
}
