package agent

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

var chartRoleKeywords = []struct {
	keyword string
	role    string
}{
	{"latency", "latency_p95"},
	{"throughput", "throughput"},
	{"errors", "error_rate"},
	{"response_time", "latency_p95"},
	{"requests_per_sec", "throughput"},
	{"error_percentage", "error_rate"},
}

// ChartAgent renders a PNG chart (bar, line, scatter, area, pie, or
// histogram) from structured or inferred payload data. AI is only
// consulted when payload["allow_synthetic"] is true and strict
// resolution fails for lack of data; it may be nil otherwise.
type ChartAgent struct {
	AI domain.AIClient
}

func NewChartAgent(aiClient domain.AIClient) *ChartAgent { return &ChartAgent{AI: aiClient} }

func (a *ChartAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	if hasUnresolvedTemplates(task.Payload) {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "payload contains unresolved templates"}, nil
	}

	spec, err := resolveChartSpec(task.Payload)
	if err != nil {
		if allowSynthetic, _ := task.Payload["allow_synthetic"].(bool); allowSynthetic {
			spec, err = synthesizeChartData(ctx, a.AI, task.Payload)
		}
	}
	if err != nil {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: err.Error()}, nil
	}

	png, err := renderChart(spec)
	if err != nil {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: fmt.Sprintf("chart render failed: %v", err)}, nil
	}

	role := chartRole(task.Payload, spec)
	dataPoints := len(spec.Y)
	if spec.ChartType == "pie" {
		dataPoints = len(spec.Values)
	} else if spec.ChartType == "histogram" {
		dataPoints = len(spec.Values)
	}

	description := fmt.Sprintf("%s chart %q with %d data point(s)", spec.ChartType, spec.Title, dataPoints)

	result := map[string]any{
		"role":        role,
		"chart_type":  spec.ChartType,
		"data_points": dataPoints,
		"description": description,
	}
	artifact := &domain.ArtifactUpload{
		Type:        domain.ArtifactPNG,
		Filename:    task.ID + ".png",
		ContentType: "image/png",
		Bytes:       png,
		Role:        role,
		Metadata: map[string]any{
			"chart_type":  spec.ChartType,
			"data_points": dataPoints,
		},
	}
	return Outcome{Kind: OutcomeSuccess, Result: result, Artifact: artifact}, nil
}

type chartSpec struct {
	Title     string
	ChartType string
	X         []float64
	XLabels   []string
	Y         []float64
	Labels    []string
	Values    []float64
	XLabel    string
	YLabel    string
	Role      string
}

// resolveChartSpec implements the structured/inferred/auto-select/
// validate pipeline from the spec.
func resolveChartSpec(payload map[string]any) (chartSpec, error) {
	spec := chartSpec{Title: stringOr(payload["title"], "Chart")}
	spec.ChartType, _ = asString(payload["type"])
	spec.XLabel, _ = asString(payload["x_label"])
	spec.YLabel, _ = asString(payload["y_label"])
	spec.Role, _ = asString(payload["role"])

	spec.Y = floatSlice(payload["y"])
	spec.Values = floatSlice(payload["values"])
	spec.Labels = stringSlice(payload["labels"])
	spec.X, spec.XLabels = splitXValues(payload["x"])

	if len(spec.Y) == 0 && len(spec.Values) == 0 && len(spec.X) == 0 && len(spec.XLabels) == 0 {
		if err := inferChartData(&spec, payload); err != nil {
			return chartSpec{}, err
		}
	}

	if spec.ChartType == "" {
		spec.ChartType = autoSelectType(spec)
	}

	// A bar chart described via labels+values (the auto-selection shape)
	// is equivalent to one described via categorical x+y; normalize so
	// validation and rendering only need to handle x/y.
	if spec.ChartType == "bar" && len(spec.Y) == 0 && len(spec.XLabels) == 0 &&
		len(spec.Labels) > 0 && len(spec.Values) > 0 {
		spec.XLabels = spec.Labels
		spec.Y = spec.Values
	}

	if err := validateChartSpec(spec); err != nil {
		return chartSpec{}, err
	}
	return spec, nil
}

func inferChartData(spec *chartSpec, payload map[string]any) error {
	raw, ok := payload["data"]
	if !ok {
		for _, key := range []string{"text", "goal", "prompt"} {
			if s, ok := asString(payload[key]); ok && s != "" {
				raw = s
				break
			}
		}
	}
	if raw == nil {
		return fmt.Errorf("insufficient data to render a chart")
	}

	switch v := raw.(type) {
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			return inferChartDataFromValue(spec, decoded)
		}
		return inferChartDataFromCSV(spec, v)
	default:
		return inferChartDataFromValue(spec, v)
	}
}

func inferChartDataFromValue(spec *chartSpec, v any) error {
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("unsupported chart data shape")
	}

	var xs []string
	var ys []float64
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		xs = append(xs, firstStringField(m))
		for _, f := range analyzerPreferredFields {
			if n, ok := asFloat(m[f]); ok {
				ys = append(ys, n)
				break
			}
		}
	}
	spec.XLabels = xs
	spec.Y = ys
	return nil
}

// firstStringField picks a deterministic x-axis label from a row by
// scanning its keys in sorted order for the first string value.
func firstStringField(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := asString(m[k]); ok {
			return s
		}
	}
	return ""
}

func inferChartDataFromCSV(spec *chartSpec, text string) error {
	r := csv.NewReader(strings.NewReader(text))
	records, err := r.ReadAll()
	if err != nil || len(records) < 2 {
		return fmt.Errorf("insufficient data to render a chart")
	}
	var xs []string
	var ys []float64
	for _, row := range records[1:] {
		if len(row) < 2 {
			continue
		}
		xs = append(xs, row[0])
		if n, err := strconv.ParseFloat(row[1], 64); err == nil {
			ys = append(ys, n)
		}
	}
	spec.XLabels = xs
	spec.Y = ys
	return nil
}

func autoSelectType(spec chartSpec) string {
	switch {
	case len(spec.Labels) > 0 && len(spec.Values) == len(spec.Labels) && len(spec.Labels) > 0:
		return "bar"
	case len(spec.Values) > 0 && len(spec.Y) == 0:
		return "histogram"
	case len(spec.X) > 0 && len(spec.Y) > 0 && len(spec.X) == len(spec.Y):
		return "line"
	default:
		return "bar"
	}
}

func validateChartSpec(spec chartSpec) error {
	switch spec.ChartType {
	case "pie":
		if len(spec.Labels) == 0 || len(spec.Values) == 0 || len(spec.Labels) != len(spec.Values) {
			return fmt.Errorf("pie chart requires equal-length non-empty labels and values")
		}
	case "histogram":
		if len(spec.Values) == 0 {
			return fmt.Errorf("histogram requires non-empty numeric values")
		}
	case "bar":
		if len(spec.Y) == 0 {
			return fmt.Errorf("bar chart requires non-empty numeric y")
		}
		if len(spec.X) > 0 && len(spec.X) != len(spec.Y) {
			return fmt.Errorf("bar chart numeric x must match y length")
		}
		if len(spec.X) == 0 && len(spec.XLabels) > 0 && len(spec.XLabels) != len(spec.Y) {
			return fmt.Errorf("bar chart categorical x must match y length")
		}
	case "line", "scatter", "area":
		if len(spec.X) == 0 || len(spec.Y) == 0 || len(spec.X) != len(spec.Y) {
			return fmt.Errorf("%s chart requires non-empty equal-length numeric x and y", spec.ChartType)
		}
	default:
		return fmt.Errorf("unsupported chart type %q", spec.ChartType)
	}
	return nil
}

func chartRole(payload map[string]any, spec chartSpec) string {
	if role, ok := asString(payload["role"]); ok && role != "" {
		return role
	}
	haystack := strings.ToLower(spec.Title + " " + spec.ChartType)
	for _, kw := range chartRoleKeywords {
		if strings.Contains(haystack, kw.keyword) {
			return kw.role
		}
	}
	return "chart"
}

func renderChart(spec chartSpec) ([]byte, error) {
	var c chart.Chart

	switch spec.ChartType {
	case "pie":
		return renderPieChart(spec)
	case "histogram":
		return renderHistogram(spec)
	case "bar":
		bars := make([]chart.Value, len(spec.Y))
		for i, y := range spec.Y {
			bars[i] = chart.Value{Value: y}
			if i < len(spec.XLabels) {
				bars[i].Label = spec.XLabels[i]
			}
		}
		bc := chart.BarChart{Title: spec.Title, Bars: bars}
		buf := bytes.NewBuffer(nil)
		if err := bc.Render(chart.PNG, buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		series := chart.ContinuousSeries{
			Name:    spec.Title,
			XValues: xAxisValues(spec),
			YValues: spec.Y,
		}
		c = chart.Chart{
			Title:  spec.Title,
			Series: []chart.Series{series},
		}
		if spec.XLabel != "" {
			c.XAxis = chart.XAxis{Name: spec.XLabel}
		}
		if spec.YLabel != "" {
			c.YAxis = chart.YAxis{Name: spec.YLabel}
		}
	}

	buf := bytes.NewBuffer(nil)
	if err := c.Render(chart.PNG, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPieChart(spec chartSpec) ([]byte, error) {
	values := make([]chart.Value, len(spec.Values))
	for i, v := range spec.Values {
		label := ""
		if i < len(spec.Labels) {
			label = spec.Labels[i]
		}
		values[i] = chart.Value{Value: v, Label: label}
	}
	c := chart.PieChart{Title: spec.Title, Values: values}
	buf := bytes.NewBuffer(nil)
	if err := c.Render(chart.PNG, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderHistogram approximates a histogram with a bucketed bar chart,
// since go-chart/v2 has no native histogram series type.
func renderHistogram(spec chartSpec) ([]byte, error) {
	buckets := bucketize(spec.Values, 10)
	bars := make([]chart.Value, len(buckets))
	for i, b := range buckets {
		bars[i] = chart.Value{Value: float64(b.count), Label: b.label}
	}
	c := chart.BarChart{
		Title: spec.Title,
		Bars:  bars,
	}
	buf := bytes.NewBuffer(nil)
	if err := c.Render(chart.PNG, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type histogramBucket struct {
	label string
	count int
}

func bucketize(values []float64, numBuckets int) []histogramBucket {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	width := (hi - lo) / float64(numBuckets)
	if width == 0 {
		return []histogramBucket{{label: fmt.Sprintf("%.2f", lo), count: len(values)}}
	}

	buckets := make([]histogramBucket, numBuckets)
	for i := range buckets {
		start := lo + float64(i)*width
		buckets[i].label = fmt.Sprintf("%.1f", start)
	}
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= numBuckets {
			idx = numBuckets - 1
		}
		buckets[idx].count++
	}
	return buckets
}

func xAxisValues(spec chartSpec) []float64 {
	if len(spec.X) > 0 {
		return spec.X
	}
	xs := make([]float64, len(spec.XLabels))
	for i := range spec.XLabels {
		xs[i] = float64(i)
	}
	return xs
}

func splitXValues(raw any) ([]float64, []string) {
	list, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	var numeric []float64
	var labels []string
	allNumeric := true
	for _, v := range list {
		if f, ok := asFloat(v); ok {
			numeric = append(numeric, f)
			labels = append(labels, strconv.FormatFloat(f, 'f', -1, 64))
		} else if s, ok := asString(v); ok {
			allNumeric = false
			labels = append(labels, s)
		}
	}
	if allNumeric {
		return numeric, nil
	}
	return nil, labels
}

func floatSlice(raw any) []float64 {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(list))
	for _, v := range list {
		if f, ok := asFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

func stringSlice(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := asString(v); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringOr(raw any, fallback string) string {
	if s, ok := asString(raw); ok && s != "" {
		return s
	}
	return fallback
}

var _ Agent = (*ChartAgent)(nil)
