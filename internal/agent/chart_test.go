package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

func TestChartAgent_UnresolvedTemplateGuard(t *testing.T) {
	a := NewChartAgent(nil)
	task := domain.TaskRow{ID: "t1", Payload: map[string]any{"title": "{{goal}}"}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationFailed, out.Kind)
}

func TestChartAgent_ExplicitBarChart(t *testing.T) {
	a := NewChartAgent(nil)
	task := domain.TaskRow{
		ID: "t2",
		Payload: map[string]any{
			"title":  "Sales",
			"type":   "bar",
			"labels": []any{"Jan", "Feb"},
			"y":      []any{1.0, 2.0},
		},
	}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.NotNil(t, out.Artifact)
	require.Equal(t, domain.ArtifactPNG, out.Artifact.Type)
	require.Equal(t, "t2.png", out.Artifact.Filename)
	require.Equal(t, "bar", out.Result["chart_type"])
	require.Equal(t, 2, out.Result["data_points"])
}

func TestChartAgent_PieChart(t *testing.T) {
	a := NewChartAgent(nil)
	task := domain.TaskRow{
		ID: "t3",
		Payload: map[string]any{
			"type":   "pie",
			"labels": []any{"a", "b", "c"},
			"values": []any{1.0, 2.0, 3.0},
		},
	}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, 3, out.Result["data_points"])
}

func TestChartAgent_PieChart_MismatchedLengthsFails(t *testing.T) {
	a := NewChartAgent(nil)
	task := domain.TaskRow{
		ID: "t4",
		Payload: map[string]any{
			"type":   "pie",
			"labels": []any{"a", "b"},
			"values": []any{1.0, 2.0, 3.0},
		},
	}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationFailed, out.Kind)
}

func TestChartAgent_HistogramFromValues(t *testing.T) {
	a := NewChartAgent(nil)
	task := domain.TaskRow{
		ID: "t5",
		Payload: map[string]any{
			"type":   "histogram",
			"values": []any{1.0, 2.0, 3.0, 10.0, 11.0},
		},
	}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, "histogram", out.Result["chart_type"])
}

func TestChartAgent_AutoSelectLine(t *testing.T) {
	a := NewChartAgent(nil)
	task := domain.TaskRow{
		ID: "t6",
		Payload: map[string]any{
			"x": []any{1.0, 2.0, 3.0},
			"y": []any{10.0, 20.0, 30.0},
		},
	}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, "line", out.Result["chart_type"])
}

func TestChartAgent_InferredFromCSVText(t *testing.T) {
	a := NewChartAgent(nil)
	task := domain.TaskRow{
		ID: "t7",
		Payload: map[string]any{
			"title": "Inferred",
			"text":  "month,total\nJan,5\nFeb,7\n",
		},
	}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, 2, out.Result["data_points"])
}

func TestChartAgent_InsufficientDataFails(t *testing.T) {
	a := NewChartAgent(nil)
	task := domain.TaskRow{ID: "t8", Payload: map[string]any{}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationFailed, out.Kind)
}

func TestChartRole_ExplicitBeatsKeyword(t *testing.T) {
	spec := chartSpec{Title: "latency overview", ChartType: "line"}
	role := chartRole(map[string]any{"role": "custom"}, spec)
	require.Equal(t, "custom", role)
}

func TestChartRole_KeywordMatch(t *testing.T) {
	spec := chartSpec{Title: "latency overview", ChartType: "line"}
	role := chartRole(map[string]any{}, spec)
	require.Equal(t, "latency_p95", role)
}

func TestChartRole_DefaultsToChart(t *testing.T) {
	spec := chartSpec{Title: "Sales", ChartType: "bar"}
	role := chartRole(map[string]any{}, spec)
	require.Equal(t, "chart", role)
}

type stubAIClient struct {
	out string
	err error
}

func (s *stubAIClient) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	return s.out, s.err
}

func TestChartAgent_SyntheticDataWhenAllowed(t *testing.T) {
	ai := &stubAIClient{out: `{"labels": ["a", "b", "c"], "values": [1, 2, 3]}`}
	a := NewChartAgent(ai)
	task := domain.TaskRow{
		ID: "t9",
		Payload: map[string]any{
			"title":           "Demo",
			"allow_synthetic": true,
		},
	}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, 3, out.Result["data_points"])
}

func TestChartAgent_NoDataWithoutSyntheticFlagFails(t *testing.T) {
	ai := &stubAIClient{out: `{"labels": ["a"], "values": [1]}`}
	a := NewChartAgent(ai)
	task := domain.TaskRow{ID: "t10", Payload: map[string]any{"title": "Demo"}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationFailed, out.Kind)
}

func TestBucketize_Deterministic(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	b1 := bucketize(values, 5)
	b2 := bucketize(values, 5)
	require.Equal(t, b1, b2)
	total := 0
	for _, b := range b1 {
		total += b.count
	}
	require.Equal(t, len(values), total)
}
