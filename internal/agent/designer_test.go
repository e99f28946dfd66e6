package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

type fakeStorage struct {
	data map[string][]byte
	err  error
}

func (f *fakeStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[key] = data
	return nil
}

func (f *fakeStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

type fakeTaskStore struct {
	artifacts []domain.ArtifactRow
	listErr   error
}

func (f *fakeTaskStore) GetRetryCount(ctx context.Context, taskID string) (uint, error) { return 0, nil }
func (f *fakeTaskStore) IncrementRetry(ctx context.Context, taskID string) error        { return nil }
func (f *fakeTaskStore) Log(ctx context.Context, taskID string, level domain.LogLevel, message string) error {
	return nil
}
func (f *fakeTaskStore) LoadContext(ctx context.Context, taskID string) (domain.TaskRow, error) {
	return domain.TaskRow{}, nil
}
func (f *fakeTaskStore) ListJobArtifacts(ctx context.Context, jobID string) ([]domain.ArtifactRow, error) {
	return f.artifacts, f.listErr
}
func (f *fakeTaskStore) GetLatestPDF(ctx context.Context, jobID string) (domain.ArtifactRow, bool, error) {
	return domain.ArtifactRow{}, false, nil
}
func (f *fakeTaskStore) GetTargetTask(ctx context.Context, taskID string) (domain.TaskStatus, map[string]any, error) {
	return "", nil, nil
}

func TestDesignerAgent_UnresolvedTemplateGuard(t *testing.T) {
	a := &DesignerAgent{Storage: &fakeStorage{}, TaskStore: &fakeTaskStore{}, compiler: newGofpdfCompiler()}
	task := domain.TaskRow{JobID: "j1", Payload: map[string]any{"title": "{{goal}}", "sections": []any{}}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationFailed, out.Kind)
}

func TestDesignerAgent_MissingSectionsFails(t *testing.T) {
	a := &DesignerAgent{Storage: &fakeStorage{}, TaskStore: &fakeTaskStore{}, compiler: newGofpdfCompiler()}
	task := domain.TaskRow{JobID: "j1", Payload: map[string]any{"title": "Report"}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationFailed, out.Kind)
}

func TestDesignerAgent_EmbedsResolvedChartAndTextSection(t *testing.T) {
	storage := &fakeStorage{data: map[string][]byte{"jobs/j1/chart.png": fakePNGBytes()}}
	store := &fakeTaskStore{artifacts: []domain.ArtifactRow{
		{ID: "a1", Type: domain.ArtifactChart, Role: "latency_p95", StorageKey: "jobs/j1/chart.png"},
	}}
	a := &DesignerAgent{Storage: storage, TaskStore: store, compiler: newGofpdfCompiler()}
	task := domain.TaskRow{ID: "t1", JobID: "j1", Payload: map[string]any{
		"title": "Report",
		"sections": []any{
			map[string]any{"heading": "Latency", "artifact": map[string]any{"type": "chart", "role": "latency_p95"}},
			map[string]any{"heading": "Notes", "content": "All good."},
		},
	}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, "report", out.Result["role"])
	require.Equal(t, 2, out.Result["section_count"])
	require.Equal(t, 1, out.Result["metadata"].(map[string]any)["embedded_artifacts"])
	require.NotNil(t, out.Artifact)
	require.Equal(t, domain.ArtifactPDF, out.Artifact.Type)
	require.Equal(t, "t1.pdf", out.Artifact.Filename)
}

func TestDesignerAgent_ArtifactFetchFailureDowngradesToText(t *testing.T) {
	storage := &fakeStorage{err: errors.New("s3 unreachable")}
	store := &fakeTaskStore{artifacts: []domain.ArtifactRow{
		{ID: "a1", Type: domain.ArtifactChart, Role: "latency_p95", StorageKey: "jobs/j1/chart.png"},
	}}
	a := &DesignerAgent{Storage: storage, TaskStore: store, compiler: newGofpdfCompiler()}
	task := domain.TaskRow{ID: "t1", JobID: "j1", Payload: map[string]any{
		"title": "Report",
		"sections": []any{
			map[string]any{"heading": "Latency", "content": "fallback text", "artifact": map[string]any{"type": "chart", "role": "latency_p95"}},
		},
	}}
	out, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, 0, out.Result["metadata"].(map[string]any)["embedded_artifacts"])
	require.NotNil(t, out.Artifact)
}

func TestDesignerAgent_CatalogListFailureIsAgentExecutionError(t *testing.T) {
	store := &fakeTaskStore{listErr: errors.New("db down")}
	a := &DesignerAgent{Storage: &fakeStorage{}, TaskStore: store, compiler: newGofpdfCompiler()}
	task := domain.TaskRow{ID: "t1", JobID: "j1", Payload: map[string]any{
		"title":    "Report",
		"sections": []any{map[string]any{"heading": "A", "content": "B"}},
	}}
	_, err := a.Run(context.Background(), task)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrAgentExecution)
}

// fakePNGBytes returns only the 8-byte PNG signature, with no IHDR chunk.
// gofpdf rejects it at registration and the compiler falls back to the
// section's prose; embedded_artifacts still counts it because the count
// is taken when the artifact bytes are fetched, before rendering.
func fakePNGBytes() []byte {
	return []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
}
