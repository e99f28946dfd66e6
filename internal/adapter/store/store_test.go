package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskexec-worker/internal/adapter/store"
	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

func TestStore_GetRetryCount(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectQuery("SELECT retry_count FROM tasks").
		WithArgs("task-1").
		WillReturnRows(pgxmock.NewRows([]string{"retry_count"}).AddRow(uint(2)))

	got, err := s.GetRetryCount(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, uint(2), got)
}

func TestStore_GetRetryCount_NotFound(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectQuery("SELECT retry_count FROM tasks").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = s.GetRetryCount(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestStore_IncrementRetry(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectExec("UPDATE tasks SET retry_count").
		WithArgs("task-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.IncrementRetry(context.Background(), "task-1"))
}

func TestStore_Log(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectExec("INSERT INTO task_logs").
		WithArgs("task-1", "ERROR", "boom").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Log(context.Background(), "task-1", domain.LogError, "boom"))
}

func TestStore_LoadContext(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectQuery("SELECT agent_type, payload, job_id, name FROM tasks").
		WithArgs("task-1").
		WillReturnRows(pgxmock.NewRows([]string{"agent_type", "payload", "job_id", "name"}).
			AddRow("chart", []byte(`{"title":"x"}`), "job-1", "render chart"))

	row, err := s.LoadContext(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentChart, row.AgentType)
	assert.Equal(t, "job-1", row.JobID)
	assert.Equal(t, "x", row.Payload["title"])
}

func TestStore_ListJobArtifacts(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectQuery("SELECT id, task_id, type, filename, storage_key, mime_type, role, agent_type").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "task_id", "type", "filename", "storage_key", "mime_type", "role", "agent_type"}).
			AddRow("art-1", "task-1", "chart", "latency.png", "jobs/job-1/task-1.png", "image/png", "latency_p95", "chart"))

	rows, err := s.ListJobArtifacts(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ArtifactChart, rows[0].Type)
	assert.Equal(t, "latency_p95", rows[0].Role)
}

func TestStore_GetLatestPDF_Found(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	now := time.Now()
	m.ExpectQuery("SELECT storage_key, filename, role, created_at FROM artifacts").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"storage_key", "filename", "role", "created_at"}).
			AddRow("jobs/job-1/task-2.pdf", "report.pdf", "report", now))

	row, found, err := s.GetLatestPDF(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "report", row.Role)
}

func TestStore_GetLatestPDF_NotFound(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectQuery("SELECT storage_key, filename, role, created_at FROM artifacts").
		WithArgs("job-1").
		WillReturnError(pgx.ErrNoRows)

	_, found, err := s.GetLatestPDF(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_GetTargetTask(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectQuery("SELECT status, result FROM tasks").
		WithArgs("task-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "result"}).
			AddRow("SUCCESS", []byte(`{"text":"hello"}`)))

	status, result, err := s.GetTargetTask(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSuccess, status)
	assert.Equal(t, "hello", result["text"])
}

func TestStore_GetTargetTask_NotFound(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	s := store.New(m, "")

	m.ExpectQuery("SELECT status, result FROM tasks").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, _, err = s.GetTargetTask(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
}
