package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

type fakeTargetTaskStore struct {
	fakeTaskStore
	status domain.TaskStatus
	result map[string]any
	err    error
}

func (f *fakeTargetTaskStore) GetTargetTask(ctx context.Context, taskID string) (domain.TaskStatus, map[string]any, error) {
	return f.status, f.result, f.err
}

func TestReviewerAgent_MissingTargetTaskIDFailsValidation(t *testing.T) {
	a := &ReviewerAgent{TaskStore: &fakeTaskStore{}, IsProduction: true}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{}})
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationFailed, out.Kind)
}

func TestReviewerAgent_NonProductionAutoApproves(t *testing.T) {
	a := &ReviewerAgent{TaskStore: &fakeTaskStore{}, IsProduction: false}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9"}})
	require.NoError(t, err)
	require.Equal(t, OutcomeReview, out.Kind)
	require.Equal(t, 90, out.Review.Score)
	require.Equal(t, "APPROVE", out.Review.Decision)
}

func TestReviewerAgent_RejectsMissingTarget(t *testing.T) {
	store := &fakeTargetTaskStore{status: "", result: nil}
	a := &ReviewerAgent{TaskStore: store, IsProduction: true}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9"}})
	require.NoError(t, err)
	require.Equal(t, OutcomeReview, out.Kind)
	require.Equal(t, "REJECT", out.Review.Decision)
	require.Equal(t, 0, out.Review.Score)
}

func TestReviewerAgent_RejectsWhenTargetLookupReportsNotFound(t *testing.T) {
	store := &fakeTargetTaskStore{err: fmt.Errorf("op=get_target_task: %w", domain.ErrTaskNotFound)}
	a := &ReviewerAgent{TaskStore: store, IsProduction: true}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9"}})
	require.NoError(t, err)
	require.Equal(t, "REJECT", out.Review.Decision)
}

func TestReviewerAgent_RejectsNonSuccessTarget(t *testing.T) {
	store := &fakeTargetTaskStore{status: domain.TaskFailed, result: map[string]any{"x": 1}}
	a := &ReviewerAgent{TaskStore: store, IsProduction: true}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9"}})
	require.NoError(t, err)
	require.Equal(t, "REJECT", out.Review.Decision)
}

func TestReviewerAgent_RejectsEmptyResult(t *testing.T) {
	store := &fakeTargetTaskStore{status: domain.TaskSuccess, result: map[string]any{}}
	a := &ReviewerAgent{TaskStore: store, IsProduction: true}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9"}})
	require.NoError(t, err)
	require.Equal(t, "REJECT", out.Review.Decision)
}

func TestReviewerAgent_ApprovesWithAIScoreAboveThreshold(t *testing.T) {
	store := &fakeTargetTaskStore{status: domain.TaskSuccess, result: map[string]any{"summary": "ok"}}
	ai := &stubAIClient{out: "Score: 88\nRecommendation: APPROVE, looks solid."}
	a := &ReviewerAgent{TaskStore: store, AI: ai, IsProduction: true}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9"}})
	require.NoError(t, err)
	require.Equal(t, OutcomeReview, out.Kind)
	require.Equal(t, 88, out.Review.Score)
	require.Equal(t, "APPROVE", out.Review.Decision)
}

func TestReviewerAgent_RejectsWhenAIScoreBelowThreshold(t *testing.T) {
	store := &fakeTargetTaskStore{status: domain.TaskSuccess, result: map[string]any{"summary": "meh"}}
	ai := &stubAIClient{out: "Score: 40\nRecommendation: needs work."}
	a := &ReviewerAgent{TaskStore: store, AI: ai, IsProduction: true}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9", "score_threshold": 50.0}})
	require.NoError(t, err)
	require.Equal(t, 40, out.Review.Score)
	require.Equal(t, "REJECT", out.Review.Decision)
}

func TestReviewerAgent_AIFailureDefaultsScore(t *testing.T) {
	store := &fakeTargetTaskStore{status: domain.TaskSuccess, result: map[string]any{"summary": "ok"}}
	ai := &stubAIClient{err: errors.New("upstream down")}
	a := &ReviewerAgent{TaskStore: store, AI: ai, IsProduction: true}
	out, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9"}})
	require.NoError(t, err)
	require.Equal(t, 85, out.Review.Score)
	require.Equal(t, "APPROVE", out.Review.Decision)
}

func TestReviewerAgent_TargetLookupFailureIsAgentExecutionError(t *testing.T) {
	store := &fakeTargetTaskStore{err: errors.New("db down")}
	a := &ReviewerAgent{TaskStore: store, IsProduction: true}
	_, err := a.Run(context.Background(), domain.TaskRow{Payload: map[string]any{"target_task_id": "t9"}})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrAgentExecution)
}
