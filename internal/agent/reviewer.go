package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

const defaultScoreThreshold = 80

var scoreLinePattern = regexp.MustCompile(`(?i)score\s*[:=]\s*(\d{1,3})`)

// ReviewerAgent scores a previously completed task's output against a
// threshold and reports the verdict via review() rather than complete().
type ReviewerAgent struct {
	TaskStore    domain.TaskStore
	AI           domain.AIClient
	IsProduction bool
}

func NewReviewerAgent(deps Deps) *ReviewerAgent {
	return &ReviewerAgent{TaskStore: deps.TaskStore, AI: deps.AI, IsProduction: deps.IsProduction}
}

func (a *ReviewerAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	targetTaskID, _ := asString(task.Payload["target_task_id"])
	if targetTaskID == "" {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "target_task_id is required"}, nil
	}
	threshold := defaultScoreThreshold
	if f, ok := asFloat(task.Payload["score_threshold"]); ok {
		threshold = int(f)
	}

	if !a.IsProduction {
		return Outcome{Kind: OutcomeReview, Review: domain.ReviewRequest{
			Score:    90,
			Decision: "APPROVE",
			Feedback: map[string]any{"note": "non-production auto-approve"},
		}}, nil
	}

	status, result, err := a.TaskStore.GetTargetTask(ctx, targetTaskID)
	if err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		return Outcome{}, fmt.Errorf("op=reviewer_run target_task_id=%s: %w: %w", targetTaskID, domain.ErrAgentExecution, err)
	}
	if reason, reject := rejectReason(status, result, err); reject {
		return Outcome{Kind: OutcomeReview, Review: domain.ReviewRequest{
			Score:    0,
			Decision: "REJECT",
			Feedback: map[string]any{"reason": reason},
		}}, nil
	}

	score, recommendation := a.score(ctx, targetTaskID, result)
	decision := "REJECT"
	if score >= threshold {
		decision = "APPROVE"
	}
	return Outcome{Kind: OutcomeReview, Review: domain.ReviewRequest{
		Score:    score,
		Decision: decision,
		Feedback: map[string]any{"recommendation": recommendation},
	}}, nil
}

func rejectReason(status domain.TaskStatus, result map[string]any, lookupErr error) (string, bool) {
	switch {
	case errors.Is(lookupErr, domain.ErrTaskNotFound), status == "":
		return "target task not found", true
	case status != domain.TaskSuccess:
		return fmt.Sprintf("target task status is %s, not SUCCESS", status), true
	case len(result) == 0:
		return "target task result is empty", true
	default:
		return "", false
	}
}

// score asks the AI for a quality assessment of the target task's
// result and parses its "Score: N" line. Any AI failure falls back to a
// fixed default rather than blocking the review.
func (a *ReviewerAgent) score(ctx context.Context, targetTaskID string, result map[string]any) (int, string) {
	const aiFallbackScore = 85
	if a.AI == nil {
		return aiFallbackScore, "AI scoring unavailable; defaulted"
	}

	prompt := fmt.Sprintf(
		"Review the output of task %s and rate its quality from 0 to 100.\n"+
			"Output:\n%v\n\n"+
			"Respond with a line \"Score: N\" followed by a one-sentence recommendation.",
		targetTaskID, result,
	)
	out, err := a.AI.Generate(ctx, prompt, domain.GenerateOptions{TaskType: "review"})
	if err != nil {
		return aiFallbackScore, "AI scoring failed; defaulted"
	}
	return parseScore(out), strings.TrimSpace(out)
}

func parseScore(out string) int {
	m := scoreLinePattern.FindStringSubmatch(out)
	if m == nil {
		return 85
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 85
	}
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

var _ Agent = (*ReviewerAgent)(nil)
