// Package agent implements the built-in task executors (C5): scraper,
// summarizer, analyzer, validator, transformer, chart, designer,
// notifier, reviewer, and a generic AI fallback.
package agent

import (
	"context"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// OutcomeKind classifies how an agent run ended, replacing the
// exception-driven control flow of the original implementation with an
// explicit result type the dispatcher switches on.
type OutcomeKind int

// Outcome kinds.
const (
	// OutcomeSuccess calls complete() with Result and, if present,
	// uploads Artifact first.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeReview calls review() instead of complete() (reviewer only).
	OutcomeReview
	// OutcomeValidationFailed calls fail() and bypasses the retry budget
	// entirely — the dispatcher must not increment retry_count for this
	// kind.
	OutcomeValidationFailed
	// Execution failure has no kind of its own: it is returned as a Go
	// error from Run instead of an Outcome value, and dispatcher.go
	// applies the retry/DLQ policy to any non-nil error.
)

// Outcome is what an agent produces on a non-error path.
type Outcome struct {
	Kind     OutcomeKind
	Result   map[string]any
	Artifact *domain.ArtifactUpload
	Review   domain.ReviewRequest
	// FailMessage is set when Kind == OutcomeValidationFailed.
	FailMessage string
}

// Agent is the contract every executor implements. Run receives the
// task's persisted row (payload, job id, name) and must not mutate task
// state itself — all side effects on the store/orchestrator/storage are
// owned by the dispatcher, driven by the returned Outcome.
type Agent interface {
	Run(ctx context.Context, task domain.TaskRow) (Outcome, error)
}

// Deps bundles the ports every agent needs. Agents hold only the
// dependencies they use; Deps exists so the registry can construct all
// of them uniformly.
type Deps struct {
	Storage      domain.Storage
	TaskStore    domain.TaskStore
	AI           domain.AIClient
	Orchestrator domain.Orchestrator

	// OrchestratorBaseURL is used by the notifier to turn relative /api/
	// report links in its message into absolute URLs.
	OrchestratorBaseURL string
	// IsProduction gates reviewer auto-approve and notifier's
	// skipped-on-failure downgrade.
	IsProduction bool
	// EmailProvider selects "auto" | "smtp" | "http" for the notifier.
	EmailProvider string
	// SMTP / HTTP email credentials.
	GmailUser         string
	GmailAppPassword  string
	SendgridAPIKey    string
	SendgridFromEmail string
}
