package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// emailProviderSender is the interface both transport implementations
// (smtpSender, httpSender) satisfy.
type emailProviderSender interface {
	Send(ctx context.Context, recipients []string, subject, message string, attachment *emailAttachment) emailSendResult
}

// terminalFailureStatuses are aggregate statuses that represent the
// notifier not getting its message out at all or only partially in a
// way the original run() treats as a job failure.
var terminalFailureStatuses = map[string]bool{
	"no_recipients":       true,
	"missing_credentials": true,
	"failed":              true,
	"smtp_error":          true,
	"sendgrid_error":      true,
}

// NotifierAgent sends a completion email to one or more recipients,
// picking SMTP or SendGrid's HTTP API per EMAIL_PROVIDER and downgrading
// delivery failures to a soft "skipped" outcome outside production.
type NotifierAgent struct {
	Storage   domain.Storage
	TaskStore domain.TaskStore

	OrchestratorBaseURL string
	IsProduction        bool
	EmailProvider       string

	smtp emailProviderSender
	http emailProviderSender
}

func NewNotifierAgent(deps Deps) *NotifierAgent {
	a := &NotifierAgent{
		Storage:             deps.Storage,
		TaskStore:           deps.TaskStore,
		OrchestratorBaseURL: strings.TrimRight(deps.OrchestratorBaseURL, "/"),
		IsProduction:        deps.IsProduction,
		EmailProvider:       deps.EmailProvider,
	}
	if deps.GmailUser != "" && deps.GmailAppPassword != "" {
		a.smtp = newSMTPSender(deps.GmailUser, deps.GmailAppPassword)
	}
	if deps.SendgridAPIKey != "" && deps.SendgridFromEmail != "" {
		a.http = newHTTPSender(deps.SendgridAPIKey, deps.SendgridFromEmail)
	}
	return a
}

func (a *NotifierAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	channel := stringOr(task.Payload["channel"], "email")
	if channel != "email" {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: fmt.Sprintf("unsupported notification channel %q: only email is implemented", channel)}, nil
	}

	recipients := normalizeRecipients(firstNonNil(task.Payload["recipients"], task.Payload["recipient"], task.Payload["to"]))
	subject := stringOr(task.Payload["subject"], "Task report")
	message := stringOr(task.Payload["message"], "")

	attachment, err := a.resolveAttachment(ctx, task.JobID)
	if err != nil {
		return Outcome{}, fmt.Errorf("op=notifier_run job_id=%s: %w: %w", task.JobID, domain.ErrAgentExecution, err)
	}

	message = a.buildMessage(message, task.JobID, attachment != nil)

	if len(recipients) == 0 {
		return a.finish(task.JobID, "no_recipients", 0, 0, "", nil)
	}

	sender, providerName, err := a.selectSender()
	if err != nil {
		return a.finish(task.JobID, "missing_credentials", 0, len(recipients), "", nil)
	}

	result := sender.Send(ctx, recipients, subject, message, attachment)

	// auto mode: SMTP that didn't land anything falls back to the HTTP
	// provider, per the spec's "sent=0 or missing credentials" rule.
	if a.isAutoMode() && providerName == "smtp" && result.SentCount == 0 && a.http != nil {
		providerName = "sendgrid_http"
		result = a.http.Send(ctx, recipients, subject, message, attachment)
	}

	return a.finish(task.JobID, result.Status, result.SentCount, result.ErrorCount, providerName, map[string]any{"results": result.Results})
}

func (a *NotifierAgent) isAutoMode() bool {
	return a.EmailProvider == "" || a.EmailProvider == "auto"
}

// finish applies the dev-mode downgrade and builds the final Outcome.
func (a *NotifierAgent) finish(jobID, status string, sent, failedCount int, provider string, metadata map[string]any) (Outcome, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if terminalFailureStatuses[status] && !a.IsProduction {
		status = "skipped"
	}
	result := map[string]any{
		"status":       status,
		"sent_count":   sent,
		"failed_count": failedCount,
		"metadata":     metadata,
	}
	if provider != "" {
		result["provider"] = provider
	}
	if terminalFailureStatuses[status] {
		return Outcome{}, fmt.Errorf("op=notifier_run job_id=%s status=%s: %w", jobID, status, domain.ErrAgentExecution)
	}
	return Outcome{Kind: OutcomeSuccess, Result: result}, nil
}

// selectSender applies EMAIL_PROVIDER (auto|smtp|http), falling back from
// smtp to http in "auto" mode when SMTP credentials aren't configured.
func (a *NotifierAgent) selectSender() (emailProviderSender, string, error) {
	switch a.EmailProvider {
	case "smtp":
		if a.smtp == nil {
			return nil, "", fmt.Errorf("EMAIL_PROVIDER=smtp but gmail credentials are not configured")
		}
		return a.smtp, "smtp", nil
	case "http":
		if a.http == nil {
			return nil, "", fmt.Errorf("EMAIL_PROVIDER=http but sendgrid credentials are not configured")
		}
		return a.http, "sendgrid_http", nil
	default:
		if a.smtp != nil {
			return a.smtp, "smtp", nil
		}
		if a.http != nil {
			return a.http, "sendgrid_http", nil
		}
		return nil, "", fmt.Errorf("no email provider is configured")
	}
}

// resolveAttachment fetches the job's latest PDF, if any, to attach. A
// missing PDF (or a storage read failure) is not an error: notifications
// go out without the attachment rather than aborting the job.
func (a *NotifierAgent) resolveAttachment(ctx context.Context, jobID string) (*emailAttachment, error) {
	if a.TaskStore == nil {
		return nil, nil
	}
	row, ok, err := a.TaskStore.GetLatestPDF(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get latest pdf: %w", err)
	}
	if !ok || a.Storage == nil {
		return nil, nil
	}
	bytes, err := a.Storage.Get(ctx, row.StorageKey)
	if err != nil {
		return nil, nil
	}
	filename := row.Filename
	if filename == "" {
		filename = jobID + ".pdf"
	}
	return &emailAttachment{Filename: filename, Bytes: bytes}, nil
}

// buildMessage fills in the canonical "report ready" copy when the
// caller left the message empty and a PDF exists, then rewrites any
// relative /api/ reference into an absolute orchestrator URL.
func (a *NotifierAgent) buildMessage(message, jobID string, hasAttachment bool) string {
	if strings.TrimSpace(message) == "" && hasAttachment {
		message = fmt.Sprintf("Your report is ready: "+designerDownloadURLFormat, jobID)
	} else if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Your task for job %s has completed.", jobID)
	}
	if a.OrchestratorBaseURL != "" {
		message = strings.ReplaceAll(message, "/api/", a.OrchestratorBaseURL+"/api/")
	}
	return message
}

var bracketedPattern = regexp.MustCompile(`[\[\]]`)
var recipientSplitPattern = regexp.MustCompile(`[;,\n]+`)

// normalizeRecipients accepts a list, a JSON-encoded list string, a
// bracketed or delimiter-separated string, or a single address, and
// returns a deduplicated, trimmed list of non-empty entries.
func normalizeRecipients(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				parts = append(parts, s)
			}
		}
	case []string:
		parts = v
	case string:
		var decoded []string
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			parts = decoded
		} else {
			stripped := bracketedPattern.ReplaceAllString(v, "")
			parts = recipientSplitPattern.Split(stripped, -1)
		}
	default:
		return nil
	}

	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func firstNonNil(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

var _ Agent = (*NotifierAgent)(nil)
