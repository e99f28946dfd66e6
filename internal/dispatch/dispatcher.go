package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/taskexec-worker/internal/agent"
	"github.com/fairyhunter13/taskexec-worker/internal/domain"
	"github.com/fairyhunter13/taskexec-worker/internal/observability"
)

const (
	maxRetries          = 3
	startDelay          = time.Second
	retryBackoffDefault = 2 * time.Second
)

// Dispatcher is C6: the single consumer loop that owns ack/nack
// decisions, the ownership handshake, and the retry/DLQ policy. It never
// runs two deliveries of the same task concurrently within a process.
type Dispatcher struct {
	Queue        domain.Queue
	TaskStore    domain.TaskStore
	Orchestrator domain.Orchestrator
	Storage      domain.Storage
	Registry     *agent.Registry

	// StartDelay and RetryBackoff are overridable for tests; both default
	// to the spec's pinned values (1s, 2s) when zero.
	StartDelay   time.Duration
	RetryBackoff time.Duration

	inProgress *inProgressSet
}

// Run consumes deliveries from Queue until ctx is canceled, handling
// each one to completion before pulling the next (prefetch=1 already
// enforces this at the broker, this just makes it explicit in-process).
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.inProgress == nil {
		d.inProgress = newInProgressSet()
	}
	deliveries, err := d.Queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("op=dispatcher_run: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			d.handle(ctx, delivery)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, delivery domain.Delivery) {
	requestID := uuid.NewString()
	ctx = observability.ContextWithRequestID(ctx, requestID)
	ctx = observability.ContextWithLogger(ctx, slog.Default().With(slog.String("request_id", requestID)))
	log := observability.LoggerFromContext(ctx)

	var msg domain.TaskMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil || msg.TaskID == "" {
		log.Warn("dropping malformed task message", slog.Any("error", err))
		_ = delivery.Reject(false)
		return
	}
	taskID := msg.TaskID

	if !d.inProgress.add(taskID) {
		log.Info("duplicate delivery suppressed", slog.String("task_id", taskID))
		_ = delivery.Ack()
		return
	}
	defer d.inProgress.remove(taskID)

	row, err := d.TaskStore.LoadContext(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			log.Warn("task missing; dropping", slog.String("task_id", taskID), slog.Any("error", err))
			_ = delivery.Ack()
			return
		}
		log.Warn("task context load failed; requeuing", slog.String("task_id", taskID), slog.Any("error", err))
		_ = delivery.Nack(true)
		return
	}

	if len(msg.Payload) > 0 {
		row.Payload = msg.Payload
	}
	if msg.JobID != "" {
		row.JobID = msg.JobID
	}

	startResult, err := d.Orchestrator.Start(ctx, taskID)
	if err != nil {
		log.Warn("orchestrator start unreachable; requeuing", slog.String("task_id", taskID), slog.Any("error", err))
		_ = delivery.Nack(true)
		return
	}
	if startResult == domain.StartRefused {
		log.Info("ownership refused; dropping", slog.String("task_id", taskID))
		_ = delivery.Ack()
		return
	}

	select {
	case <-time.After(d.startDelayOrDefault()):
	case <-ctx.Done():
		_ = delivery.Nack(true)
		return
	}

	outcome, runErr := d.Registry.Resolve(row.AgentType).Run(ctx, row)
	if runErr == nil && outcome.Kind == agent.OutcomeValidationFailed {
		d.failImmediately(ctx, delivery, taskID, outcome.FailMessage)
		return
	}
	if runErr == nil {
		runErr = d.finalize(ctx, taskID, row.JobID, outcome)
	}
	if runErr != nil {
		d.retryOrFail(ctx, delivery, taskID, runErr)
		return
	}

	_ = delivery.Ack()
}

// finalize uploads the artifact (if any) and reports the outcome to the
// orchestrator. Any failure here is treated the same as an agent
// execution error by the caller's retry policy.
func (d *Dispatcher) finalize(ctx context.Context, taskID, jobID string, outcome agent.Outcome) error {
	var artifactRef *domain.ArtifactRef
	if outcome.Artifact != nil {
		key := fmt.Sprintf("jobs/%s/%s", jobID, outcome.Artifact.Filename)
		if err := d.Storage.Put(ctx, key, outcome.Artifact.Bytes, outcome.Artifact.ContentType); err != nil {
			return fmt.Errorf("op=dispatch_upload task_id=%s: %w: %w", taskID, domain.ErrAgentExecution, err)
		}
		artifactRef = &domain.ArtifactRef{
			Type:       outcome.Artifact.Type,
			Filename:   outcome.Artifact.Filename,
			StorageKey: key,
			Role:       outcome.Artifact.Role,
			Metadata:   outcome.Artifact.Metadata,
		}
	}

	switch outcome.Kind {
	case agent.OutcomeReview:
		if err := d.Orchestrator.Review(ctx, taskID, outcome.Review); err != nil {
			return fmt.Errorf("op=dispatch_review task_id=%s: %w: %w", taskID, domain.ErrAgentExecution, err)
		}
		observability.RecordTaskResult("reviewed")
	default:
		if err := d.Orchestrator.Complete(ctx, taskID, outcome.Result, artifactRef); err != nil {
			return fmt.Errorf("op=dispatch_complete task_id=%s: %w: %w", taskID, domain.ErrAgentExecution, err)
		}
		observability.RecordTaskResult("success")
	}
	return nil
}

// failImmediately handles OutcomeValidationFailed: it bypasses the
// retry budget entirely and goes straight to fail()+ack.
func (d *Dispatcher) failImmediately(ctx context.Context, delivery domain.Delivery, taskID, message string) {
	log := observability.LoggerFromContext(ctx)
	if err := d.Orchestrator.Fail(ctx, taskID, message, nil); err != nil {
		log.Warn("orchestrator fail call errored", slog.String("task_id", taskID), slog.Any("error", err))
	}
	observability.RecordTaskResult("failed")
	_ = delivery.Ack()
}

// retryOrFail applies C6's retry/DLQ policy: increment the retry
// counter, and either nack-with-requeue after a backoff or call fail()
// and ack once the budget is exhausted.
func (d *Dispatcher) retryOrFail(ctx context.Context, delivery domain.Delivery, taskID string, cause error) {
	log := observability.LoggerFromContext(ctx)
	retryCount, err := d.TaskStore.GetRetryCount(ctx, taskID)
	if err != nil {
		log.Warn("retry count read failed; requeuing without incrementing", slog.String("task_id", taskID), slog.Any("error", err))
		_ = delivery.Nack(true)
		return
	}
	if err := d.TaskStore.IncrementRetry(ctx, taskID); err != nil {
		log.Warn("retry count increment failed", slog.String("task_id", taskID), slog.Any("error", err))
	}

	if retryCount+1 >= maxRetries {
		if err := d.Orchestrator.Fail(ctx, taskID, cause.Error(), nil); err != nil {
			log.Warn("orchestrator fail call errored", slog.String("task_id", taskID), slog.Any("error", err))
		}
		publishDLQBestEffort(ctx, d.Queue, delivery.Body, taskID)
		observability.RecordTaskResult("failed")
		_ = delivery.Ack()
		return
	}

	select {
	case <-time.After(d.retryBackoffOrDefault()):
	case <-ctx.Done():
	}
	_ = delivery.Nack(true)
}

func (d *Dispatcher) startDelayOrDefault() time.Duration {
	if d.StartDelay > 0 {
		return d.StartDelay
	}
	return startDelay
}

func (d *Dispatcher) retryBackoffOrDefault() time.Duration {
	if d.RetryBackoff > 0 {
		return d.RetryBackoff
	}
	return retryBackoffDefault
}
