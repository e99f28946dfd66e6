package domain

import "errors"

// Error taxonomy (sentinels). Wrapped with fmt.Errorf("op=...: %w", err)
// throughout the adapter and agent layers, mirroring the teacher's
// error-sentinel convention.
var (
	// ErrInvalidArgument marks a malformed or missing required input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks a lookup that returned no rows.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a request that the remote side already satisfied
	// (e.g. a 409 from the orchestrator), which callers should treat as
	// success rather than failure.
	ErrConflict = errors.New("conflict")
	// ErrRateLimited marks a provider-reported rate limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstreamTimeout marks a context deadline exceeded talking to a
	// remote dependency.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrInternal marks an unexpected internal failure.
	ErrInternal = errors.New("internal error")

	// ErrTransientNetwork marks a queue/store/HTTP/storage connection loss
	// that should be recovered locally (reconnect-and-retry or
	// nack-with-requeue) without consuming a task's retry budget.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrTaskNotFound marks a missing task row in the task-state store.
	ErrTaskNotFound = errors.New("task not found")
	// ErrOwnershipRefused marks a start() call that returned neither 200
	// nor 409.
	ErrOwnershipRefused = errors.New("ownership refused")
	// ErrAgentValidation marks an agent input that failed its contract
	// (missing field, unresolved template, zero-size required data). Agents
	// report such failures as OutcomeValidationFailed, which bypasses retry
	// and goes straight to fail(); a returned error wrapping this sentinel
	// is retried like any other error.
	ErrAgentValidation = errors.New("agent validation failed")
	// ErrAgentExecution marks any other failure raised from an agent body.
	// It increments the task's retry counter.
	ErrAgentExecution = errors.New("agent execution failed")
	// ErrProviderRateLimit marks an AI provider rate-limit signal, retried
	// inside the AI helper and never surfaced past it.
	ErrProviderRateLimit = errors.New("ai provider rate limited")
	// ErrAllProvidersFailed marks exhaustion of every configured AI
	// provider for a single generate() call.
	ErrAllProvidersFailed = errors.New("all ai providers failed")
)
