package domain

import "context"

// Storage is the port over the S3-compatible object store (C1). A single
// bucket is configured at construction; Put/Get never retry internally —
// callers convert errors to the typed taxonomy above.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// TaskStore is the port over the task-state store (C2). Every method must
// tolerate a dropped connection exactly once by reconnecting before
// re-executing the statement.
type TaskStore interface {
	GetRetryCount(ctx context.Context, taskID string) (uint, error)
	IncrementRetry(ctx context.Context, taskID string) error
	Log(ctx context.Context, taskID string, level LogLevel, message string) error
	LoadContext(ctx context.Context, taskID string) (TaskRow, error)
	ListJobArtifacts(ctx context.Context, jobID string) ([]ArtifactRow, error)
	GetLatestPDF(ctx context.Context, jobID string) (ArtifactRow, bool, error)
	GetTargetTask(ctx context.Context, taskID string) (TaskStatus, map[string]any, error)
}

// ArtifactRef describes the artifact side-effect of a complete() call.
type ArtifactRef struct {
	Type       ArtifactType   `json:"type"`
	Filename   string         `json:"filename"`
	StorageKey string         `json:"storage_key"`
	Role       string         `json:"role,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ReviewRequest is the body of the review() RPC.
type ReviewRequest struct {
	Score    int            `json:"score"`
	Decision string         `json:"decision"`
	Feedback map[string]any `json:"feedback"`
}

// StartResult enumerates the three outcomes of the ownership handshake.
type StartResult int

// Start outcomes.
const (
	StartOwned StartResult = iota
	StartAlreadyRunning
	StartRefused
)

// Orchestrator is the port over the orchestrator's internal HTTP API (C3).
type Orchestrator interface {
	Start(ctx context.Context, taskID string) (StartResult, error)
	Complete(ctx context.Context, taskID string, result map[string]any, artifact *ArtifactRef) error
	Review(ctx context.Context, taskID string, req ReviewRequest) error
	Fail(ctx context.Context, taskID string, errMsg string, artifact *ArtifactRef) error
}

// Queue is the port over the inbound AMQP queue (C6's transport). Ack/Nack
// operate on the delivery tag embedded in Delivery by the adapter.
type Queue interface {
	Consume(ctx context.Context) (<-chan Delivery, error)
	PublishDLQ(ctx context.Context, body []byte) error
	Close() error
}

// Delivery is a single queue message together with its ack/nack handles.
type Delivery struct {
	Body   []byte
	Ack    func() error
	Nack   func(requeue bool) error
	Reject func(requeue bool) error
}
