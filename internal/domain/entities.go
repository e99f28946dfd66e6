// Package domain defines core entities, ports, and domain-specific errors
// shared by every component of the task execution worker.
package domain

import "time"

// AgentType identifies which executor handles a task. Values outside the
// named constants below are kept as their raw string, so the registry can
// route them to the generic executor instead of failing to decode the message.
type AgentType string

// Built-in agent kinds.
const (
	AgentReviewer    AgentType = "reviewer"
	AgentDesigner    AgentType = "designer"
	AgentChart       AgentType = "chart"
	AgentAnalyzer    AgentType = "analyzer"
	AgentSummarizer  AgentType = "summarizer"
	AgentValidator   AgentType = "validator"
	AgentTransformer AgentType = "transformer"
	AgentNotifier    AgentType = "notifier"
	AgentScraper     AgentType = "scraper"
)

// ParseAgentType maps a raw agent_type string onto AgentType, keeping the
// original string for unknown kinds so they can be routed to the generic
// executor without losing the task's declared intent.
func ParseAgentType(s string) AgentType { return AgentType(s) }

// IsKnown reports whether the agent type matches one of the built-in
// executors (as opposed to falling through to the generic executor).
func (a AgentType) IsKnown() bool {
	switch a {
	case AgentReviewer, AgentDesigner, AgentChart, AgentAnalyzer, AgentSummarizer,
		AgentValidator, AgentTransformer, AgentNotifier, AgentScraper:
		return true
	}
	return false
}

// TaskStatus mirrors the task row's lifecycle state in the task-state store.
type TaskStatus string

// Task status values.
const (
	TaskPending TaskStatus = "PENDING"
	TaskRunning TaskStatus = "RUNNING"
	TaskSuccess TaskStatus = "SUCCESS"
	TaskFailed  TaskStatus = "FAILED"
)

// ArtifactType enumerates the kinds of artifact rows the orchestrator
// catalogs.
type ArtifactType string

// Artifact type values.
const (
	ArtifactChart         ArtifactType = "chart"
	ArtifactImage         ArtifactType = "image"
	ArtifactPDF           ArtifactType = "pdf"
	ArtifactJSON          ArtifactType = "json"
	ArtifactText          ArtifactType = "text"
	ArtifactPNG           ArtifactType = "png"
	ArtifactVisualization ArtifactType = "visualization"
)

// TaskMessage is the transient queue payload delivered to the dispatcher.
type TaskMessage struct {
	TaskID  string         `json:"task_id"`
	JobID   string         `json:"job_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// TaskRow is the persisted task row read from the task-state store.
type TaskRow struct {
	ID         string
	AgentType  AgentType
	Payload    map[string]any
	JobID      string
	Name       string
	Status     TaskStatus
	RetryCount uint
	Result     map[string]any
}

// ArtifactRow is a cataloged artifact produced by a prior task.
type ArtifactRow struct {
	ID         string
	TaskID     string
	JobID      string
	Type       ArtifactType
	Filename   string
	StorageKey string
	MimeType   string
	Role       string
	CreatedAt  time.Time
	IsCurrent  bool
}

// LogLevel enumerates the task-log severities written by C2.
type LogLevel string

// Log level values.
const (
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// ArtifactUpload describes bytes an agent produced that need to be put into
// object storage and registered with the orchestrator on completion.
type ArtifactUpload struct {
	Type        ArtifactType
	Filename    string
	ContentType string
	Bytes       []byte
	Role        string
	Metadata    map[string]any
}
