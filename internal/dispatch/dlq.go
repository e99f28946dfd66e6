package dispatch

import (
	"context"
	"log/slog"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// publishDLQBestEffort mirrors the worker.py's optional DLQ publication
// after a permanent failure: the queue declares executor.tasks.dlq for
// topology parity, and C6 may publish there, but a failure to do so must
// never change the ack decision already made against the main queue.
func publishDLQBestEffort(ctx context.Context, q domain.Queue, body []byte, taskID string) {
	if q == nil {
		return
	}
	if err := q.PublishDLQ(ctx, body); err != nil {
		slog.Warn("dlq publish failed", slog.String("task_id", taskID), slog.Any("error", err))
	}
}
