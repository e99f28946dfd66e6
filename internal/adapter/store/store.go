package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// PgxPool is the minimal subset of pgxpool.Pool the store needs, kept as
// an interface so tests can substitute pgxmock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements domain.TaskStore against PostgreSQL via pgxpool.
type Store struct {
	pool PgxPool
	dsn  string
}

// New wraps an already-established pool. dsn is kept so a lost connection
// can be replaced once via reconnect; it may be empty when pool is a test
// double, since reconnect is then unreachable.
func New(pool PgxPool, dsn string) *Store {
	return &Store{pool: pool, dsn: dsn}
}

// withReconnect runs fn against the current pool; on a connection-loss
// class of error it acquires one fresh pool and retries fn exactly once,
// per the store's self-healing contract.
func (s *Store) withReconnect(ctx context.Context, fn func(PgxPool) error) error {
	err := fn(s.pool)
	if err == nil || !isConnectionLoss(err) || s.dsn == "" {
		return err
	}

	fresh, reErr := NewPool(ctx, s.dsn)
	if reErr != nil {
		return fmt.Errorf("op=store_reconnect: %w: %w", domain.ErrInternal, reErr)
	}
	if old, ok := s.pool.(*pgxpool.Pool); ok {
		old.Close()
	}
	s.pool = fresh

	return fn(s.pool)
}

func isConnectionLoss(err error) bool {
	if errors.Is(err, pgx.ErrTooManyRows) || errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// connection_exception / connection_failure class
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}
	return errors.Is(err, pgx.ErrDeadConn) || errors.Is(err, context.DeadlineExceeded)
}

// GetRetryCount reads the current retry_count for a task.
func (s *Store) GetRetryCount(ctx context.Context, taskID string) (uint, error) {
	var count uint
	err := s.withReconnect(ctx, func(pool PgxPool) error {
		return pool.QueryRow(ctx, `SELECT retry_count FROM tasks WHERE id = $1`, taskID).Scan(&count)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("op=get_retry_count task_id=%s: %w", taskID, domain.ErrTaskNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("op=get_retry_count task_id=%s: %w: %w", taskID, domain.ErrInternal, err)
	}
	return count, nil
}

// IncrementRetry bumps retry_count by one.
func (s *Store) IncrementRetry(ctx context.Context, taskID string) error {
	err := s.withReconnect(ctx, func(pool PgxPool) error {
		_, err := pool.Exec(ctx, `UPDATE tasks SET retry_count = retry_count + 1 WHERE id = $1`, taskID)
		return err
	})
	if err != nil {
		return fmt.Errorf("op=increment_retry task_id=%s: %w: %w", taskID, domain.ErrInternal, err)
	}
	return nil
}

// Log appends a task log entry.
func (s *Store) Log(ctx context.Context, taskID string, level domain.LogLevel, message string) error {
	err := s.withReconnect(ctx, func(pool PgxPool) error {
		_, err := pool.Exec(ctx,
			`INSERT INTO task_logs (task_id, level, message) VALUES ($1, $2, $3)`,
			taskID, string(level), message)
		return err
	})
	if err != nil {
		return fmt.Errorf("op=task_log task_id=%s: %w: %w", taskID, domain.ErrInternal, err)
	}
	return nil
}

// LoadContext loads the agent_type/payload/job_id/name needed to dispatch
// a task.
func (s *Store) LoadContext(ctx context.Context, taskID string) (domain.TaskRow, error) {
	var row domain.TaskRow
	var payloadBytes []byte
	row.ID = taskID

	err := s.withReconnect(ctx, func(pool PgxPool) error {
		var agentType string
		qerr := pool.QueryRow(ctx,
			`SELECT agent_type, payload, job_id, name FROM tasks WHERE id = $1`, taskID,
		).Scan(&agentType, &payloadBytes, &row.JobID, &row.Name)
		row.AgentType = domain.ParseAgentType(agentType)
		return qerr
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TaskRow{}, fmt.Errorf("op=load_context task_id=%s: %w", taskID, domain.ErrTaskNotFound)
	}
	if err != nil {
		return domain.TaskRow{}, fmt.Errorf("op=load_context task_id=%s: %w: %w", taskID, domain.ErrInternal, err)
	}

	if len(payloadBytes) > 0 {
		if jerr := json.Unmarshal(payloadBytes, &row.Payload); jerr != nil {
			return domain.TaskRow{}, fmt.Errorf("op=load_context task_id=%s: decode payload: %w: %w", taskID, domain.ErrInternal, jerr)
		}
	}
	return row, nil
}

// ListJobArtifacts returns every artifact row produced by any task in the
// job, ordered oldest-first, joined through tasks.job_id.
func (s *Store) ListJobArtifacts(ctx context.Context, jobID string) ([]domain.ArtifactRow, error) {
	var rows []domain.ArtifactRow

	err := s.withReconnect(ctx, func(pool PgxPool) error {
		rows = nil
		prows, qerr := pool.Query(ctx,
			`SELECT id, task_id, type, filename, storage_key, mime_type, role, agent_type
			 FROM artifacts JOIN tasks ON artifacts.task_id = tasks.id
			 WHERE tasks.job_id = $1 ORDER BY created_at ASC`, jobID)
		if qerr != nil {
			return qerr
		}
		defer prows.Close()

		for prows.Next() {
			var r domain.ArtifactRow
			var artifactType string
			var agentType string
			if serr := prows.Scan(&r.ID, &r.TaskID, &artifactType, &r.Filename, &r.StorageKey, &r.MimeType, &r.Role, &agentType); serr != nil {
				return serr
			}
			r.JobID = jobID
			r.Type = domain.ArtifactType(artifactType)
			rows = append(rows, r)
		}
		return prows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("op=list_job_artifacts job_id=%s: %w: %w", jobID, domain.ErrInternal, err)
	}
	return rows, nil
}

// GetLatestPDF returns the most recently created current PDF artifact for
// a job, if any.
func (s *Store) GetLatestPDF(ctx context.Context, jobID string) (domain.ArtifactRow, bool, error) {
	var row domain.ArtifactRow
	found := true

	err := s.withReconnect(ctx, func(pool PgxPool) error {
		found = true
		qerr := pool.QueryRow(ctx,
			`SELECT storage_key, filename, role, created_at FROM artifacts
			 WHERE job_id = $1 AND type = 'pdf' AND is_current = TRUE
			 ORDER BY created_at DESC LIMIT 1`, jobID,
		).Scan(&row.StorageKey, &row.Filename, &row.Role, &row.CreatedAt)
		if errors.Is(qerr, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return qerr
	})
	if err != nil {
		return domain.ArtifactRow{}, false, fmt.Errorf("op=get_latest_pdf job_id=%s: %w: %w", jobID, domain.ErrInternal, err)
	}
	row.JobID = jobID
	row.Type = domain.ArtifactPDF
	return row, found, nil
}

// GetTargetTask reads a task's status and result, used when one agent's
// payload references another task's outputs.
func (s *Store) GetTargetTask(ctx context.Context, taskID string) (domain.TaskStatus, map[string]any, error) {
	var status string
	var resultBytes []byte

	err := s.withReconnect(ctx, func(pool PgxPool) error {
		return pool.QueryRow(ctx, `SELECT status, result FROM tasks WHERE id = $1`, taskID).Scan(&status, &resultBytes)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, fmt.Errorf("op=get_target_task task_id=%s: %w", taskID, domain.ErrTaskNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("op=get_target_task task_id=%s: %w: %w", taskID, domain.ErrInternal, err)
	}

	var result map[string]any
	if len(resultBytes) > 0 {
		if jerr := json.Unmarshal(resultBytes, &result); jerr != nil {
			return "", nil, fmt.Errorf("op=get_target_task task_id=%s: decode result: %w: %w", taskID, domain.ErrInternal, jerr)
		}
	}
	return domain.TaskStatus(status), result, nil
}

var _ domain.TaskStore = (*Store)(nil)
