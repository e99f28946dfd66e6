// Package orchestrator implements the C3 RPC client against the
// orchestrator's internal task endpoints.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// Client is a thin net/http wrapper around the orchestrator's
// /internal/tasks/{id}/{start,complete,review,fail} endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds an orchestrator client bound to baseURL, with requests
// carrying the given timeout and traced via otelhttp.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("op=orchestrator_post path=%s: encode body: %w: %w", path, domain.ErrInternal, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("op=orchestrator_post path=%s: %w: %w", path, domain.ErrInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

// Start calls POST /internal/tasks/{id}/start.
func (c *Client) Start(ctx context.Context, taskID string) (domain.StartResult, error) {
	resp, err := c.post(ctx, fmt.Sprintf("/internal/tasks/%s/start", taskID), struct{}{})
	if err != nil {
		return domain.StartRefused, fmt.Errorf("op=orchestrator_start task_id=%s: %w: %w", taskID, domain.ErrUpstreamTimeout, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return domain.StartOwned, nil
	case http.StatusConflict:
		return domain.StartAlreadyRunning, nil
	default:
		return domain.StartRefused, nil
	}
}

type completeBody struct {
	Result   map[string]any      `json:"result"`
	Artifact *domain.ArtifactRef `json:"artifact,omitempty"`
}

// Complete calls POST /internal/tasks/{id}/complete, retrying non-409/200
// responses up to 3 times with a fixed 1s/2s/4s backoff.
func (c *Client) Complete(ctx context.Context, taskID string, result map[string]any, artifact *domain.ArtifactRef) error {
	body := completeBody{Result: result, Artifact: artifact}
	path := fmt.Sprintf("/internal/tasks/%s/complete", taskID)

	delays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error

	for attempt := 0; attempt <= len(delays); attempt++ {
		resp, err := c.post(ctx, path, body)
		if err != nil {
			lastErr = fmt.Errorf("op=orchestrator_complete task_id=%s: %w: %w", taskID, domain.ErrUpstreamTimeout, err)
		} else {
			status := resp.StatusCode
			resp.Body.Close()
			if status == http.StatusOK || status == http.StatusConflict {
				return nil
			}
			lastErr = fmt.Errorf("op=orchestrator_complete task_id=%s: status=%d: %w", taskID, status, domain.ErrUpstreamTimeout)
		}

		if attempt < len(delays) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delays[attempt]):
			}
		}
	}
	return lastErr
}

// Review calls POST /internal/tasks/{id}/review. Any non-200 response is
// surfaced as an error so the dispatcher's retry path engages.
func (c *Client) Review(ctx context.Context, taskID string, req domain.ReviewRequest) error {
	resp, err := c.post(ctx, fmt.Sprintf("/internal/tasks/%s/review", taskID), req)
	if err != nil {
		return fmt.Errorf("op=orchestrator_review task_id=%s: %w: %w", taskID, domain.ErrUpstreamTimeout, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("op=orchestrator_review task_id=%s: status=%d: %w", taskID, resp.StatusCode, domain.ErrUpstreamTimeout)
	}
	return nil
}

type failBody struct {
	Error    string              `json:"error"`
	Artifact *domain.ArtifactRef `json:"artifact,omitempty"`
}

// Fail calls POST /internal/tasks/{id}/fail best-effort: the returned
// error is logged by the caller but never changes the ack decision.
func (c *Client) Fail(ctx context.Context, taskID string, errMsg string, artifact *domain.ArtifactRef) error {
	resp, err := c.post(ctx, fmt.Sprintf("/internal/tasks/%s/fail", taskID), failBody{Error: errMsg, Artifact: artifact})
	if err != nil {
		return fmt.Errorf("op=orchestrator_fail task_id=%s: %w: %w", taskID, domain.ErrUpstreamTimeout, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("op=orchestrator_fail task_id=%s: status=%d: %w", taskID, resp.StatusCode, domain.ErrUpstreamTimeout)
	}
	return nil
}

var _ domain.Orchestrator = (*Client)(nil)
