package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const sendgridEndpoint = "https://api.sendgrid.com/v3/mail/send"

// httpSender delivers notifications through SendGrid's v3 mail/send API,
// the HTTP transport used when EMAIL_PROVIDER=http is forced, and in auto
// mode when SMTP credentials aren't configured or SMTP delivered nothing.
type httpSender struct {
	apiKey    string
	fromEmail string
	client    *http.Client
}

func newHTTPSender(apiKey, fromEmail string) *httpSender {
	return &httpSender{apiKey: apiKey, fromEmail: fromEmail, client: &http.Client{Timeout: 20 * time.Second}}
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridAddress struct {
	Email string `json:"email"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridAttachment struct {
	Content     string `json:"content"`
	Filename    string `json:"filename"`
	Type        string `json:"type"`
	Disposition string `json:"disposition"`
}

type sendgridRequest struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
	Attachments      []sendgridAttachment      `json:"attachments,omitempty"`
}

// Send issues one SendGrid request per recipient so a single bad address
// doesn't fail delivery to the rest of the list.
func (s *httpSender) Send(ctx context.Context, recipients []string, subject, message string, attachment *emailAttachment) emailSendResult {
	body := sendgridRequest{
		From:    sendgridAddress{Email: s.fromEmail},
		Subject: subject,
		Content: []sendgridContent{{Type: "text/plain", Value: message}},
	}
	if attachment != nil {
		body.Attachments = []sendgridAttachment{{
			Content:     base64.StdEncoding.EncodeToString(attachment.Bytes),
			Filename:    attachment.Filename,
			Type:        "application/pdf",
			Disposition: "attachment",
		}}
	}

	results := make([]map[string]any, 0, len(recipients))
	sent, failed := 0, 0
	for _, r := range recipients {
		reqBody := body
		reqBody.Personalizations = []sendgridPersonalization{{To: []sendgridAddress{{Email: r}}}}
		if err := s.sendOne(ctx, reqBody); err != nil {
			failed++
			results = append(results, map[string]any{"to": r, "ok": false, "error": err.Error()})
			continue
		}
		sent++
		results = append(results, map[string]any{"to": r, "ok": true})
	}

	status := aggregateStatus(sent, failed)
	if status == "failed" {
		status = "sendgrid_error"
	}
	return emailSendResult{Status: status, SentCount: sent, ErrorCount: failed, Results: results}
}

func (s *httpSender) sendOne(ctx context.Context, body sendgridRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendgridEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
