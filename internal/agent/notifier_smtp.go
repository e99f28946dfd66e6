package agent

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"time"
)

const (
	smtpHost    = "smtp.gmail.com"
	smtpPort    = "587"
	smtpSSLPort = "465"
	smtpTimeout = 20 * time.Second
)

// emailAttachment is the PDF (or other) bytes attached to a notification,
// resolved once per notifier invocation and shared across recipients.
type emailAttachment struct {
	Filename string
	Bytes    []byte
}

// emailSendResult mirrors the aggregate shape both the SMTP and HTTP
// senders produce, merged by the notifier into its final status.
type emailSendResult struct {
	Status     string
	SentCount  int
	ErrorCount int
	Results    []map[string]any
}

// smtpSender delivers one message per recipient via Gmail SMTP, forcing
// an IPv4 connection and preferring STARTTLS on 587 with a fallback to
// implicit TLS on 465.
type smtpSender struct {
	user     string
	password string
}

func newSMTPSender(user, password string) *smtpSender {
	return &smtpSender{user: user, password: password}
}

func (s *smtpSender) Send(ctx context.Context, recipients []string, subject, message string, attachment *emailAttachment) emailSendResult {
	client, err := s.connect()
	if err != nil {
		return allFailed("smtp_error", recipients, fmt.Sprintf("smtp_error: %v", err))
	}
	defer client.Close()
	defer client.Quit()

	if err := client.Auth(smtp.PlainAuth("", s.user, s.password, smtpHost)); err != nil {
		return allFailed("smtp_error", recipients, fmt.Sprintf("smtp_error: auth failed: %v", err))
	}

	results := make([]map[string]any, 0, len(recipients))
	sent, failed := 0, 0
	for _, r := range recipients {
		if err := s.sendOne(client, r, subject, message, attachment); err != nil {
			failed++
			results = append(results, map[string]any{"to": r, "ok": false, "error": err.Error()})
			continue
		}
		sent++
		results = append(results, map[string]any{"to": r, "ok": true})
	}

	return emailSendResult{Status: aggregateStatus(sent, failed), SentCount: sent, ErrorCount: failed, Results: results}
}

func (s *smtpSender) connect() (*smtp.Client, error) {
	client, err := s.connectSTARTTLS()
	if err != nil {
		return s.connectSSL()
	}
	return client, nil
}

// resolveIPv4 forces IPv4 resolution so the worker never falls back to
// an IPv6 address the outbound network path doesn't route.
func resolveIPv4(host string) (string, error) {
	ips, err := net.DefaultResolver.LookupIP(context.Background(), "ip4", host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("no IPv4 address found for %s", host)
	}
	return ips[0].String(), nil
}

func (s *smtpSender) connectSTARTTLS() (*smtp.Client, error) {
	ip, err := resolveIPv4(smtpHost)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTimeout("tcp4", net.JoinHostPort(ip, smtpPort), smtpTimeout)
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, smtpHost)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := client.StartTLS(&tls.Config{ServerName: smtpHost, MinVersion: tls.VersionTLS12}); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (s *smtpSender) connectSSL() (*smtp.Client, error) {
	ip, err := resolveIPv4(smtpHost)
	if err != nil {
		return nil, err
	}
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: smtpTimeout}, "tcp4",
		net.JoinHostPort(ip, smtpSSLPort), &tls.Config{ServerName: smtpHost, MinVersion: tls.VersionTLS12})
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, smtpHost)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

func (s *smtpSender) sendOne(client *smtp.Client, recipient, subject, message string, attachment *emailAttachment) error {
	msg, err := buildMIMEMessage(s.user, recipient, subject, message, attachment)
	if err != nil {
		return err
	}
	if err := client.Reset(); err != nil {
		return err
	}
	if err := client.Mail(s.user); err != nil {
		return err
	}
	if err := client.Rcpt(recipient); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

// buildMIMEMessage composes an RFC 5322 multipart message with an
// optional base64-encoded PDF attachment.
func buildMIMEMessage(from, to, subject, body string, attachment *emailAttachment) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/mixed; boundary=%q\r\n\r\n",
		from, to, subject, writer.Boundary(),
	)

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset="utf-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(body)); err != nil {
		return nil, err
	}

	if attachment != nil {
		attPart, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/pdf"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf(`attachment; filename="%s"`, attachment.Filename)},
		})
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(attachment.Bytes)
		if _, err := attPart.Write([]byte(encoded)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return append([]byte(header), buf.Bytes()...), nil
}

func allFailed(status string, recipients []string, errMsg string) emailSendResult {
	results := make([]map[string]any, len(recipients))
	for i, r := range recipients {
		results[i] = map[string]any{"to": r, "ok": false, "error": errMsg}
	}
	return emailSendResult{Status: status, SentCount: 0, ErrorCount: len(recipients), Results: results}
}

func aggregateStatus(sent, failed int) string {
	switch {
	case failed == 0:
		return "sent"
	case sent == 0:
		return "failed"
	default:
		return "partial"
	}
}
