package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// EmailSender sends one outbound email on behalf of a tenant.
type EmailSender interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// HTTPEmailSender posts emails to the email provider's REST API.
type HTTPEmailSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPEmailSender creates a sender against the given provider base URL.
func NewHTTPEmailSender(baseURL, apiKey string, logger *slog.Logger) *HTTPEmailSender {
	return &HTTPEmailSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger:  logger.With("module", "email_sender"),
	}
}

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send posts the email. Any non-2xx response is a transport error.
func (s *HTTPEmailSender) Send(ctx context.Context, from, to, subject, body string) error {
	payload, err := json.Marshal(emailRequest{
		From:    from,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("email transport rejected message (status %d): %s", resp.StatusCode, string(raw))
	}

	return nil
}
