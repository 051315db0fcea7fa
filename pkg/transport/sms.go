// Package transport provides the outbound SMS and email senders the action
// dispatcher delegates to.
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

const defaultTimeoutSeconds = 30

// SMSResult is the transport's acknowledgement of an accepted message.
type SMSResult struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// SMSSender sends one outbound SMS through the tenant's messaging service.
type SMSSender interface {
	Send(ctx context.Context, serviceIdentity, to, body string) (*SMSResult, error)
}

// HTTPSMSSender posts messages to the messaging provider's REST API.
type HTTPSMSSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPSMSSender creates a sender against the given provider base URL.
func NewHTTPSMSSender(baseURL, apiKey string, logger *slog.Logger) *HTTPSMSSender {
	return &HTTPSMSSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger:  logger.With("module", "sms_sender"),
	}
}

type smsRequest struct {
	ServiceIdentity string `json:"service_identity"`
	To              string `json:"to"`
	Body            string `json:"body"`
}

// Send posts the message and returns the provider's sid and status. Any
// non-2xx response is a transport error.
func (s *HTTPSMSSender) Send(ctx context.Context, serviceIdentity, to, body string) (*SMSResult, error) {
	payload, err := json.Marshal(smsRequest{
		ServiceIdentity: serviceIdentity,
		To:              to,
		Body:            body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create sms request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, fmt.Errorf("sms transport rejected message (status %d): %s", resp.StatusCode, string(raw))
	}

	var result SMSResult

	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sms response: %w", err)
	}

	return &result, nil
}
