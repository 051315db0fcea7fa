// Package webhook posts the full run context as JSON to a configured URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Action delivers the run context to an external endpoint.
type Action struct {
	URL string
}

// Deps carries the collaborators the action needs, injected per dispatch.
type Deps struct {
	Client *http.Client
}

// NewAction creates the action from interpolated step configuration.
func NewAction(config map[string]any) *Action {
	url, _ := config["url"].(string)

	return &Action{URL: url}
}

// Execute posts the context. A missing URL degrades to a skipped result. The
// remote status code is captured but never treated as a failure; only a
// failed delivery attempt fails the action.
func (a *Action) Execute(ctx context.Context, runContext map[string]any, deps Deps, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "webhook_action")

	if a.URL == "" {
		return map[string]any{"skipped": true, "reason": "no url"}, nil
	}

	payload, err := json.Marshal(runContext)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := deps.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook delivery failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	logger.InfoContext(ctx, "webhook delivered", "url", a.URL, "status", resp.StatusCode)

	return map[string]any{"sent": true, "status": resp.StatusCode}, nil
}
