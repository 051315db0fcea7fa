// Package sendemail sends an outbound email via the email transport.
package sendemail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relayhq/relay/pkg/transport"
)

// Action sends one plain-text email. Fields are expected to be interpolated
// already.
type Action struct {
	To      string
	From    string
	Subject string
	Body    string
}

// Deps carries the collaborators the action needs, injected per dispatch.
type Deps struct {
	Sender transport.EmailSender
}

// NewAction creates the action from interpolated step configuration.
func NewAction(config map[string]any) *Action {
	to, _ := config["to"].(string)
	from, _ := config["from"].(string)
	subject, _ := config["subject"].(string)
	body, _ := config["body"].(string)

	return &Action{To: to, From: from, Subject: subject, Body: body}
}

// Execute sends the email. A missing recipient degrades to a skipped result;
// a transport rejection fails the action.
func (a *Action) Execute(ctx context.Context, deps Deps, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "send_email_action")

	if a.To == "" {
		return map[string]any{"skipped": true, "reason": "no recipient"}, nil
	}

	err := deps.Sender.Send(ctx, a.From, a.To, a.Subject, a.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	logger.InfoContext(ctx, "email sent", "to", a.To)

	return map[string]any{"sent": true}, nil
}
