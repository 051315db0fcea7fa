// Package sendsms sends an outbound SMS through the tenant's messaging
// service and appends the resulting message to the audit log.
package sendsms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
	"github.com/relayhq/relay/pkg/transport"
)

// Action sends one SMS. To and Body are expected to be interpolated already.
type Action struct {
	To   string
	Body string
}

// Deps carries the collaborators the action needs, injected per dispatch.
type Deps struct {
	Messaging transport.MessagingConfig
	Sender    transport.SMSSender
	Store     persistence.RecordRepository
	RunID     string
	Now       func() time.Time
}

// NewAction creates the action from interpolated step configuration.
func NewAction(config map[string]any) *Action {
	to, _ := config["to"].(string)
	body, _ := config["body"].(string)

	return &Action{To: to, Body: body}
}

// Execute sends the SMS. A missing recipient or body degrades to a skipped
// result; a missing messaging identity or a transport rejection fails the
// action.
func (a *Action) Execute(ctx context.Context, runContext map[string]any, deps Deps, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "send_sms_action")

	if a.To == "" {
		return map[string]any{"skipped": true, "reason": "no recipient"}, nil
	}

	if a.Body == "" {
		return map[string]any{"skipped": true, "reason": "empty body"}, nil
	}

	orgSlug, _ := runContext[models.ContextKeyOrgSlug].(string)

	serviceIdentity, err := deps.Messaging.ServiceIdentity(orgSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve messaging identity for '%s': %w", orgSlug, err)
	}

	result, err := deps.Sender.Send(ctx, serviceIdentity, a.To, a.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to send sms: %w", err)
	}

	orgID, _ := runContext[models.ContextKeyOrgID].(string)

	message := &models.Message{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		RunID:     deps.RunID,
		To:        a.To,
		Body:      a.Body,
		SID:       result.SID,
		Status:    result.Status,
		Direction: models.MessageOutbound,
		CreatedAt: deps.Now(),
	}

	err = deps.Store.AppendMessage(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to record outbound message: %w", err)
	}

	logger.InfoContext(ctx, "SMS sent", "to", a.To, "sid", result.SID)

	return map[string]any{"sent": true, "sid": result.SID, "status": result.Status}, nil
}
