// Package actions dispatches workflow action steps to their implementations.
// The action set is closed: every supported action has a compile-time case
// here, and anything else resolves to a skipped result.
package actions

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/relayhq/relay/pkg/actions/createtask"
	"github.com/relayhq/relay/pkg/actions/sendemail"
	"github.com/relayhq/relay/pkg/actions/sendsms"
	"github.com/relayhq/relay/pkg/actions/updatefield"
	"github.com/relayhq/relay/pkg/actions/webhook"
	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
	"github.com/relayhq/relay/pkg/transport"
)

// Dependencies carries every collaborator an action may need. All fields are
// injected explicitly; actions hold no globals. RunID is stamped per dispatch
// by the caller so side-effect records can be traced back to their run.
type Dependencies struct {
	Store      persistence.RecordRepository
	SMS        transport.SMSSender
	Email      transport.EmailSender
	Messaging  transport.MessagingConfig
	HTTPClient *http.Client
	Now        func() time.Time
	RunID      string
}

func (d Dependencies) now() func() time.Time {
	if d.Now != nil {
		return d.Now
	}

	return time.Now
}

func (d Dependencies) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}

	return http.DefaultClient
}

// Dispatch runs one action against the run context. Config values are
// expected to be interpolated already. An unrecognized action type yields a
// skipped result, never an error.
func Dispatch(
	ctx context.Context,
	actionType models.ActionType,
	config map[string]any,
	runContext map[string]any,
	deps Dependencies,
	logger *slog.Logger,
) (map[string]any, error) {
	switch actionType {
	case models.ActionSendSMS:
		return sendsms.NewAction(config).Execute(ctx, runContext, sendsms.Deps{
			Messaging: deps.Messaging,
			Sender:    deps.SMS,
			Store:     deps.Store,
			RunID:     deps.RunID,
			Now:       deps.now(),
		}, logger)
	case models.ActionSendEmail:
		return sendemail.NewAction(config).Execute(ctx, sendemail.Deps{
			Sender: deps.Email,
		}, logger)
	case models.ActionCreateTask:
		return createtask.NewAction(config).Execute(ctx, runContext, createtask.Deps{
			Store: deps.Store,
			RunID: deps.RunID,
			Now:   deps.now(),
		}, logger)
	case models.ActionUpdateField:
		return updatefield.NewAction(config).Execute(ctx, runContext, updatefield.Deps{
			Store: deps.Store,
		}, logger)
	case models.ActionWebhook:
		return webhook.NewAction(config).Execute(ctx, runContext, webhook.Deps{
			Client: deps.httpClient(),
		}, logger)
	default:
		logger.WarnContext(ctx, "unknown action type, skipping", "action_type", string(actionType))

		return map[string]any{"skipped": true, "reason": "unknown actionType: " + string(actionType)}, nil
	}
}
