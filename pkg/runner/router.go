package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

const (
	dispatchMaxRetries      = 3
	dispatchInitialInterval = 500 * time.Millisecond
)

// AutomationResult is the per-automation outcome of routing one event.
type AutomationResult struct {
	AutomationID string
	RunID        string
	Status       models.RunStatus
	Suspended    bool
	Error        string
}

// RouteResult aggregates the outcome of routing one event.
type RouteResult struct {
	MatchedCount int
	Results      []AutomationResult
}

// Router matches inbound events to published automations and dispatches one
// run per match.
type Router struct {
	store        persistence.Persistence
	orchestrator *Orchestrator
	logger       *slog.Logger
	now          func() time.Time
}

func NewRouter(store persistence.Persistence, orchestrator *Orchestrator, logger *slog.Logger) *Router {
	return &Router{
		store:        store,
		orchestrator: orchestrator,
		logger:       logger.With("module", "router"),
		now:          time.Now,
	}
}

// Route matches the event and runs every matched automation sequentially.
// The event is marked processed exactly once, after all matched automations
// have been dispatched, regardless of their individual outcomes. Zero
// matches is a normal outcome, not an error.
func (r *Router) Route(ctx context.Context, event *models.Event) (*RouteResult, error) {
	logger := r.logger.With("event_id", event.ID, "event_type", string(event.EventType), "org_id", event.OrgID)

	if event.Processed() {
		logger.InfoContext(ctx, "Event already processed, skipping")

		return &RouteResult{}, nil
	}

	triggerType := models.TriggerTypeFor(event.EventType)

	candidates, err := r.store.PublishedAutomationsByTrigger(ctx, event.OrgID, triggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to load automations for trigger %s: %w", triggerType, err)
	}

	matched := make([]*models.Automation, 0, len(candidates))

	for _, automation := range candidates {
		if automation.Matches(event) {
			matched = append(matched, automation)
		}
	}

	result := &RouteResult{MatchedCount: len(matched)}

	if len(matched) == 0 {
		logger.InfoContext(ctx, "No automations matched", "trigger_type", triggerType)

		return result, r.markProcessed(ctx, event, logger)
	}

	logger.InfoContext(ctx, "Dispatching matched automations", "count", len(matched))

	for _, automation := range matched {
		result.Results = append(result.Results, r.dispatch(ctx, automation, event, logger))
	}

	return result, r.markProcessed(ctx, event, logger)
}

// dispatch runs one automation, retrying with exponential backoff when the
// run record cannot be created (infrastructure error). A run that was
// created but failed on a business step is not retried.
func (r *Router) dispatch(ctx context.Context, automation *models.Automation, event *models.Event, logger *slog.Logger) AutomationResult {
	var runResult *RunResult

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(dispatchInitialInterval)),
		dispatchMaxRetries,
	), ctx)

	err := backoff.Retry(func() error {
		var runErr error

		runResult, runErr = r.orchestrator.Run(ctx, automation, event)

		return runErr
	}, policy)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to dispatch automation",
			"automation_id", automation.ID,
			"error", err)

		return AutomationResult{
			AutomationID: automation.ID,
			Status:       models.RunStatusFailed,
			Error:        err.Error(),
		}
	}

	return AutomationResult{
		AutomationID: automation.ID,
		RunID:        runResult.RunID,
		Status:       runResult.Status,
		Suspended:    runResult.Suspended,
		Error:        runResult.Error,
	}
}

func (r *Router) markProcessed(ctx context.Context, event *models.Event, logger *slog.Logger) error {
	err := r.store.MarkEventProcessed(ctx, event.ID, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	logger.InfoContext(ctx, "Event processed")

	return nil
}
