package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/relayhq/relay/pkg/eventbus"
	"github.com/relayhq/relay/pkg/events"
	"github.com/relayhq/relay/pkg/otelhelper"
	"github.com/relayhq/relay/pkg/persistence"
)

// ErrUnexpectedEventPayload is returned when a bus message decodes to an
// unexpected type for its declared event type.
var ErrUnexpectedEventPayload = errors.New("unexpected event payload type")

// Worker binds the router and orchestrator to the event bus: inbound events
// flow through Route, due timers flow through Resume.
type Worker struct {
	store        persistence.Persistence
	bus          eventbus.EventBus
	router       *Router
	orchestrator *Orchestrator
	tracer       trace.Tracer
	logger       *slog.Logger
}

func NewWorker(
	store persistence.Persistence,
	bus eventbus.EventBus,
	router *Router,
	orchestrator *Orchestrator,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Worker {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("relay-engine")
	}

	return &Worker{
		store:        store,
		bus:          bus,
		router:       router,
		orchestrator: orchestrator,
		tracer:       tracer,
		logger:       logger.With("module", "engine_worker"),
	}
}

// Start registers the handlers and begins consuming. It returns once the
// subscription is established.
func (w *Worker) Start(ctx context.Context) error {
	err := w.bus.Handle(events.EventReceivedEvent, w.handleEventReceived)
	if err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	err = w.bus.Handle(events.RunResumeDueEvent, w.handleRunResumeDue)
	if err != nil {
		return fmt.Errorf("failed to register resume handler: %w", err)
	}

	err = w.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	w.logger.InfoContext(ctx, "Engine worker started")

	return nil
}

// handleEventReceived loads the stored event and routes it. Infrastructure
// errors are retried with backoff before the message is redelivered.
func (w *Worker) handleEventReceived(ctx context.Context, message any) error {
	received, ok := message.(*events.EventReceived)
	if !ok {
		return ErrUnexpectedEventPayload
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "engine.route_event",
		attribute.String(otelhelper.EventIDKey, received.EventID),
		attribute.String(otelhelper.EventTypeKey, string(received.EventKind)),
		attribute.String(otelhelper.OrgIDKey, received.OrgID),
	)
	defer span.End()

	err := w.withRetry(ctx, func() error {
		event, err := w.store.EventByID(ctx, received.EventID)
		if err != nil {
			return fmt.Errorf("failed to load event %s: %w", received.EventID, err)
		}

		_, err = w.router.Route(ctx, event)

		return err
	})
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

func (w *Worker) handleRunResumeDue(ctx context.Context, message any) error {
	resume, ok := message.(*events.RunResumeDue)
	if !ok {
		return ErrUnexpectedEventPayload
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "engine.resume_run",
		attribute.String(otelhelper.RunIDKey, resume.RunID),
		attribute.String(otelhelper.TimerIDKey, resume.TimerID),
		attribute.String(otelhelper.AutomationIDKey, resume.AutomationID),
	)
	defer span.End()

	err := w.withRetry(ctx, func() error {
		_, err := w.orchestrator.Resume(ctx, *resume)

		return err
	})
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

func (w *Worker) withRetry(ctx context.Context, operation func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(dispatchInitialInterval)),
		dispatchMaxRetries,
	), ctx)

	return backoff.Retry(operation, policy)
}
