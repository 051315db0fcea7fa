package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/pkg/actions"
	"github.com/relayhq/relay/pkg/channels/gochannel"
	"github.com/relayhq/relay/pkg/eventbus"
	"github.com/relayhq/relay/pkg/events"
	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence/memory"
	"github.com/relayhq/relay/pkg/transport"
)

// flakyStore fails EventByID a configured number of times before delegating,
// and counts calls so tests can pin down how often a handler retried.
type flakyStore struct {
	*memory.Persistence

	mu             sync.Mutex
	eventFailures  int
	eventByIDCalls int
	createRunCalls int
}

func (s *flakyStore) EventByID(ctx context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	s.eventByIDCalls++
	fail := s.eventFailures > 0

	if fail {
		s.eventFailures--
	}
	s.mu.Unlock()

	if fail {
		return nil, errors.New("connection reset")
	}

	return s.Persistence.EventByID(ctx, id)
}

func (s *flakyStore) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	s.createRunCalls++
	s.mu.Unlock()

	return s.Persistence.CreateRun(ctx, run)
}

func (s *flakyStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.eventByIDCalls, s.createRunCalls
}

func saveTaskAutomation(t *testing.T, store *flakyStore) {
	t.Helper()

	automation := &models.Automation{
		ID:          "auto-1",
		OrgID:       "org-1",
		Name:        "follow up on new leads",
		Status:      models.AutomationStatusPublished,
		TriggerType: "contact_created",
	}
	require.NoError(t, store.SaveAutomation(context.Background(), automation))

	require.NoError(t, store.SaveWorkflowStep(context.Background(), &models.WorkflowStep{
		ID:           "auto-1-step-a",
		AutomationID: automation.ID,
		StepOrder:    1,
		StepType:     models.StepTypeAction,
		ActionType:   models.ActionCreateTask,
		Config:       map[string]any{"title": "Call the lead"},
	}))
}

func saveInboundEvent(t *testing.T, store *flakyStore, id string) *models.Event {
	t.Helper()

	event := &models.Event{
		ID:        id,
		OrgID:     "org-1",
		OrgSlug:   "acme",
		EventType: models.EventLeadCreated,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveEvent(context.Background(), event))

	return event
}

func TestWorkerRoutesEventAfterTransientStoreErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := &flakyStore{Persistence: memory.NewPersistence(), eventFailures: 2}
	saveTaskAutomation(t, store)
	event := saveInboundEvent(t, store, "evt-w1")

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	deps := actions.Dependencies{Store: store, Now: time.Now}
	orchestrator := NewOrchestrator(store, bus, deps, slog.Default())
	router := NewRouter(store, orchestrator, slog.Default())
	worker := NewWorker(store, bus, router, orchestrator, nil, slog.Default())

	completed := make(chan struct{}, 1)
	require.NoError(t, bus.Handle(events.RunCompletedEvent, func(context.Context, any) error {
		completed <- struct{}{}

		return nil
	}))

	require.NoError(t, worker.Start(ctx))

	require.NoError(t, bus.Publish(ctx, "org-1", events.EventReceived{
		BaseEvent: events.NewBaseEvent(events.EventReceivedEvent, "org-1"),
		EventID:   event.ID,
		EventKind: event.EventType,
	}))

	select {
	case <-completed:
	case <-ctx.Done():
		t.Fatal("timed out waiting for run completion")
	}

	eventByIDCalls, createRunCalls := store.counts()
	assert.Equal(t, 3, eventByIDCalls)
	assert.Equal(t, 1, createRunCalls)

	assert.Eventually(t, func() bool {
		stored, err := store.EventByID(ctx, event.ID)

		return err == nil && stored.Processed()
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWorkerRetryBudgetExhausted(t *testing.T) {
	store := &flakyStore{Persistence: memory.NewPersistence(), eventFailures: 10}

	deps := actions.Dependencies{Store: store, Now: time.Now}
	orchestrator := NewOrchestrator(store, &recordingPublisher{}, deps, slog.Default())
	router := NewRouter(store, orchestrator, slog.Default())
	worker := NewWorker(store, nil, router, orchestrator, nil, slog.Default())

	err := worker.handleEventReceived(context.Background(), &events.EventReceived{
		BaseEvent: events.NewBaseEvent(events.EventReceivedEvent, "org-1"),
		EventID:   "evt-gone",
	})
	require.Error(t, err)

	// Initial attempt plus the bounded retries, then the error surfaces.
	eventByIDCalls, _ := store.counts()
	assert.Equal(t, 1+dispatchMaxRetries, eventByIDCalls)
}

func TestWorkerDoesNotRetryBusinessStepFailure(t *testing.T) {
	store := &flakyStore{Persistence: memory.NewPersistence()}
	publisher := &recordingPublisher{}
	sms := &stubSMSSender{fail: true}

	automation := &models.Automation{
		ID:          "auto-sms",
		OrgID:       "org-1",
		Name:        "text back",
		Status:      models.AutomationStatusPublished,
		TriggerType: "sms_received",
	}
	require.NoError(t, store.SaveAutomation(context.Background(), automation))
	require.NoError(t, store.SaveWorkflowStep(context.Background(), &models.WorkflowStep{
		ID:           "auto-sms-step-a",
		AutomationID: automation.ID,
		StepOrder:    1,
		StepType:     models.StepTypeAction,
		ActionType:   models.ActionSendSMS,
		Config:       map[string]any{"to": "+15550100", "body": "hi"},
	}))

	event := &models.Event{
		ID:        "evt-w2",
		OrgID:     "org-1",
		OrgSlug:   "acme",
		EventType: models.EventSMSInbound,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveEvent(context.Background(), event))

	deps := actions.Dependencies{
		Store:     store,
		SMS:       sms,
		Messaging: transport.NewStaticMessagingConfig(map[string]string{"acme": "MG-acme"}),
		Now:       time.Now,
	}
	orchestrator := NewOrchestrator(store, publisher, deps, slog.Default())
	router := NewRouter(store, orchestrator, slog.Default())
	worker := NewWorker(store, nil, router, orchestrator, nil, slog.Default())

	err := worker.handleEventReceived(context.Background(), &events.EventReceived{
		BaseEvent: events.NewBaseEvent(events.EventReceivedEvent, "org-1"),
		EventID:   event.ID,
	})
	require.NoError(t, err)

	// The run was created and failed exactly once: the carrier rejection is
	// a business failure, not a retryable infrastructure error.
	_, createRunCalls := store.counts()
	assert.Equal(t, 1, createRunCalls)
	assert.Equal(t, 1, sms.calls)
	require.Len(t, publisher.byType(events.RunFailedEvent), 1)

	stored, err := store.EventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed())
}

func TestWorkerResumeSignalCompletesSuspendedRun(t *testing.T) {
	f := newFixture()
	worker := NewWorker(f.store, nil, f.router, f.orchestrator, nil, slog.Default())

	automation := f.saveAutomation(t, "contact_created", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeWait,
			Config: map[string]any{"delayMinutes": float64(5)}},
		&models.WorkflowStep{StepOrder: 2, StepType: models.StepTypeAction, ActionType: models.ActionCreateTask,
			Config: map[string]any{"title": "Call {{name}}"}})

	event := f.saveEvent(t, models.EventLeadCreated, map[string]any{"name": "Alice"})

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	require.True(t, result.Suspended)

	timers, err := f.store.DueWaitTimers(context.Background(), time.Now().UTC().Add(10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, timers, 1)

	err = worker.handleRunResumeDue(context.Background(), &events.RunResumeDue{
		BaseEvent:    events.NewBaseEvent(events.RunResumeDueEvent, "org-1"),
		TimerID:      timers[0].ID,
		RunID:        timers[0].RunID,
		AutomationID: automation.ID,
		EventID:      event.ID,
		ResumeOrder:  timers[0].ResumeOrder,
		Context:      timers[0].Context,
	})
	require.NoError(t, err)

	run, err := f.store.RunByID(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	tasks := f.store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call Alice", tasks[0].Title)
}

func TestWorkerRejectsUnexpectedPayloadType(t *testing.T) {
	f := newFixture()
	worker := NewWorker(f.store, nil, f.router, f.orchestrator, nil, slog.Default())

	err := worker.handleEventReceived(context.Background(), &events.RunResumeDue{})
	require.ErrorIs(t, err, ErrUnexpectedEventPayload)

	err = worker.handleRunResumeDue(context.Background(), &events.EventReceived{})
	require.ErrorIs(t, err, ErrUnexpectedEventPayload)
}
