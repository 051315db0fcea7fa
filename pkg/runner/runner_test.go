package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/pkg/actions"
	"github.com/relayhq/relay/pkg/eventbus"
	"github.com/relayhq/relay/pkg/events"
	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence/memory"
	"github.com/relayhq/relay/pkg/transport"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.published = append(p.published, event)

	return nil
}

func (p *recordingPublisher) byType(eventType events.EventType) []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []eventbus.Event

	for _, event := range p.published {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

type stubSMSSender struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	calls int
}

func (s *stubSMSSender) Send(_ context.Context, _, to, _ string) (*transport.SMSResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if s.fail {
		return nil, errors.New("carrier rejected message")
	}

	s.sent = append(s.sent, to)

	return &transport.SMSResult{SID: "SM1", Status: "queued"}, nil
}

type fixture struct {
	store        *memory.Persistence
	publisher    *recordingPublisher
	sms          *stubSMSSender
	orchestrator *Orchestrator
	router       *Router
}

func newFixture() *fixture {
	store := memory.NewPersistence()
	publisher := &recordingPublisher{}
	sms := &stubSMSSender{}

	deps := actions.Dependencies{
		Store:     store,
		SMS:       sms,
		Messaging: transport.NewStaticMessagingConfig(map[string]string{"acme": "MG-acme"}),
		Now:       time.Now,
	}

	orchestrator := NewOrchestrator(store, publisher, deps, slog.Default())

	return &fixture{
		store:        store,
		publisher:    publisher,
		sms:          sms,
		orchestrator: orchestrator,
		router:       NewRouter(store, orchestrator, slog.Default()),
	}
}

func (f *fixture) saveAutomation(t *testing.T, triggerType, triggerValue string, steps ...*models.WorkflowStep) *models.Automation {
	t.Helper()

	automation := &models.Automation{
		ID:           "auto-" + triggerType,
		OrgID:        "org-1",
		Name:         "test automation",
		Status:       models.AutomationStatusPublished,
		TriggerType:  triggerType,
		TriggerValue: triggerValue,
	}

	err := f.store.SaveAutomation(context.Background(), automation)
	require.NoError(t, err)

	for i, step := range steps {
		step.AutomationID = automation.ID
		if step.ID == "" {
			step.ID = automation.ID + "-step-" + string(rune('a'+i))
		}

		err := f.store.SaveWorkflowStep(context.Background(), step)
		require.NoError(t, err)
	}

	return automation
}

func (f *fixture) saveEvent(t *testing.T, eventType models.EventType, payload map[string]any) *models.Event {
	t.Helper()

	event := &models.Event{
		ID:        "event-1",
		OrgID:     "org-1",
		OrgSlug:   "acme",
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	err := f.store.SaveEvent(context.Background(), event)
	require.NoError(t, err)

	return event
}

func TestRouteNoMatchesMarksProcessed(t *testing.T) {
	f := newFixture()
	event := f.saveEvent(t, models.EventLeadCreated, nil)

	result, err := f.router.Route(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MatchedCount)

	stored, err := f.store.EventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed())
}

func TestRouteMarksProcessedOnceEvenWhenRunFails(t *testing.T) {
	f := newFixture()
	f.sms.fail = true

	f.saveAutomation(t, "sms_received", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeAction, ActionType: models.ActionSendSMS,
			Config: map[string]any{"to": "{{from}}", "body": "hi"}})

	event := f.saveEvent(t, models.EventSMSInbound, map[string]any{"from": "+15550100"})

	result, err := f.router.Route(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, models.RunStatusFailed, result.Results[0].Status)

	stored, err := f.store.EventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed())
}

func TestRouteTriggerValueNarrowing(t *testing.T) {
	f := newFixture()

	f.saveAutomation(t, "stage_changed", "won")

	event := f.saveEvent(t, models.EventStageChanged, map[string]any{"triggerValue": "lost"})

	result, err := f.router.Route(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MatchedCount)
}

func TestRouteAlreadyProcessedEventIsNoop(t *testing.T) {
	f := newFixture()
	event := f.saveEvent(t, models.EventLeadCreated, nil)

	_, err := f.router.Route(context.Background(), event)
	require.NoError(t, err)

	stored, err := f.store.EventByID(context.Background(), event.ID)
	require.NoError(t, err)

	result, err := f.router.Route(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MatchedCount)
}

func TestRunWithZeroStepsCompletes(t *testing.T) {
	f := newFixture()
	automation := f.saveAutomation(t, "contact_created", "")
	event := f.saveEvent(t, models.EventLeadCreated, nil)

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, 0, result.StepsExecuted)

	run, err := f.store.RunByID(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
}

func TestConditionStopOnFalseHaltsAndCompletes(t *testing.T) {
	f := newFixture()
	automation := f.saveAutomation(t, "sms_received", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeCondition,
			Config: map[string]any{"field": "body", "operator": "contains", "value": "STOP", "stopOnFalse": true}},
		&models.WorkflowStep{StepOrder: 2, StepType: models.StepTypeAction, ActionType: models.ActionSendSMS,
			Config: map[string]any{"to": "{{from}}", "body": "Goodbye"}})

	event := f.saveEvent(t, models.EventSMSInbound, map[string]any{"from": "+15550100", "body": "HELLO"})

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, 1, result.StepsExecuted)
	assert.Equal(t, 0, f.sms.calls)

	steps, err := f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepLogCompleted, steps[0].Status)
	assert.Equal(t, false, steps[0].Result["conditionPassed"])
	assert.Equal(t, true, steps[0].Result["stopped"])
}

func TestActionFailureFailsRunAndAborts(t *testing.T) {
	f := newFixture()
	f.sms.fail = true

	automation := f.saveAutomation(t, "sms_received", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeAction, ActionType: models.ActionSendSMS,
			Config: map[string]any{"to": "{{from}}", "body": "hi"}},
		&models.WorkflowStep{StepOrder: 2, StepType: models.StepTypeAction, ActionType: models.ActionCreateTask,
			Config: map[string]any{"title": "never created"}})

	event := f.saveEvent(t, models.EventSMSInbound, map[string]any{"from": "+15550100"})

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.Contains(t, result.Error, "carrier rejected")

	run, err := f.store.RunByID(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "carrier rejected")

	steps, err := f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepLogFailed, steps[0].Status)
	assert.Contains(t, steps[0].ErrorMessage, "carrier rejected")

	assert.Empty(t, f.store.Tasks())

	failed := f.publisher.byType(events.RunFailedEvent)
	require.Len(t, failed, 1)
}

func TestStopScenarioEndToEnd(t *testing.T) {
	f := newFixture()

	f.saveAutomation(t, "sms_received", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeCondition,
			Config: map[string]any{"field": "body", "operator": "contains", "value": "STOP", "stopOnFalse": false}},
		&models.WorkflowStep{StepOrder: 2, StepType: models.StepTypeAction, ActionType: models.ActionSendSMS,
			Config: map[string]any{"to": "{{from}}", "body": "Goodbye"}})

	event := f.saveEvent(t, models.EventSMSInbound, map[string]any{"from": "+15550100", "body": "STOP"})

	result, err := f.router.Route(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, models.RunStatusCompleted, result.Results[0].Status)

	steps, err := f.store.RunStepsByRun(context.Background(), result.Results[0].RunID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepLogCompleted, steps[0].Status)
	assert.Equal(t, models.StepLogCompleted, steps[1].Status)

	require.Equal(t, []string{"+15550100"}, f.sms.sent)
}

func TestWaitStepZeroDelayDoesNotSuspend(t *testing.T) {
	f := newFixture()
	automation := f.saveAutomation(t, "contact_created", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeWait,
			Config: map[string]any{"delayMinutes": float64(0), "delayHours": float64(0), "delayDays": float64(0)}},
		&models.WorkflowStep{StepOrder: 2, StepType: models.StepTypeAction, ActionType: models.ActionCreateTask,
			Config: map[string]any{"title": "Call the lead"}})

	event := f.saveEvent(t, models.EventLeadCreated, nil)

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.False(t, result.Suspended)
	assert.Equal(t, 2, result.StepsExecuted)

	steps, err := f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, false, steps[0].Result["waited"])
}

func TestWaitStepSuspendsAndResumes(t *testing.T) {
	f := newFixture()
	automation := f.saveAutomation(t, "contact_created", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeWait,
			Config: map[string]any{"delayMinutes": float64(5)}},
		&models.WorkflowStep{StepOrder: 2, StepType: models.StepTypeAction, ActionType: models.ActionCreateTask,
			Config: map[string]any{"title": "Call {{name}}"}})

	event := f.saveEvent(t, models.EventLeadCreated, map[string]any{"name": "Alice"})

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.True(t, result.Suspended)
	assert.Equal(t, models.RunStatusRunning, result.Status)
	assert.Equal(t, 1, result.StepsExecuted)

	// The wait step is logged before suspension, and no task exists yet.
	steps, err := f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, true, steps[0].Result["waited"])
	assert.Equal(t, 300, steps[0].Result["seconds"])
	assert.Empty(t, f.store.Tasks())

	timers, err := f.store.DueWaitTimers(context.Background(), time.Now().UTC().Add(10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, timers, 1)
	timer := timers[0]
	assert.Equal(t, result.RunID, timer.RunID)
	assert.Equal(t, 2, timer.ResumeOrder)

	suspended := f.publisher.byType(events.RunSuspendedEvent)
	require.Len(t, suspended, 1)

	resumeResult, err := f.orchestrator.Resume(context.Background(), events.RunResumeDue{
		TimerID:      timer.ID,
		RunID:        timer.RunID,
		AutomationID: automation.ID,
		EventID:      event.ID,
		ResumeOrder:  timer.ResumeOrder,
		Context:      timer.Context,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, resumeResult.Status)
	assert.Equal(t, 1, resumeResult.StepsExecuted)

	tasks := f.store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call Alice", tasks[0].Title)

	steps, err = f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}

func TestResumeOfFinishedRunIsNoop(t *testing.T) {
	f := newFixture()
	automation := f.saveAutomation(t, "contact_created", "")
	event := f.saveEvent(t, models.EventLeadCreated, nil)

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusCompleted, result.Status)

	resumeResult, err := f.orchestrator.Resume(context.Background(), events.RunResumeDue{
		RunID:        result.RunID,
		AutomationID: automation.ID,
		EventID:      event.ID,
		ResumeOrder:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, resumeResult.Status)
	assert.Equal(t, 0, resumeResult.StepsExecuted)
}

func TestUnknownStepTypeIsSkippedNotFailed(t *testing.T) {
	f := newFixture()
	automation := f.saveAutomation(t, "contact_created", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepType("teleport"), Config: map[string]any{}},
		&models.WorkflowStep{StepOrder: 2, StepType: models.StepTypeAction, ActionType: models.ActionCreateTask,
			Config: map[string]any{"title": "still runs"}})

	event := f.saveEvent(t, models.EventLeadCreated, nil)

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, 2, result.StepsExecuted)

	steps, err := f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, true, steps[0].Result["skipped"])
	require.Len(t, f.store.Tasks(), 1)
}

func TestTriggerStepIsEntryMarkerOnly(t *testing.T) {
	f := newFixture()
	automation := f.saveAutomation(t, "contact_created", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeTrigger, Config: map[string]any{}},
		&models.WorkflowStep{StepOrder: 2, StepType: models.StepTypeAction, ActionType: models.ActionCreateTask,
			Config: map[string]any{"title": "follow up"}})

	event := f.saveEvent(t, models.EventLeadCreated, nil)

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)

	steps, err := f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "trigger step", steps[0].Result["reason"])
}

func TestExecuteWaitStepDelayArithmetic(t *testing.T) {
	step := &models.WorkflowStep{
		StepType: models.StepTypeWait,
		Config:   map[string]any{"delayMinutes": float64(1), "delayHours": float64(1), "delayDays": float64(1)},
	}

	outcome := executeWaitStep(step)
	assert.Equal(t, 60+3600+86400, outcome.Result["seconds"])
	assert.Equal(t, time.Duration(60+3600+86400)*time.Second, outcome.SuspendFor)
}

func TestInvalidActionConfigFailsRunBeforeTransport(t *testing.T) {
	f := newFixture()

	// send_email without a subject key is structurally invalid; the run must
	// fail on validation instead of handing the config to the transport. The
	// fixture carries no email sender, so reaching it would panic.
	automation := f.saveAutomation(t, "contact_created", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeAction, ActionType: models.ActionSendEmail,
			Config: map[string]any{"to": "jo@acme.test", "body": "welcome aboard"}})

	event := f.saveEvent(t, models.EventLeadCreated, nil)

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.Contains(t, result.Error, "subject")

	steps, err := f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepLogFailed, steps[0].Status)
	assert.Contains(t, steps[0].ErrorMessage, "action config rejected")

	require.Len(t, f.publisher.byType(events.RunFailedEvent), 1)
}

func TestActionConfigWithEmptyInterpolationStillSkips(t *testing.T) {
	f := newFixture()

	// Keys that are present but resolve to empty strings pass validation and
	// land in the action's own skip rule.
	automation := f.saveAutomation(t, "sms_received", "",
		&models.WorkflowStep{StepOrder: 1, StepType: models.StepTypeAction, ActionType: models.ActionSendSMS,
			Config: map[string]any{"to": "{{missing.path}}", "body": "hi"}})

	event := f.saveEvent(t, models.EventSMSInbound, nil)

	result, err := f.orchestrator.Run(context.Background(), automation, event)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, 0, f.sms.calls)

	steps, err := f.store.RunStepsByRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, true, steps[0].Result["skipped"])
}
