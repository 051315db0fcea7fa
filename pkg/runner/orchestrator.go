package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relayhq/relay/pkg/actions"
	"github.com/relayhq/relay/pkg/eventbus"
	"github.com/relayhq/relay/pkg/events"
	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

// RunResult summarizes one orchestrated (or resumed) run segment.
type RunResult struct {
	RunID         string
	Status        models.RunStatus
	StepsExecuted int
	Suspended     bool
	Error         string
}

// Orchestrator drives one run of one automation for one event. Step-log and
// run-status writes are durable before any method returns.
type Orchestrator struct {
	store     persistence.Persistence
	publisher eventbus.EventPublisher
	deps      actions.Dependencies
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator using the given action
// dependencies. The RunID field of deps is stamped per run.
func NewOrchestrator(
	store persistence.Persistence,
	publisher eventbus.EventPublisher,
	deps actions.Dependencies,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		publisher: publisher,
		deps:      deps,
		logger:    logger.With("module", "orchestrator"),
		now:       time.Now,
	}
}

// Run creates a run record and executes the automation's steps from the top.
// It returns an error only when the run record itself cannot be created; a
// step failure is recorded on the run and reported in the result.
func (o *Orchestrator) Run(ctx context.Context, automation *models.Automation, event *models.Event) (*RunResult, error) {
	run := &models.WorkflowRun{
		ID:           uuid.New().String(),
		OrgID:        automation.OrgID,
		AutomationID: automation.ID,
		EventID:      event.ID,
		Status:       models.RunStatusRunning,
		CreatedAt:    o.now().UTC(),
	}

	err := o.store.CreateRun(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	logger := o.logger.With("run_id", run.ID, "automation_id", automation.ID, "event_id", event.ID)
	logger.InfoContext(ctx, "Starting automation run")

	steps, err := o.store.StepsByAutomation(ctx, automation.ID)
	if err != nil {
		return o.failRun(ctx, run, 0, fmt.Errorf("failed to load steps: %w", err), logger), nil
	}

	runContext := models.BuildRunContext(event)

	return o.execute(ctx, run, steps, runContext, 0, logger), nil
}

// Resume continues a suspended run at its recorded resume order. Resuming a
// run that already reached a terminal status is a no-op, which makes resume
// deliveries safe to replay.
func (o *Orchestrator) Resume(ctx context.Context, resume events.RunResumeDue) (*RunResult, error) {
	run, err := o.store.RunByID(ctx, resume.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", resume.RunID, err)
	}

	logger := o.logger.With("run_id", run.ID, "automation_id", run.AutomationID)

	if run.Terminal() {
		logger.InfoContext(ctx, "Run already finished, ignoring resume", "status", string(run.Status))

		return &RunResult{RunID: run.ID, Status: run.Status}, nil
	}

	logger.InfoContext(ctx, "Resuming automation run", "resume_order", resume.ResumeOrder)

	steps, err := o.store.StepsByAutomation(ctx, run.AutomationID)
	if err != nil {
		return o.failRun(ctx, run, 0, fmt.Errorf("failed to load steps: %w", err), logger), nil
	}

	return o.execute(ctx, run, steps, resume.Context, resume.ResumeOrder, logger), nil
}

// execute walks the steps with StepOrder >= fromOrder in ascending order.
func (o *Orchestrator) execute(
	ctx context.Context,
	run *models.WorkflowRun,
	steps []*models.WorkflowStep,
	runContext map[string]any,
	fromOrder int,
	logger *slog.Logger,
) *RunResult {
	deps := o.deps
	deps.RunID = run.ID

	stepsExecuted := 0

	for _, step := range steps {
		if step.StepOrder < fromOrder {
			continue
		}

		startedAt := o.now().UTC()

		outcome, err := executeStep(ctx, step, runContext, deps, logger)
		if err != nil {
			o.logStep(ctx, run, step, models.StepLogFailed, nil, err.Error(), startedAt, logger)

			return o.failRun(ctx, run, stepsExecuted, err, logger)
		}

		o.logStep(ctx, run, step, models.StepLogCompleted, outcome.Result, "", startedAt, logger)
		stepsExecuted++

		if outcome.SuspendFor > 0 {
			return o.suspendRun(ctx, run, step, runContext, outcome, stepsExecuted, logger)
		}

		if outcome.Stop {
			logger.InfoContext(ctx, "Condition stopped run", "step_order", step.StepOrder)

			break
		}
	}

	return o.completeRun(ctx, run, stepsExecuted, logger)
}

func (o *Orchestrator) suspendRun(
	ctx context.Context,
	run *models.WorkflowRun,
	step *models.WorkflowStep,
	runContext map[string]any,
	outcome StepOutcome,
	stepsExecuted int,
	logger *slog.Logger,
) *RunResult {
	timer := models.NewWaitTimer(run, step.StepOrder+1, runContext, outcome.SuspendFor)

	err := o.store.SaveWaitTimer(ctx, timer)
	if err != nil {
		return o.failRun(ctx, run, stepsExecuted, fmt.Errorf("failed to persist wait timer: %w", err), logger)
	}

	o.publish(ctx, run.ID, events.RunSuspended{
		BaseEvent: events.NewBaseEvent(events.RunSuspendedEvent, run.OrgID),
		RunID:     run.ID,
		TimerID:   timer.ID,
		DueAt:     timer.DueAt,
	}, logger)

	logger.InfoContext(ctx, "Run suspended on wait timer",
		"timer_id", timer.ID,
		"due_at", timer.DueAt,
		"resume_order", timer.ResumeOrder)

	return &RunResult{
		RunID:         run.ID,
		Status:        models.RunStatusRunning,
		StepsExecuted: stepsExecuted,
		Suspended:     true,
	}
}

func (o *Orchestrator) completeRun(ctx context.Context, run *models.WorkflowRun, stepsExecuted int, logger *slog.Logger) *RunResult {
	completedAt := o.now().UTC()

	err := o.store.FinishRun(ctx, run.ID, models.RunStatusCompleted, "", completedAt)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mark run completed", "error", err)

		return &RunResult{RunID: run.ID, Status: models.RunStatusRunning, StepsExecuted: stepsExecuted, Error: err.Error()}
	}

	o.publish(ctx, run.ID, events.RunCompleted{
		BaseEvent:     events.NewBaseEvent(events.RunCompletedEvent, run.OrgID),
		RunID:         run.ID,
		AutomationID:  run.AutomationID,
		EventID:       run.EventID,
		StepsExecuted: stepsExecuted,
		DurationMs:    completedAt.Sub(run.CreatedAt).Milliseconds(),
	}, logger)

	logger.InfoContext(ctx, "Run completed", "steps_executed", stepsExecuted)

	return &RunResult{RunID: run.ID, Status: models.RunStatusCompleted, StepsExecuted: stepsExecuted}
}

func (o *Orchestrator) failRun(ctx context.Context, run *models.WorkflowRun, stepsExecuted int, runErr error, logger *slog.Logger) *RunResult {
	err := o.store.FinishRun(ctx, run.ID, models.RunStatusFailed, runErr.Error(), o.now().UTC())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mark run failed", "error", err)
	}

	o.publish(ctx, run.ID, events.RunFailed{
		BaseEvent:    events.NewBaseEvent(events.RunFailedEvent, run.OrgID),
		RunID:        run.ID,
		AutomationID: run.AutomationID,
		EventID:      run.EventID,
		Error:        runErr.Error(),
	}, logger)

	logger.ErrorContext(ctx, "Run failed", "error", runErr, "steps_executed", stepsExecuted)

	return &RunResult{
		RunID:         run.ID,
		Status:        models.RunStatusFailed,
		StepsExecuted: stepsExecuted,
		Error:         runErr.Error(),
	}
}

func (o *Orchestrator) logStep(
	ctx context.Context,
	run *models.WorkflowRun,
	step *models.WorkflowStep,
	status models.StepLogStatus,
	result map[string]any,
	errorMessage string,
	startedAt time.Time,
	logger *slog.Logger,
) {
	record := &models.WorkflowRunStep{
		ID:           uuid.New().String(),
		RunID:        run.ID,
		StepID:       step.ID,
		StepOrder:    step.StepOrder,
		StepType:     step.StepType,
		ActionType:   step.ActionType,
		Status:       status,
		Result:       result,
		ErrorMessage: errorMessage,
		StartedAt:    startedAt,
		CompletedAt:  o.now().UTC(),
	}

	err := o.store.AppendRunStep(ctx, record)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to append run step log",
			"step_id", step.ID,
			"error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event, logger *slog.Logger) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(ctx, key, event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish lifecycle event",
			"event_type", string(event.GetType()),
			"error", err)
	}
}
