// Package persistence provides the data storage abstraction for events,
// automations, runs and their audit records.
package persistence

import (
	"context"
	"time"

	"github.com/relayhq/relay/pkg/models"
)

// Persistence is the transactional key/record store the engine runs
// against. All writes are single-record inserts or targeted updates; the
// engine never requires cross-record transactions.
type Persistence interface {
	EventRepository
	AutomationRepository
	RunRepository
	TimerRepository
	RecordRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// EventRepository stores inbound business events.
type EventRepository interface {
	SaveEvent(ctx context.Context, event *models.Event) error
	EventByID(ctx context.Context, id string) (*models.Event, error)
	// MarkEventProcessed sets processed_at exactly once; marking an already
	// processed event is a no-op.
	MarkEventProcessed(ctx context.Context, id string, processedAt time.Time) error
}

// AutomationRepository stores automations and their ordered steps.
type AutomationRepository interface {
	SaveAutomation(ctx context.Context, automation *models.Automation) error
	AutomationByID(ctx context.Context, id string) (*models.Automation, error)
	// PublishedAutomationsByTrigger returns all published automations for the
	// org whose trigger type equals the given value, trigger-value narrowing
	// left to the caller.
	PublishedAutomationsByTrigger(ctx context.Context, orgID, triggerType string) ([]*models.Automation, error)
	SaveWorkflowStep(ctx context.Context, step *models.WorkflowStep) error
	// StepsByAutomation returns the automation's steps ordered by ascending
	// step_order.
	StepsByAutomation(ctx context.Context, automationID string) ([]*models.WorkflowStep, error)
}

// RunRepository stores workflow runs and their append-only step log.
type RunRepository interface {
	CreateRun(ctx context.Context, run *models.WorkflowRun) error
	RunByID(ctx context.Context, id string) (*models.WorkflowRun, error)
	// FinishRun applies the run's single terminal update.
	FinishRun(ctx context.Context, id string, status models.RunStatus, runErr string, completedAt time.Time) error
	AppendRunStep(ctx context.Context, step *models.WorkflowRunStep) error
	RunStepsByRun(ctx context.Context, runID string) ([]*models.WorkflowRunStep, error)
}

// TimerRepository stores durable wait timers.
type TimerRepository interface {
	SaveWaitTimer(ctx context.Context, timer *models.WaitTimer) error
	// DueWaitTimers returns unfired timers with due_at <= now.
	DueWaitTimers(ctx context.Context, now time.Time, limit int) ([]*models.WaitTimer, error)
	// MarkWaitTimerFired sets fired_at once; returns ErrWaitTimerAlreadyFired
	// when a competing poller won the claim.
	MarkWaitTimerFired(ctx context.Context, id string, firedAt time.Time) error
}

// RecordRepository covers the side-effect records actions produce and the
// targeted single-field update used by update_field.
type RecordRepository interface {
	AppendMessage(ctx context.Context, message *models.Message) error
	CreateTask(ctx context.Context, task *models.Task) error
	// UpdateRecordField performs a targeted single-field update on the named
	// record of the named table.
	UpdateRecordField(ctx context.Context, orgID, table, recordID, field string, value any) error
}
