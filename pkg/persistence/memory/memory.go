// Package memory provides an in-memory persistence implementation used by
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

// Persistence is a map-backed store guarded by a single mutex. Semantics
// mirror the PostgreSQL implementation, including single-shot processed and
// terminal updates.
type Persistence struct {
	mu sync.RWMutex

	events     map[string]*models.Event
	automation map[string]*models.Automation
	steps      map[string][]*models.WorkflowStep
	runs       map[string]*models.WorkflowRun
	runSteps   map[string][]*models.WorkflowRunStep
	timers     map[string]*models.WaitTimer
	messages   []*models.Message
	tasks      []*models.Task

	// records holds the business rows update_field targets: table -> id -> fields.
	records map[string]map[string]map[string]any
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		events:     make(map[string]*models.Event),
		automation: make(map[string]*models.Automation),
		steps:      make(map[string][]*models.WorkflowStep),
		runs:       make(map[string]*models.WorkflowRun),
		runSteps:   make(map[string][]*models.WorkflowRunStep),
		timers:     make(map[string]*models.WaitTimer),
		records:    make(map[string]map[string]map[string]any),
	}
}

func (p *Persistence) HealthCheck(ctx context.Context) error { return nil }

func (p *Persistence) Close(ctx context.Context) error { return nil }

// SaveEvent stores a copy of the event.
func (p *Persistence) SaveEvent(ctx context.Context, event *models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *event
	p.events[event.ID] = &stored

	return nil
}

func (p *Persistence) EventByID(ctx context.Context, id string) (*models.Event, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	event, ok := p.events[id]
	if !ok {
		return nil, persistence.NewStoreError("EventByID", id, persistence.ErrEventNotFound)
	}

	found := *event

	return &found, nil
}

func (p *Persistence) MarkEventProcessed(ctx context.Context, id string, processedAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	event, ok := p.events[id]
	if !ok {
		return persistence.NewStoreError("MarkEventProcessed", id, persistence.ErrEventNotFound)
	}

	if event.ProcessedAt == nil {
		event.ProcessedAt = &processedAt
	}

	return nil
}

func (p *Persistence) SaveAutomation(ctx context.Context, automation *models.Automation) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *automation
	p.automation[automation.ID] = &stored

	return nil
}

func (p *Persistence) AutomationByID(ctx context.Context, id string) (*models.Automation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	automation, ok := p.automation[id]
	if !ok {
		return nil, persistence.NewStoreError("AutomationByID", id, persistence.ErrAutomationNotFound)
	}

	found := *automation

	return &found, nil
}

func (p *Persistence) PublishedAutomationsByTrigger(ctx context.Context, orgID, triggerType string) ([]*models.Automation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	matched := make([]*models.Automation, 0)

	for _, automation := range p.automation {
		if automation.OrgID == orgID &&
			automation.Status == models.AutomationStatusPublished &&
			automation.TriggerType == triggerType {
			found := *automation
			matched = append(matched, &found)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return matched, nil
}

func (p *Persistence) SaveWorkflowStep(ctx context.Context, step *models.WorkflowStep) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *step
	p.steps[step.AutomationID] = append(p.steps[step.AutomationID], &stored)

	return nil
}

func (p *Persistence) StepsByAutomation(ctx context.Context, automationID string) ([]*models.WorkflowStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	steps := make([]*models.WorkflowStep, 0, len(p.steps[automationID]))

	for _, step := range p.steps[automationID] {
		found := *step
		steps = append(steps, &found)
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StepOrder < steps[j].StepOrder
	})

	return steps, nil
}

func (p *Persistence) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *run
	p.runs[run.ID] = &stored

	return nil
}

func (p *Persistence) RunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	run, ok := p.runs[id]
	if !ok {
		return nil, persistence.NewStoreError("RunByID", id, persistence.ErrRunNotFound)
	}

	found := *run

	return &found, nil
}

func (p *Persistence) FinishRun(ctx context.Context, id string, status models.RunStatus, runErr string, completedAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	run, ok := p.runs[id]
	if !ok {
		return persistence.NewStoreError("FinishRun", id, persistence.ErrRunNotFound)
	}

	if run.Status != models.RunStatusRunning {
		return persistence.NewStoreError("FinishRun", id, persistence.ErrRunAlreadyFinished)
	}

	run.Status = status
	run.Error = runErr
	run.CompletedAt = &completedAt

	return nil
}

func (p *Persistence) AppendRunStep(ctx context.Context, step *models.WorkflowRunStep) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *step
	p.runSteps[step.RunID] = append(p.runSteps[step.RunID], &stored)

	return nil
}

func (p *Persistence) RunStepsByRun(ctx context.Context, runID string) ([]*models.WorkflowRunStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	steps := make([]*models.WorkflowRunStep, 0, len(p.runSteps[runID]))

	for _, step := range p.runSteps[runID] {
		found := *step
		steps = append(steps, &found)
	}

	return steps, nil
}

func (p *Persistence) SaveWaitTimer(ctx context.Context, timer *models.WaitTimer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *timer
	p.timers[timer.ID] = &stored

	return nil
}

func (p *Persistence) DueWaitTimers(ctx context.Context, now time.Time, limit int) ([]*models.WaitTimer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	due := make([]*models.WaitTimer, 0)

	for _, timer := range p.timers {
		if timer.IsDue(now) {
			found := *timer
			due = append(due, &found)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].DueAt.Before(due[j].DueAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (p *Persistence) MarkWaitTimerFired(ctx context.Context, id string, firedAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	timer, ok := p.timers[id]
	if !ok {
		return persistence.NewStoreError("MarkWaitTimerFired", id, persistence.ErrWaitTimerNotFound)
	}

	if timer.FiredAt != nil {
		return persistence.NewStoreError("MarkWaitTimerFired", id, persistence.ErrWaitTimerAlreadyFired)
	}

	timer.FiredAt = &firedAt

	return nil
}

func (p *Persistence) AppendMessage(ctx context.Context, message *models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *message
	p.messages = append(p.messages, &stored)

	return nil
}

func (p *Persistence) CreateTask(ctx context.Context, task *models.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *task
	p.tasks = append(p.tasks, &stored)

	return nil
}

func (p *Persistence) UpdateRecordField(ctx context.Context, orgID, table, recordID, field string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, ok := p.records[table]
	if !ok {
		return persistence.NewStoreError("UpdateRecordField", recordID, persistence.ErrUnknownTable)
	}

	row, ok := rows[recordID]
	if !ok || row["org_id"] != orgID {
		return persistence.NewStoreError("UpdateRecordField", recordID, persistence.ErrRecordNotFound)
	}

	row[field] = value

	return nil
}

// SeedRecord inserts a business row for update_field to target.
func (p *Persistence) SeedRecord(table, id, orgID string, fields map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.records[table] == nil {
		p.records[table] = make(map[string]map[string]any)
	}

	row := map[string]any{"org_id": orgID}
	for key, value := range fields {
		row[key] = value
	}

	p.records[table][id] = row
}

// Record returns a seeded business row.
func (p *Persistence) Record(table, id string) (map[string]any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	row, ok := p.records[table][id]
	if !ok {
		return nil, false
	}

	copied := make(map[string]any, len(row))
	for key, value := range row {
		copied[key] = value
	}

	return copied, true
}

// Messages returns all appended message records.
func (p *Persistence) Messages() []*models.Message {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]*models.Message(nil), p.messages...)
}

// Tasks returns all created task records.
func (p *Persistence) Tasks() []*models.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]*models.Task(nil), p.tasks...)
}
