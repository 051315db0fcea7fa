package models

import "time"

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// WorkflowRun is one execution instance of one automation for one triggering
// event. A run has at most one terminal status update.
type WorkflowRun struct {
	ID           string     `json:"id"`
	OrgID        string     `json:"org_id"        validate:"required"`
	AutomationID string     `json:"automation_id" validate:"required"`
	EventID      string     `json:"event_id"      validate:"required"`
	Status       RunStatus  `json:"status"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the run has reached a final status.
func (r *WorkflowRun) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// StepLogStatus represents the outcome recorded for one executed step.
type StepLogStatus string

const (
	StepLogCompleted StepLogStatus = "completed"
	StepLogFailed    StepLogStatus = "failed"
)

// WorkflowRunStep is one append-only audit record per executed step attempt.
// Records are never mutated after insertion.
type WorkflowRunStep struct {
	ID           string         `json:"id"`
	RunID        string         `json:"run_id"  validate:"required"`
	StepID       string         `json:"step_id" validate:"required"`
	StepOrder    int            `json:"step_order"`
	StepType     StepType       `json:"step_type"`
	ActionType   ActionType     `json:"action_type,omitempty"`
	Status       StepLogStatus  `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
}
