package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidWaitTimer is returned when wait timer validation fails.
var ErrInvalidWaitTimer = errors.New("invalid wait timer")

// WaitTimer is the durable suspension record for a run paused on a wait
// step. It is written before the orchestrator returns, so a resumption
// survives process restarts; the poller compares DueAt against the clock
// instead of holding in-process timers.
type WaitTimer struct {
	// ID uniquely identifies this timer entry.
	ID string `json:"id" validate:"required"`

	OrgID        string `json:"org_id"        validate:"required"`
	RunID        string `json:"run_id"        validate:"required"`
	AutomationID string `json:"automation_id" validate:"required"`
	EventID      string `json:"event_id"      validate:"required"`

	// ResumeOrder is the StepOrder of the first step to execute on resume,
	// i.e. the step after the wait step that suspended the run.
	ResumeOrder int `json:"resume_order"`

	// Context is the run context snapshot taken at suspension.
	Context map[string]any `json:"context"`

	DueAt     time.Time  `json:"due_at" validate:"required"`
	CreatedAt time.Time  `json:"created_at"`
	FiredAt   *time.Time `json:"fired_at,omitempty"`
}

// NewWaitTimer creates a timer suspending the given run until now+delay.
func NewWaitTimer(run *WorkflowRun, resumeOrder int, runContext map[string]any, delay time.Duration) *WaitTimer {
	now := time.Now().UTC()

	return &WaitTimer{
		ID:           uuid.New().String(),
		OrgID:        run.OrgID,
		RunID:        run.ID,
		AutomationID: run.AutomationID,
		EventID:      run.EventID,
		ResumeOrder:  resumeOrder,
		Context:      runContext,
		DueAt:        now.Add(delay),
		CreatedAt:    now,
	}
}

// IsDue checks if this timer is due for firing at the given time.
func (t *WaitTimer) IsDue(now time.Time) bool {
	return t.FiredAt == nil && !t.DueAt.After(now)
}

// Validate performs validation on the timer fields.
func (t *WaitTimer) Validate() error {
	if t.ID == "" || t.RunID == "" || t.AutomationID == "" || t.EventID == "" {
		return ErrInvalidWaitTimer
	}

	if t.DueAt.IsZero() {
		return ErrInvalidWaitTimer
	}

	return nil
}
