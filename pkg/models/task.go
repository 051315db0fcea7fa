package models

import "time"

// TaskStatus represents the lifecycle state of a follow-up task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a follow-up task created by the create_task action, scoped to the
// entity that triggered the run.
type Task struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id" validate:"required"`
	RunID      string     `json:"run_id,omitempty"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Title      string     `json:"title"  validate:"required"`
	Status     TaskStatus `json:"status"`
	DueAt      time.Time  `json:"due_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
