// Package createtask inserts a pending follow-up task scoped to the run's
// entity.
package createtask

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

const defaultDueInDays = 1

// Action creates a follow-up task due a configured number of days from now.
type Action struct {
	Title     string
	DueInDays int
}

// Deps carries the collaborators the action needs, injected per dispatch.
type Deps struct {
	Store persistence.RecordRepository
	RunID string
	Now   func() time.Time
}

// NewAction creates the action from interpolated step configuration.
func NewAction(config map[string]any) *Action {
	title, _ := config["title"].(string)

	dueInDays := defaultDueInDays
	if days, ok := config["dueInDays"].(float64); ok && days > 0 {
		dueInDays = int(days)
	}

	return &Action{Title: title, DueInDays: dueInDays}
}

// Execute inserts the task. A missing title degrades to a skipped result.
func (a *Action) Execute(ctx context.Context, runContext map[string]any, deps Deps, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "create_task_action")

	if a.Title == "" {
		return map[string]any{"skipped": true, "reason": "no title"}, nil
	}

	orgID, _ := runContext[models.ContextKeyOrgID].(string)
	entityID, _ := runContext[models.ContextKeyEntityID].(string)
	entityType, _ := runContext["entityType"].(string)

	now := deps.Now()

	task := &models.Task{
		ID:         uuid.New().String(),
		OrgID:      orgID,
		RunID:      deps.RunID,
		EntityType: entityType,
		EntityID:   entityID,
		Title:      a.Title,
		Status:     models.TaskStatusPending,
		DueAt:      now.AddDate(0, 0, a.DueInDays),
		CreatedAt:  now,
	}

	err := deps.Store.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	logger.InfoContext(ctx, "task created", "task_id", task.ID, "due_at", task.DueAt)

	return map[string]any{"created": true, "taskId": task.ID}, nil
}
