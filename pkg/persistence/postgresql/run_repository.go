package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

// RunRepository handles workflow run and run step log database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

// CreateRun inserts a workflow run in running status.
func (r *RunRepository) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	query := `
		INSERT INTO workflow_runs (id, org_id, automation_id, event_id, status, error, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.OrgID,
		run.AutomationID,
		run.EventID,
		string(run.Status),
		nullableString(run.Error),
		run.CreatedAt,
		run.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("CreateRun", run.ID, err)
	}

	return nil
}

// RunByID returns a workflow run by its ID.
func (r *RunRepository) RunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	query := `
		SELECT
			id
		  , org_id
		  , automation_id
		  , event_id
		  , status
		  , error
		  , created_at
		  , completed_at
		FROM workflow_runs
		WHERE id = $1
	`

	var (
		run      models.WorkflowRun
		status   string
		runError sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.OrgID,
		&run.AutomationID,
		&run.EventID,
		&status,
		&runError,
		&run.CreatedAt,
		&run.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("RunByID", id, persistence.ErrRunNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("RunByID", id, err)
	}

	run.Status = models.RunStatus(status)
	run.Error = runError.String

	return &run, nil
}

// FinishRun applies the run's single terminal update. Finishing an already
// finished run returns ErrRunAlreadyFinished.
func (r *RunRepository) FinishRun(ctx context.Context, id string, status models.RunStatus, runErr string, completedAt time.Time) error {
	query := `
		UPDATE workflow_runs
		SET status = $2, error = $3, completed_at = $4
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status), nullableString(runErr), completedAt)
	if err != nil {
		return persistence.NewStoreError("FinishRun", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("FinishRun", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("FinishRun", id, persistence.ErrRunAlreadyFinished)
	}

	return nil
}

// AppendRunStep inserts one append-only step log record.
func (r *RunRepository) AppendRunStep(ctx context.Context, step *models.WorkflowRunStep) error {
	result, err := json.Marshal(step.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal run step result: %w", err)
	}

	query := `
		INSERT INTO workflow_run_steps (id, run_id, step_id, step_order, step_type, action_type, status, result, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.RunID,
		step.StepID,
		step.StepOrder,
		string(step.StepType),
		nullableString(string(step.ActionType)),
		string(step.Status),
		result,
		nullableString(step.ErrorMessage),
		step.StartedAt,
		step.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("AppendRunStep", step.ID, err)
	}

	return nil
}

// RunStepsByRun returns the run's step log in execution order.
func (r *RunRepository) RunStepsByRun(ctx context.Context, runID string) ([]*models.WorkflowRunStep, error) {
	query := `
		SELECT
			id
		  , run_id
		  , step_id
		  , step_order
		  , step_type
		  , action_type
		  , status
		  , result
		  , error_message
		  , started_at
		  , completed_at
		FROM workflow_run_steps
		WHERE run_id = $1
		ORDER BY started_at ASC, step_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, persistence.NewStoreError("RunStepsByRun", runID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]*models.WorkflowRunStep, 0)

	for rows.Next() {
		var (
			step         models.WorkflowRunStep
			stepType     string
			actionType   sql.NullString
			status       string
			result       []byte
			errorMessage sql.NullString
		)

		err = rows.Scan(
			&step.ID,
			&step.RunID,
			&step.StepID,
			&step.StepOrder,
			&stepType,
			&actionType,
			&status,
			&result,
			&errorMessage,
			&step.StartedAt,
			&step.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}

		step.StepType = models.StepType(stepType)
		step.ActionType = models.ActionType(actionType.String)
		step.Status = models.StepLogStatus(status)
		step.ErrorMessage = errorMessage.String

		if len(result) > 0 {
			err = json.Unmarshal(result, &step.Result)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal run step result: %w", err)
			}
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating run steps: %w", err)
	}

	return steps, nil
}
