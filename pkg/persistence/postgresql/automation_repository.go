package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

// AutomationRepository handles automation and workflow step database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

// SaveAutomation upserts an automation.
func (r *AutomationRepository) SaveAutomation(ctx context.Context, automation *models.Automation) error {
	query := `
		INSERT INTO automations (id, org_id, name, status, trigger_type, trigger_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			trigger_type = EXCLUDED.trigger_type,
			trigger_value = EXCLUDED.trigger_value,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		automation.ID,
		automation.OrgID,
		automation.Name,
		string(automation.Status),
		automation.TriggerType,
		nullableString(automation.TriggerValue),
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveAutomation", automation.ID, err)
	}

	return nil
}

// AutomationByID returns an automation by its ID.
func (r *AutomationRepository) AutomationByID(ctx context.Context, id string) (*models.Automation, error) {
	query := automationSelect + ` WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	automation, err := scanAutomation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("AutomationByID", id, persistence.ErrAutomationNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("AutomationByID", id, err)
	}

	return automation, nil
}

// PublishedAutomationsByTrigger returns published automations for the org
// matching the trigger type.
func (r *AutomationRepository) PublishedAutomationsByTrigger(ctx context.Context, orgID, triggerType string) ([]*models.Automation, error) {
	query := automationSelect + `
		WHERE org_id = $1 AND status = 'published' AND trigger_type = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, triggerType)
	if err != nil {
		return nil, persistence.NewStoreError("PublishedAutomationsByTrigger", orgID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

// SaveWorkflowStep upserts one workflow step.
func (r *AutomationRepository) SaveWorkflowStep(ctx context.Context, step *models.WorkflowStep) error {
	config, err := json.Marshal(step.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal step config: %w", err)
	}

	query := `
		INSERT INTO workflow_steps (id, automation_id, step_order, step_type, action_type, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			step_order = EXCLUDED.step_order,
			step_type = EXCLUDED.step_type,
			action_type = EXCLUDED.action_type,
			config = EXCLUDED.config
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.AutomationID,
		step.StepOrder,
		string(step.StepType),
		nullableString(string(step.ActionType)),
		config,
	)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflowStep", step.ID, err)
	}

	return nil
}

// StepsByAutomation returns the automation's steps in ascending step order.
func (r *AutomationRepository) StepsByAutomation(ctx context.Context, automationID string) ([]*models.WorkflowStep, error) {
	query := `
		SELECT
			id
		  , automation_id
		  , step_order
		  , step_type
		  , action_type
		  , config
		FROM workflow_steps
		WHERE automation_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, automationID)
	if err != nil {
		return nil, persistence.NewStoreError("StepsByAutomation", automationID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]*models.WorkflowStep, 0)

	for rows.Next() {
		var (
			step       models.WorkflowStep
			stepType   string
			actionType sql.NullString
			config     []byte
		)

		err = rows.Scan(&step.ID, &step.AutomationID, &step.StepOrder, &stepType, &actionType, &config)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}

		step.StepType = models.StepType(stepType)
		step.ActionType = models.ActionType(actionType.String)

		if len(config) > 0 {
			err = json.Unmarshal(config, &step.Config)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal step config: %w", err)
			}
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow steps: %w", err)
	}

	return steps, nil
}

const automationSelect = `
	SELECT
		id
	  , org_id
	  , name
	  , status
	  , trigger_type
	  , trigger_value
	  , created_at
	  , updated_at
	FROM automations
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAutomation(row rowScanner) (*models.Automation, error) {
	var (
		automation   models.Automation
		status       string
		triggerValue sql.NullString
	)

	err := row.Scan(
		&automation.ID,
		&automation.OrgID,
		&automation.Name,
		&status,
		&automation.TriggerType,
		&triggerValue,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	automation.Status = models.AutomationStatus(status)
	automation.TriggerValue = triggerValue.String

	return &automation, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
