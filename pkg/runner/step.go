// Package runner executes automations: routing inbound events to matching
// automations, orchestrating runs step by step, and resuming runs parked on
// wait timers.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayhq/relay/pkg/actions"
	"github.com/relayhq/relay/pkg/conditions"
	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/template"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400
)

// StepOutcome is the step executor's verdict on one step.
type StepOutcome struct {
	// Result is the audit payload logged for the step.
	Result map[string]any

	// Stop signals a condition step evaluated false with stopOnFalse set;
	// the orchestrator halts and completes the run.
	Stop bool

	// SuspendFor, when positive, signals a wait step: the orchestrator parks
	// the run on a durable timer for this duration.
	SuspendFor time.Duration
}

// executeStep runs one step against the run context. Only an action whose
// side effect failed produces an error; every other path yields an outcome.
func executeStep(
	ctx context.Context,
	step *models.WorkflowStep,
	runContext map[string]any,
	deps actions.Dependencies,
	logger *slog.Logger,
) (StepOutcome, error) {
	switch step.StepType {
	case models.StepTypeTrigger:
		return StepOutcome{Result: map[string]any{"skipped": true, "reason": "trigger step"}}, nil

	case models.StepTypeWait:
		return executeWaitStep(step), nil

	case models.StepTypeAction:
		config := template.InterpolateConfig(step.Config, runContext)

		err := actions.ValidateConfig(step.ActionType, config)
		if err != nil {
			return StepOutcome{}, fmt.Errorf("action config rejected: %w", err)
		}

		result, err := actions.Dispatch(ctx, step.ActionType, config, runContext, deps, logger)
		if err != nil {
			return StepOutcome{}, err
		}

		return StepOutcome{Result: result}, nil

	case models.StepTypeCondition:
		return executeConditionStep(ctx, step, runContext, logger), nil

	default:
		logger.WarnContext(ctx, "unknown step type, skipping", "step_type", string(step.StepType))

		return StepOutcome{Result: map[string]any{
			"skipped": true,
			"reason":  "unknown stepType: " + string(step.StepType),
		}}, nil
	}
}

func executeWaitStep(step *models.WorkflowStep) StepOutcome {
	seconds := configSeconds(step.Config, "delayMinutes")*secondsPerMinute +
		configSeconds(step.Config, "delayHours")*secondsPerHour +
		configSeconds(step.Config, "delayDays")*secondsPerDay

	if seconds <= 0 {
		return StepOutcome{Result: map[string]any{"waited": false}}
	}

	return StepOutcome{
		Result:     map[string]any{"waited": true, "seconds": seconds},
		SuspendFor: time.Duration(seconds) * time.Second,
	}
}

func executeConditionStep(
	ctx context.Context,
	step *models.WorkflowStep,
	runContext map[string]any,
	logger *slog.Logger,
) StepOutcome {
	config := conditions.ParseConfig(step.Config)

	if !conditions.Known(config.Operator) {
		logger.WarnContext(ctx, "unknown condition operator",
			"operator", string(config.Operator),
			"step_id", step.ID)
	}

	passed := conditions.Evaluate(config, runContext)

	outcome := StepOutcome{Result: map[string]any{"conditionPassed": passed}}

	if !passed && truthy(step.Config["stopOnFalse"]) {
		outcome.Result["stopped"] = true
		outcome.Stop = true
	}

	return outcome
}

func configSeconds(config map[string]any, key string) int {
	switch value := config[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	case string:
		var parsed int

		_, err := fmt.Sscanf(value, "%d", &parsed)
		if err != nil {
			return 0
		}

		return parsed
	default:
		return 0
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}
