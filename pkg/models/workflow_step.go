package models

// StepType identifies the kind of a workflow step.
type StepType string

const (
	StepTypeTrigger   StepType = "trigger"
	StepTypeWait      StepType = "wait"
	StepTypeAction    StepType = "action"
	StepTypeCondition StepType = "condition"
)

// ActionType is the closed set of side-effecting actions a step can run.
// Dispatch over this set is exhaustive; adding an action type is a
// compile-time extension, not a string-keyed fallthrough.
type ActionType string

const (
	ActionSendSMS     ActionType = "send_sms"
	ActionSendEmail   ActionType = "send_email"
	ActionCreateTask  ActionType = "create_task"
	ActionUpdateField ActionType = "update_field"
	ActionWebhook     ActionType = "webhook"
)

// WorkflowStep is one unit of work within an automation. Steps are read-only
// during execution and run in strictly ascending StepOrder.
type WorkflowStep struct {
	ID           string     `json:"id"`
	AutomationID string     `json:"automation_id" validate:"required"`
	StepOrder    int        `json:"step_order"`
	StepType     StepType   `json:"step_type"     validate:"required"`
	ActionType   ActionType `json:"action_type,omitempty"`
	Config       map[string]any `json:"config"`
}
