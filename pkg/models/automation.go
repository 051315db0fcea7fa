package models

import "time"

// AutomationStatus represents the lifecycle state of an automation.
type AutomationStatus string

const (
	AutomationStatusDraft     AutomationStatus = "draft"     // Editable, not matched
	AutomationStatusPublished AutomationStatus = "published" // Eligible for event matching
)

// Automation is a tenant-defined rule mapping a trigger condition to an
// ordered sequence of workflow steps.
type Automation struct {
	ID          string           `json:"id"`
	OrgID       string           `json:"org_id"       validate:"required"`
	Name        string           `json:"name"         validate:"required,min=3"`
	Status      AutomationStatus `json:"status"       validate:"required"`
	TriggerType string           `json:"trigger_type" validate:"required"`
	// TriggerValue, when set, narrows matches to events whose payload carries
	// an equal triggerValue (e.g. a specific pipeline stage).
	TriggerValue string    `json:"trigger_value,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Matches reports whether this automation should run for the given event.
func (a *Automation) Matches(event *Event) bool {
	if a.Status != AutomationStatusPublished {
		return false
	}

	if a.OrgID != event.OrgID {
		return false
	}

	if a.TriggerType != TriggerTypeFor(event.EventType) {
		return false
	}

	if a.TriggerValue != "" {
		value, ok := event.Payload["triggerValue"]
		if !ok || Stringify(value) != a.TriggerValue {
			return false
		}
	}

	return true
}
