// Package models defines the core domain models for the automation engine.
package models

import "time"

// EventType identifies the kind of business event that occurred.
type EventType string

const (
	EventLeadCreated          EventType = "lead.created"
	EventContactUpdated       EventType = "contact.updated"
	EventSMSInbound           EventType = "sms.inbound"
	EventQuoteSigned          EventType = "quote.signed"
	EventQuoteSent            EventType = "quote.sent"
	EventAppointmentScheduled EventType = "appointment.scheduled"
	EventStageChanged         EventType = "pipeline.stage_changed"
	EventFormSubmitted        EventType = "form.submitted"
)

// Event is an immutable record of something that happened in the business
// domain. Only ProcessedAt changes after creation, and it is set exactly once
// when routing has dispatched all matched automations.
type Event struct {
	ID          string         `json:"id"`
	OrgID       string         `json:"org_id"      validate:"required"`
	OrgSlug     string         `json:"org_slug"    validate:"required"`
	EventType   EventType      `json:"event_type"  validate:"required"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

// Processed reports whether the event has already been routed.
func (e *Event) Processed() bool {
	return e.ProcessedAt != nil
}

// triggerTypeByEvent maps business event types to the normalized trigger
// types automations are keyed on. Unmapped event types pass through
// unchanged.
var triggerTypeByEvent = map[EventType]string{
	EventLeadCreated:          "contact_created",
	EventContactUpdated:       "contact_updated",
	EventSMSInbound:           "sms_received",
	EventQuoteSigned:          "quote_signed",
	EventQuoteSent:            "quote_sent",
	EventAppointmentScheduled: "appointment_scheduled",
	EventStageChanged:         "stage_changed",
	EventFormSubmitted:        "form_submitted",
}

// TriggerTypeFor returns the trigger type an event type matches against.
func TriggerTypeFor(eventType EventType) string {
	if mapped, ok := triggerTypeByEvent[eventType]; ok {
		return mapped
	}

	return string(eventType)
}
