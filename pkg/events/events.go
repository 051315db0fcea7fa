// Package events defines the lifecycle events exchanged between the
// ingestion API, the engine and the timer service.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/relayhq/relay/pkg/models"
)

type EventType string

// Topic is the bus topic all engine events are published on.
const Topic = "relay.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// EventReceivedEvent is published by the ingestion layer once an inbound
	// business event has been stored.
	EventReceivedEvent EventType = "event.received"

	// RunResumeDueEvent is published by the timer poller when a wait timer
	// comes due.
	RunResumeDueEvent EventType = "run.resume_due"

	// Run lifecycle notifications for observers.
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunSuspendedEvent EventType = "run.suspended"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	OrgID     string         `json:"org_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventReceived carries the identifier of a stored business event awaiting
// routing. The payload stays in the store; replaying this message is safe.
type EventReceived struct {
	BaseEvent

	EventID   string           `json:"event_id"`
	EventKind models.EventType `json:"event_kind"`
}

func (e EventReceived) GetType() EventType {
	return EventReceivedEvent
}

// RunResumeDue signals that a suspended run's wait timer elapsed.
type RunResumeDue struct {
	BaseEvent

	TimerID      string         `json:"timer_id"`
	RunID        string         `json:"run_id"`
	AutomationID string         `json:"automation_id"`
	EventID      string         `json:"event_id"`
	ResumeOrder  int            `json:"resume_order"`
	Context      map[string]any `json:"context"`
}

func (e RunResumeDue) GetType() EventType {
	return RunResumeDueEvent
}

// RunCompleted notifies observers that a run reached completed status.
type RunCompleted struct {
	BaseEvent

	RunID         string `json:"run_id"`
	AutomationID  string `json:"automation_id"`
	EventID       string `json:"event_id"`
	StepsExecuted int    `json:"steps_executed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

// RunFailed notifies observers that a run reached failed status.
type RunFailed struct {
	BaseEvent

	RunID        string `json:"run_id"`
	AutomationID string `json:"automation_id"`
	EventID      string `json:"event_id"`
	Error        string `json:"error"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

// RunSuspended notifies observers that a run parked on a wait timer.
type RunSuspended struct {
	BaseEvent

	RunID   string    `json:"run_id"`
	TimerID string    `json:"timer_id"`
	DueAt   time.Time `json:"due_at"`
}

func (e RunSuspended) GetType() EventType {
	return RunSuspendedEvent
}

func NewBaseEvent(eventType EventType, orgID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		OrgID:     orgID,
		Metadata:  make(map[string]any),
	}
}
