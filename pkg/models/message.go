package models

import "time"

// MessageDirection distinguishes inbound from outbound messages.
type MessageDirection string

const (
	MessageOutbound MessageDirection = "outbound"
	MessageInbound  MessageDirection = "inbound"
)

// Message is the audit record of an SMS handled by the engine. Outbound
// records are appended after the transport confirms the send.
type Message struct {
	ID        string           `json:"id"`
	OrgID     string           `json:"org_id" validate:"required"`
	RunID     string           `json:"run_id,omitempty"`
	To        string           `json:"to"     validate:"required"`
	Body      string           `json:"body"`
	SID       string           `json:"sid,omitempty"`
	Status    string           `json:"status,omitempty"`
	Direction MessageDirection `json:"direction"`
	CreatedAt time.Time        `json:"created_at"`
}
