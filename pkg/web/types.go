package web

import "github.com/relayhq/relay/pkg/models"

// IngestEventRequest is the payload for POST /v1/events.
type IngestEventRequest struct {
	OrgID      string         `json:"org_id"     validate:"required"`
	OrgSlug    string         `json:"org_slug"   validate:"required"`
	EventType  string         `json:"event_type" validate:"required"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`

	// DedupKey, when set, suppresses duplicate deliveries of the same
	// external event within the dedup window.
	DedupKey string `json:"dedup_key,omitempty"`
}

// IngestEventResponse confirms dispatch, not run completion.
type IngestEventResponse struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// RunResponse is the read model for GET /v1/runs/:id.
type RunResponse struct {
	Run   *models.WorkflowRun      `json:"run"`
	Steps []*models.WorkflowRunStep `json:"steps,omitempty"`
}
