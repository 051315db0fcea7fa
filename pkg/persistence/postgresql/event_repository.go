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

// EventRepository handles event-related database operations.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *sql.DB, logger *slog.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

// SaveEvent inserts an inbound event.
func (r *EventRepository) SaveEvent(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO events (id, org_id, org_slug, event_type, entity_type, entity_id, payload, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.OrgID,
		event.OrgSlug,
		string(event.EventType),
		event.EntityType,
		event.EntityID,
		payload,
		event.CreatedAt,
		event.ProcessedAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveEvent", event.ID, err)
	}

	return nil
}

// EventByID returns an event by its ID.
func (r *EventRepository) EventByID(ctx context.Context, id string) (*models.Event, error) {
	query := `
		SELECT
			id
		  , org_id
		  , org_slug
		  , event_type
		  , entity_type
		  , entity_id
		  , payload
		  , created_at
		  , processed_at
		FROM events
		WHERE id = $1
	`

	var (
		event      models.Event
		eventType  string
		payload    []byte
		entityType sql.NullString
		entityID   sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.OrgID,
		&event.OrgSlug,
		&eventType,
		&entityType,
		&entityID,
		&payload,
		&event.CreatedAt,
		&event.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("EventByID", id, persistence.ErrEventNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("EventByID", id, err)
	}

	event.EventType = models.EventType(eventType)
	event.EntityType = entityType.String
	event.EntityID = entityID.String

	if len(payload) > 0 {
		err = json.Unmarshal(payload, &event.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
	}

	return &event, nil
}

// MarkEventProcessed sets processed_at once; already processed events are
// left untouched.
func (r *EventRepository) MarkEventProcessed(ctx context.Context, id string, processedAt time.Time) error {
	query := `
		UPDATE events
		SET processed_at = $2
		WHERE id = $1 AND processed_at IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, id, processedAt)
	if err != nil {
		return persistence.NewStoreError("MarkEventProcessed", id, err)
	}

	return nil
}
