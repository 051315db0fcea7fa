// Package updatefield performs a targeted single-field update on a record.
package updatefield

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

// Action updates one field of one record identified by the run's entity.
type Action struct {
	Table string
	Field string
	Value any
}

// Deps carries the collaborators the action needs, injected per dispatch.
type Deps struct {
	Store persistence.RecordRepository
}

// NewAction creates the action from interpolated step configuration.
func NewAction(config map[string]any) *Action {
	table, _ := config["table"].(string)
	field, _ := config["field"].(string)

	return &Action{Table: table, Field: field, Value: config["value"]}
}

// Execute applies the update. Missing table, field, or entity id degrade to
// a skipped result; a store rejection fails the action.
func (a *Action) Execute(ctx context.Context, runContext map[string]any, deps Deps, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "update_field_action")

	if a.Table == "" || a.Field == "" {
		return map[string]any{"skipped": true, "reason": "missing table or field"}, nil
	}

	entityID, _ := runContext[models.ContextKeyEntityID].(string)
	if entityID == "" {
		return map[string]any{"skipped": true, "reason": "no entity id in context"}, nil
	}

	orgID, _ := runContext[models.ContextKeyOrgID].(string)

	err := deps.Store.UpdateRecordField(ctx, orgID, a.Table, entityID, a.Field, a.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s.%s: %w", a.Table, a.Field, err)
	}

	logger.InfoContext(ctx, "record field updated", "table", a.Table, "field", a.Field, "entity_id", entityID)

	return map[string]any{"updated": true, "table": a.Table, "field": a.Field}, nil
}
