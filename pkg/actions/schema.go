package actions

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relayhq/relay/pkg/models"
)

// configSchemas holds one JSON schema per action type. The step executor
// validates the interpolated config before dispatch; a structurally broken
// config fails the run, while a key that is present but interpolates to an
// empty value still degrades per the action's own skip rules.
var configSchemas = map[models.ActionType]map[string]any{
	models.ActionSendSMS: {
		"type":     "object",
		"required": []any{"to", "body"},
		"properties": map[string]any{
			"to":   map[string]any{"type": "string"},
			"body": map[string]any{"type": "string"},
		},
	},
	models.ActionSendEmail: {
		"type":     "object",
		"required": []any{"to", "subject", "body"},
		"properties": map[string]any{
			"to":      map[string]any{"type": "string"},
			"from":    map[string]any{"type": "string"},
			"subject": map[string]any{"type": "string"},
			"body":    map[string]any{"type": "string"},
		},
	},
	models.ActionCreateTask: {
		"type":     "object",
		"required": []any{"title"},
		"properties": map[string]any{
			"title":     map[string]any{"type": "string"},
			"dueInDays": map[string]any{"type": "number", "minimum": 1},
		},
	},
	// update_field has no required keys: missing prerequisites degrade to a
	// skipped result in the action itself.
	models.ActionUpdateField: {
		"type": "object",
		"properties": map[string]any{
			"table": map[string]any{"type": "string"},
			"field": map[string]any{"type": "string"},
		},
	},
	models.ActionWebhook: {
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "format": "uri"},
		},
	},
}

// ValidateConfig checks a step configuration against the schema for its
// action type. Unknown action types have no schema and pass.
func ValidateConfig(actionType models.ActionType, config map[string]any) error {
	schema, ok := configSchemas[actionType]
	if !ok {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate %s config: %w", actionType, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid %s config: %s", actionType, strings.Join(descriptions, "; "))
	}

	return nil
}
