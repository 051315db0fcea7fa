package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved run context keys. These are fixed at context build time and are
// never shadowed by event payload keys.
const (
	ContextKeyOrgID    = "orgId"
	ContextKeyOrgSlug  = "orgSlug"
	ContextKeyEntityID = "entityId"
)

// BuildRunContext builds the run-scoped key/value context for one run: the
// event payload merged under the reserved keys, reserved keys winning on
// overlap. Steps may append derived values for later steps in the same run.
func BuildRunContext(event *Event) map[string]any {
	runContext := make(map[string]any, len(event.Payload)+3)

	for key, value := range event.Payload {
		runContext[key] = value
	}

	runContext[ContextKeyOrgID] = event.OrgID
	runContext[ContextKeyOrgSlug] = event.OrgSlug
	runContext[ContextKeyEntityID] = event.EntityID

	// Entity type is useful for entity-scoped actions but is not reserved:
	// a payload key of the same name wins.
	if _, exists := runContext["entityType"]; !exists {
		runContext["entityType"] = event.EntityType
	}

	return runContext
}

// LookupPath resolves a dotted path ("a.b.c") into nested maps. Any missing
// intermediate key yields (nil, false).
func LookupPath(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")

	var current any = data

	for _, part := range parts {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Stringify renders a context value the way it appears in message bodies and
// comparisons: integral floats without a trailing ".0", everything else via
// fmt.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}

		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
