// Package conditions evaluates comparison expressions against run context data.
package conditions

import (
	"strconv"
	"strings"

	"github.com/relayhq/relay/pkg/models"
)

// Operator is the closed set of comparison operators a condition step
// supports.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
)

// Config is the parsed condition step configuration.
type Config struct {
	Field    string
	Operator Operator
	Value    any
}

// ParseConfig extracts the condition fields from a raw step configuration.
func ParseConfig(raw map[string]any) Config {
	field, _ := raw["field"].(string)
	operator, _ := raw["operator"].(string)

	return Config{
		Field:    field,
		Operator: Operator(operator),
		Value:    raw["value"],
	}
}

// Evaluate resolves the config's field via dotted-path lookup into the run
// context and applies the operator against the config value. Pure, no side
// effects. Unknown operators evaluate to false.
func Evaluate(config Config, runContext map[string]any) bool {
	actual, _ := models.LookupPath(runContext, config.Field)

	switch config.Operator {
	case OpEquals:
		return models.Stringify(actual) == models.Stringify(config.Value)
	case OpNotEquals:
		return models.Stringify(actual) != models.Stringify(config.Value)
	case OpContains:
		return strings.Contains(models.Stringify(actual), models.Stringify(config.Value))
	case OpNotContains:
		return !strings.Contains(models.Stringify(actual), models.Stringify(config.Value))
	case OpGreaterThan:
		left, right, ok := numericPair(actual, config.Value)

		return ok && left > right
	case OpLessThan:
		left, right, ok := numericPair(actual, config.Value)

		return ok && left < right
	case OpIsEmpty:
		return isEmpty(actual)
	case OpIsNotEmpty:
		return !isEmpty(actual)
	default:
		return false
	}
}

// Known reports whether the operator belongs to the supported set. Unknown
// operators are a configuration warning, not a run failure.
func Known(operator Operator) bool {
	switch operator {
	case OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpGreaterThan, OpLessThan, OpIsEmpty, OpIsNotEmpty:
		return true
	default:
		return false
	}
}

func numericPair(actual, expected any) (float64, float64, bool) {
	left, leftOK := toNumber(actual)
	right, rightOK := toNumber(expected)

	return left, right, leftOK && rightOK
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
