package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_NumericOperators(t *testing.T) {
	runContext := map[string]any{"count": 5}

	assert.True(t, Evaluate(Config{Field: "count", Operator: OpGreaterThan, Value: 3}, runContext))
	assert.False(t, Evaluate(Config{Field: "count", Operator: OpLessThan, Value: 3}, runContext))
	assert.True(t, Evaluate(Config{Field: "count", Operator: OpEquals, Value: 5}, runContext))
	assert.False(t, Evaluate(Config{Field: "count", Operator: OpIsEmpty}, runContext))
}

func TestEvaluate_StringOperators(t *testing.T) {
	runContext := map[string]any{
		"body": "please STOP now",
		"contact": map[string]any{
			"stage": "won",
		},
	}

	assert.True(t, Evaluate(Config{Field: "body", Operator: OpContains, Value: "STOP"}, runContext))
	assert.False(t, Evaluate(Config{Field: "body", Operator: OpContains, Value: "stop"}, runContext))
	assert.True(t, Evaluate(Config{Field: "body", Operator: OpNotContains, Value: "start"}, runContext))
	assert.True(t, Evaluate(Config{Field: "contact.stage", Operator: OpEquals, Value: "won"}, runContext))
	assert.True(t, Evaluate(Config{Field: "contact.stage", Operator: OpNotEquals, Value: "lost"}, runContext))
}

func TestEvaluate_NumericStringCoercion(t *testing.T) {
	runContext := map[string]any{"score": "42"}

	assert.True(t, Evaluate(Config{Field: "score", Operator: OpGreaterThan, Value: 10}, runContext))
	assert.True(t, Evaluate(Config{Field: "score", Operator: OpEquals, Value: "42"}, runContext))
}

func TestEvaluate_EmptyChecks(t *testing.T) {
	runContext := map[string]any{
		"empty":  "",
		"zero":   0,
		"filled": "x",
	}

	assert.True(t, Evaluate(Config{Field: "empty", Operator: OpIsEmpty}, runContext))
	assert.True(t, Evaluate(Config{Field: "zero", Operator: OpIsEmpty}, runContext))
	assert.True(t, Evaluate(Config{Field: "missing", Operator: OpIsEmpty}, runContext))
	assert.True(t, Evaluate(Config{Field: "filled", Operator: OpIsNotEmpty}, runContext))
	assert.False(t, Evaluate(Config{Field: "missing", Operator: OpIsNotEmpty}, runContext))
}

func TestEvaluate_MissingIntermediateKey(t *testing.T) {
	runContext := map[string]any{"a": "leaf"}

	assert.False(t, Evaluate(Config{Field: "a.b.c", Operator: OpEquals, Value: "x"}, runContext))
	assert.True(t, Evaluate(Config{Field: "a.b.c", Operator: OpIsEmpty}, runContext))
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	runContext := map[string]any{"count": 5}

	assert.False(t, Evaluate(Config{Field: "count", Operator: "regex_match", Value: ".*"}, runContext))
	assert.False(t, Known(Operator("regex_match")))
	assert.True(t, Known(OpGreaterThan))
}

func TestEvaluate_NonNumericComparison(t *testing.T) {
	runContext := map[string]any{"name": "alice"}

	assert.False(t, Evaluate(Config{Field: "name", Operator: OpGreaterThan, Value: 3}, runContext))
}

func TestParseConfig(t *testing.T) {
	config := ParseConfig(map[string]any{
		"field":    "count",
		"operator": "greater_than",
		"value":    3.0,
	})

	assert.Equal(t, "count", config.Field)
	assert.Equal(t, OpGreaterThan, config.Operator)
	assert.Equal(t, 3.0, config.Value)
}
