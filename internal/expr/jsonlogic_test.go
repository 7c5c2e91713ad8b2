package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygraph/toolgraphd/internal/expr"
)

func TestJSONLogic_VarIsEvaluatedAsJSONataNotDotPath(t *testing.T) {
	jsonata := expr.NewJSONata()
	jsonlogic := expr.NewJSONLogic(jsonata)

	rule := map[string]any{
		">": []any{
			map[string]any{"var": "value"},
			10,
		},
	}

	matched, err := jsonlogic.Eval(rule, map[string]any{"value": 15}, expr.HistoryView{})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = jsonlogic.Eval(rule, map[string]any{"value": 5}, expr.HistoryView{})
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestJSONLogic_ValidateRule(t *testing.T) {
	jsonata := expr.NewJSONata()
	jsonlogic := expr.NewJSONLogic(jsonata)

	valid := map[string]any{">": []any{map[string]any{"var": "$.value"}, 0}}
	assert.NoError(t, jsonlogic.ValidateRule(valid))

	invalid := map[string]any{">": []any{map[string]any{"var": "$.value >"}, 0}}
	assert.Error(t, jsonlogic.ValidateRule(invalid))
}

func TestJSONLogic_PlainDotPathVarIsStillJSONataEvaluated(t *testing.T) {
	jsonata := expr.NewJSONata()
	jsonlogic := expr.NewJSONLogic(jsonata)

	rule := map[string]any{"==": []any{map[string]any{"var": "status"}, "ready"}}
	matched, err := jsonlogic.Eval(rule, map[string]any{"status": "ready"}, expr.HistoryView{})
	require.NoError(t, err)
	assert.True(t, matched)
}
