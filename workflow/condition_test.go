package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, input string) Expression {
	t.Helper()
	expr, err := ParseCondition(input)
	require.NoError(t, err)
	return expr
}

func stateWith(pairs map[string]interface{}) *WorkflowState {
	state := EmptyState()
	for k, v := range pairs {
		state.Update(k, v)
	}
	return state
}

func TestParseSimpleEquality(t *testing.T) {
	expr := mustParse(t, "intent == 'search'")
	assert.Equal(t, CompareExpr{Left: "intent", Op: OpEq, Right: StringLiteral("search")}, expr)
}

func TestParseNotEqual(t *testing.T) {
	expr := mustParse(t, "status != 'done'")
	assert.Equal(t, CompareExpr{Left: "status", Op: OpNotEq, Right: StringLiteral("done")}, expr)
}

func TestParseNumericOperators(t *testing.T) {
	assert.Equal(t, CompareExpr{Left: "confidence", Op: OpGt, Right: NumberLiteral(0.8)}, mustParse(t, "confidence > 0.8"))
	assert.Equal(t, CompareExpr{Left: "score", Op: OpGte, Right: NumberLiteral(5)}, mustParse(t, "score >= 5"))
	assert.Equal(t, CompareExpr{Left: "count", Op: OpLte, Right: NumberLiteral(10)}, mustParse(t, "count <= 10"))
	assert.Equal(t, CompareExpr{Left: "priority", Op: OpLt, Right: NumberLiteral(3)}, mustParse(t, "priority < 3"))
}

func TestParseBooleanLiteral(t *testing.T) {
	expr := mustParse(t, "is_draft == false")
	assert.Equal(t, CompareExpr{Left: "is_draft", Op: OpEq, Right: BoolLiteral(false)}, expr)
}

func TestParseNullCheck(t *testing.T) {
	expr := mustParse(t, "error == null")
	assert.Equal(t, CompareExpr{Left: "error", Op: OpEq, Right: NullLiteral()}, expr)
}

func TestParseContains(t *testing.T) {
	expr := mustParse(t, "tags contains 'bug'")
	assert.Equal(t, CompareExpr{Left: "tags", Op: OpContains, Right: StringLiteral("bug")}, expr)
}

func TestParseAnd(t *testing.T) {
	expr := mustParse(t, "a == 'x' and b > 5")
	and, ok := expr.(AndExpr)
	require.True(t, ok)
	assert.Equal(t, CompareExpr{Left: "a", Op: OpEq, Right: StringLiteral("x")}, and.Left)
	assert.Equal(t, CompareExpr{Left: "b", Op: OpGt, Right: NumberLiteral(5)}, and.Right)
}

func TestParseOr(t *testing.T) {
	expr := mustParse(t, "type == 'bug' or priority > 3")
	or, ok := expr.(OrExpr)
	require.True(t, ok)
	assert.Equal(t, CompareExpr{Left: "type", Op: OpEq, Right: StringLiteral("bug")}, or.Left)
	assert.Equal(t, CompareExpr{Left: "priority", Op: OpGt, Right: NumberLiteral(3)}, or.Right)
}

func TestParseTrueFalse(t *testing.T) {
	assert.Equal(t, TrueExpr{}, mustParse(t, "true"))
	assert.Equal(t, FalseExpr{}, mustParse(t, "false"))
	assert.Equal(t, TrueExpr{}, mustParse(t, "  true  "))
}

func TestParseDoubleQuotes(t *testing.T) {
	expr := mustParse(t, `name == "hello"`)
	assert.Equal(t, CompareExpr{Left: "name", Op: OpEq, Right: StringLiteral("hello")}, expr)
}

func TestParseOperatorInsideQuotesIgnored(t *testing.T) {
	// The "and" inside the string literal must not split the expression.
	expr := mustParse(t, "message == 'cats and dogs'")
	assert.Equal(t, CompareExpr{Left: "message", Op: OpEq, Right: StringLiteral("cats and dogs")}, expr)
}

func TestParseInvalid(t *testing.T) {
	_, err := ParseCondition("this is not valid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not parse condition")

	_, err = ParseCondition("field == @bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not parse literal")
}

func TestEvaluateStringEquality(t *testing.T) {
	state := stateWith(map[string]interface{}{"intent": "search"})

	assert.True(t, Evaluate(mustParse(t, "intent == 'search'"), state))
	assert.False(t, Evaluate(mustParse(t, "intent == 'code'"), state))
	assert.True(t, Evaluate(mustParse(t, "intent != 'code'"), state))
	assert.False(t, Evaluate(mustParse(t, "intent != 'search'"), state))
}

func TestEvaluateNumberComparison(t *testing.T) {
	state := stateWith(map[string]interface{}{"score": 7.5})

	assert.True(t, Evaluate(mustParse(t, "score > 5"), state))
	assert.False(t, Evaluate(mustParse(t, "score > 10"), state))
	assert.True(t, Evaluate(mustParse(t, "score >= 7.5"), state))
	assert.False(t, Evaluate(mustParse(t, "score >= 8"), state))
	assert.True(t, Evaluate(mustParse(t, "score < 10"), state))
	assert.False(t, Evaluate(mustParse(t, "score < 5"), state))
	assert.True(t, Evaluate(mustParse(t, "score <= 7.5"), state))
	assert.False(t, Evaluate(mustParse(t, "score <= 7"), state))
}

func TestEvaluateIntegerValues(t *testing.T) {
	// YAML defaults decode as int while JSON outputs decode as float64;
	// both sides must compare as numbers.
	state := stateWith(map[string]interface{}{"count": 5})

	assert.True(t, Evaluate(mustParse(t, "count == 5"), state))
	assert.True(t, Evaluate(mustParse(t, "count > 3"), state))
}

func TestEvaluateBoolean(t *testing.T) {
	state := stateWith(map[string]interface{}{"is_draft": true})

	assert.True(t, Evaluate(mustParse(t, "is_draft == true"), state))
	assert.False(t, Evaluate(mustParse(t, "is_draft == false"), state))
}

func TestEvaluateNullCheck(t *testing.T) {
	state := stateWith(map[string]interface{}{"result": nil})

	assert.True(t, Evaluate(mustParse(t, "result == null"), state))
	assert.False(t, Evaluate(mustParse(t, "result != null"), state))

	// A missing field also equals null, but nothing else.
	assert.True(t, Evaluate(mustParse(t, "missing == null"), state))
	assert.False(t, Evaluate(mustParse(t, "missing == 'value'"), state))
}

func TestEvaluateTypeMismatchIsFalse(t *testing.T) {
	state := stateWith(map[string]interface{}{"name": "seven"})

	assert.False(t, Evaluate(mustParse(t, "name > 5"), state))
	assert.False(t, Evaluate(mustParse(t, "name == 7"), state))
	assert.False(t, Evaluate(mustParse(t, "name == true"), state))
}

func TestEvaluateContainsString(t *testing.T) {
	state := stateWith(map[string]interface{}{"message": "hello world"})

	assert.True(t, Evaluate(mustParse(t, "message contains 'world'"), state))
	assert.False(t, Evaluate(mustParse(t, "message contains 'foo'"), state))
}

func TestEvaluateContainsArray(t *testing.T) {
	state := stateWith(map[string]interface{}{
		"tags":   []interface{}{"bug", "urgent", "backend"},
		"scores": []interface{}{1.0, 2.5},
		"flags":  []interface{}{true},
	})

	assert.True(t, Evaluate(mustParse(t, "tags contains 'bug'"), state))
	assert.False(t, Evaluate(mustParse(t, "tags contains 'frontend'"), state))
	assert.True(t, Evaluate(mustParse(t, "scores contains 2.5"), state))
	assert.True(t, Evaluate(mustParse(t, "flags contains true"), state))
}

func TestEvaluateAndOr(t *testing.T) {
	state := stateWith(map[string]interface{}{
		"intent":     "code",
		"confidence": 0.9,
		"type":       "feature",
		"priority":   5,
	})

	assert.True(t, Evaluate(mustParse(t, "intent == 'code' and confidence > 0.8"), state))
	assert.False(t, Evaluate(mustParse(t, "intent == 'code' and confidence > 0.95"), state))
	assert.True(t, Evaluate(mustParse(t, "type == 'bug' or priority > 3"), state))
	assert.False(t, Evaluate(mustParse(t, "type == 'bug' or priority > 10"), state))
}

func TestEvaluateNestedPath(t *testing.T) {
	state := stateWith(map[string]interface{}{
		"result": map[string]interface{}{
			"data": map[string]interface{}{"intent": "search"},
		},
	})

	assert.True(t, Evaluate(mustParse(t, "result.data.intent == 'search'"), state))
	assert.False(t, Evaluate(mustParse(t, "result.data.intent == 'code'"), state))
}

func TestEvaluateLiteralTrueFalse(t *testing.T) {
	state := EmptyState()

	assert.True(t, Evaluate(TrueExpr{}, state))
	assert.False(t, Evaluate(FalseExpr{}, state))
	assert.True(t, Evaluate(NotExpr{Expr: FalseExpr{}}, state))
}
