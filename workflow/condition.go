package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============================================================================
// CONDITION EXPRESSIONS
// ============================================================================
//
// Conditions gate graph nodes with expressions like:
//
//	intent == 'search'
//	confidence > 0.8
//	tags contains 'bug' and score >= 5

// Expression is a parsed condition.
type Expression interface {
	isExpression()
}

type TrueExpr struct{}

type FalseExpr struct{}

// CompareExpr compares a dotted state path against a literal.
type CompareExpr struct {
	Left  string
	Op    CompareOp
	Right Literal
}

type AndExpr struct {
	Left  Expression
	Right Expression
}

type OrExpr struct {
	Left  Expression
	Right Expression
}

type NotExpr struct {
	Expr Expression
}

func (TrueExpr) isExpression()    {}
func (FalseExpr) isExpression()   {}
func (CompareExpr) isExpression() {}
func (AndExpr) isExpression()     {}
func (OrExpr) isExpression()      {}
func (NotExpr) isExpression()     {}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNotEq
	OpGt
	OpGte
	OpLt
	OpLte
	OpContains
)

// LiteralKind discriminates literal values.
type LiteralKind int

const (
	LiteralNull LiteralKind = iota
	LiteralString
	LiteralNumber
	LiteralBool
)

// Literal is the right-hand side of a comparison.
type Literal struct {
	Kind LiteralKind
	Str  string
	Num  float64
	Bool bool
}

func NullLiteral() Literal            { return Literal{Kind: LiteralNull} }
func StringLiteral(s string) Literal  { return Literal{Kind: LiteralString, Str: s} }
func NumberLiteral(n float64) Literal { return Literal{Kind: LiteralNumber, Num: n} }
func BoolLiteral(b bool) Literal      { return Literal{Kind: LiteralBool, Bool: b} }

// ============================================================================
// PARSER
// ============================================================================

// ParseCondition parses a condition expression string.
func ParseCondition(input string) (Expression, error) {
	input = strings.TrimSpace(input)

	if input == "true" {
		return TrueExpr{}, nil
	}
	if input == "false" {
		return FalseExpr{}, nil
	}

	if expr, err := tryParseCompound(input); err != nil {
		return nil, err
	} else if expr != nil {
		return expr, nil
	}

	return parseComparison(input)
}

// tryParseCompound splits on the first top-level " and " or " or "
// (outside quotes and parentheses) and recurses on both sides.
func tryParseCompound(input string) (Expression, error) {
	depth := 0
	inString := false

	for i := 0; i < len(input); i++ {
		c := input[i]
		if c == '\'' || c == '"' {
			inString = !inString
		} else if !inString {
			switch {
			case c == '(':
				depth++
			case c == ')':
				depth--
			case depth == 0:
				if strings.HasPrefix(input[i:], " and ") {
					left, err := ParseCondition(input[:i])
					if err != nil {
						return nil, err
					}
					right, err := ParseCondition(input[i+5:])
					if err != nil {
						return nil, err
					}
					return AndExpr{Left: left, Right: right}, nil
				}
				if strings.HasPrefix(input[i:], " or ") {
					left, err := ParseCondition(input[:i])
					if err != nil {
						return nil, err
					}
					right, err := ParseCondition(input[i+4:])
					if err != nil {
						return nil, err
					}
					return OrExpr{Left: left, Right: right}, nil
				}
			}
		}
	}

	return nil, nil
}

func parseComparison(input string) (Expression, error) {
	// Two-character operators must be tried before their one-character
	// prefixes.
	operators := []struct {
		token string
		op    CompareOp
	}{
		{"!=", OpNotEq},
		{">=", OpGte},
		{"<=", OpLte},
		{"==", OpEq},
		{">", OpGt},
		{"<", OpLt},
		{" contains ", OpContains},
	}

	for _, candidate := range operators {
		if pos := findOperator(input, candidate.token); pos >= 0 {
			left := strings.TrimSpace(input[:pos])
			right, err := parseLiteral(input[pos+len(candidate.token):])
			if err != nil {
				return nil, err
			}
			return CompareExpr{Left: left, Op: candidate.op, Right: right}, nil
		}
	}

	return nil, fmt.Errorf("Could not parse condition: %s", input)
}

// findOperator locates the first occurrence of op outside quotes.
func findOperator(input, op string) int {
	inString := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c == '\'' || c == '"' {
			inString = !inString
		} else if !inString && strings.HasPrefix(input[i:], op) {
			return i
		}
	}
	return -1
}

func parseLiteral(input string) (Literal, error) {
	input = strings.TrimSpace(input)

	switch input {
	case "null":
		return NullLiteral(), nil
	case "true":
		return BoolLiteral(true), nil
	case "false":
		return BoolLiteral(false), nil
	}

	if len(input) >= 2 {
		if (strings.HasPrefix(input, "'") && strings.HasSuffix(input, "'")) ||
			(strings.HasPrefix(input, `"`) && strings.HasSuffix(input, `"`)) {
			return StringLiteral(input[1 : len(input)-1]), nil
		}
	}

	if n, err := strconv.ParseFloat(input, 64); err == nil {
		return NumberLiteral(n), nil
	}

	return Literal{}, fmt.Errorf("Could not parse literal: %s", input)
}

// ============================================================================
// EVALUATOR
// ============================================================================

// epsilon is the tolerance for numeric equality.
var epsilon = math.Nextafter(1, 2) - 1

// Evaluate evaluates an expression against workflow state. Comparisons
// on type-mismatched or missing values are false, never errors.
func Evaluate(expr Expression, state *WorkflowState) bool {
	switch e := expr.(type) {
	case TrueExpr:
		return true
	case FalseExpr:
		return false
	case CompareExpr:
		return evaluateCompare(e, state)
	case AndExpr:
		return Evaluate(e.Left, state) && Evaluate(e.Right, state)
	case OrExpr:
		return Evaluate(e.Left, state) || Evaluate(e.Right, state)
	case NotExpr:
		return !Evaluate(e.Expr, state)
	default:
		return false
	}
}

func evaluateCompare(expr CompareExpr, state *WorkflowState) bool {
	left, found := state.GetPath(expr.Left)

	switch expr.Op {
	case OpEq:
		return valuesEqual(left, found, expr.Right)
	case OpNotEq:
		return !valuesEqual(left, found, expr.Right)
	case OpGt:
		return compareNumbers(left, found, expr.Right, func(a, b float64) bool { return a > b })
	case OpGte:
		return compareNumbers(left, found, expr.Right, func(a, b float64) bool { return a >= b })
	case OpLt:
		return compareNumbers(left, found, expr.Right, func(a, b float64) bool { return a < b })
	case OpLte:
		return compareNumbers(left, found, expr.Right, func(a, b float64) bool { return a <= b })
	case OpContains:
		return checkContains(left, found, expr.Right)
	default:
		return false
	}
}

func valuesEqual(left interface{}, found bool, right Literal) bool {
	// A missing path and an explicit null both equal the null literal.
	if !found || left == nil {
		return right.Kind == LiteralNull
	}

	switch v := left.(type) {
	case string:
		return right.Kind == LiteralString && v == right.Str
	case bool:
		return right.Kind == LiteralBool && v == right.Bool
	default:
		if n, ok := asNumber(left); ok {
			return right.Kind == LiteralNumber && math.Abs(n-right.Num) < epsilon
		}
		return false
	}
}

func compareNumbers(left interface{}, found bool, right Literal, cmp func(a, b float64) bool) bool {
	if !found || right.Kind != LiteralNumber {
		return false
	}
	n, ok := asNumber(left)
	if !ok {
		return false
	}
	return cmp(n, right.Num)
}

func checkContains(left interface{}, found bool, right Literal) bool {
	if !found {
		return false
	}

	switch v := left.(type) {
	case string:
		return right.Kind == LiteralString && strings.Contains(v, right.Str)
	case []interface{}:
		for _, item := range v {
			switch right.Kind {
			case LiteralString:
				if s, ok := item.(string); ok && s == right.Str {
					return true
				}
			case LiteralNumber:
				if n, ok := asNumber(item); ok && math.Abs(n-right.Num) < epsilon {
					return true
				}
			case LiteralBool:
				if b, ok := item.(bool); ok && b == right.Bool {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// asNumber coerces the numeric types produced by the YAML and JSON
// decoders. Booleans are deliberately not numbers.
func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
