package executor

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// Conditions that unconditionally select their step. This is how "the last
// step may stand for a default branch" is written in source.
var unconditional = map[string]bool{
	"default": true,
	"else":    true,
	"true":    true,
}

// evalCondition evaluates a branch condition against a snapshot of the
// variable store. Conditions are simple relational/equality comparisons on
// store values, e.g. "score < 5" or `status == "done"`.
func evalCondition(condition string, env map[string]any) (bool, error) {
	if unconditional[condition] {
		return true, nil
	}
	program, err := expr.Compile(condition, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", condition, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", condition, err)
	}
	return isTruthy(result), nil
}

// isTruthy converts a value to a boolean: false, empty string, zero and nil
// are false, everything else is true.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
