package comparator

import (
	"fmt"
	"strings"
)

// Operator names accepted by Lookup.
const (
	OpGt          = "gt"
	OpGte         = "gte"
	OpLt          = "lt"
	OpLte         = "lte"
	OpBetween     = "between"
	OpEq          = "eq"
	OpNot         = "not"
	OpIncludes    = "includes"
	OpNotIncludes = "not_includes"
	OpRegex       = "regex"
)

// IsValidOperator checks if an operator name is known to Lookup.
func IsValidOperator(op string) bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte, OpBetween, OpEq, OpNot, OpIncludes, OpNotIncludes, OpRegex:
		return true
	default:
		return false
	}
}

// Lookup builds a comparator from its operator name and constant.
// between expects a list with exactly two bounds and regex a string pattern.
func Lookup(op string, value any) (Func, error) {
	switch strings.TrimSpace(op) {
	case OpGt:
		return Gt(value), nil
	case OpGte:
		return Gte(value), nil
	case OpLt:
		return Lt(value), nil
	case OpLte:
		return Lte(value), nil
	case OpEq:
		return Eq(value), nil
	case OpNot:
		return Not(value), nil
	case OpIncludes:
		return Includes(value), nil
	case OpNotIncludes:
		return NotIncludes(value), nil
	case OpBetween:
		bounds, ok := value.([]any)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("between expects a list of two bounds, got %v", value)
		}
		return Between(bounds[0])(bounds[1]), nil
	case OpRegex:
		pattern, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("regex expects a string pattern, got %T", value)
		}
		return MatchErr(pattern)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}
