// Package comparator builds unary predicates over a record field value.
//
// Every builder takes the comparison constant when the query is declared and
// returns a Func that receives the field value when a record is evaluated:
//
//	where.Fields{"age": where.Match(comparator.Lt(20))}
//
// Absent fields are passed to the Func as nil.
package comparator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jacoelho/tidbit/internal/number"
)

// ErrUnknownOperator is returned by Lookup for operator names it does not know.
var ErrUnknownOperator = errors.New("comparator: unknown operator")

// Func reports whether a field value satisfies the comparison.
type Func func(value any) bool

// Gte matches values greater than or equal to c.
func Gte(c any) Func {
	return func(v any) bool {
		r, ok := number.Compare(v, c)
		return ok && r >= 0
	}
}

// Gt matches values strictly greater than c.
func Gt(c any) Func {
	return func(v any) bool {
		r, ok := number.Compare(v, c)
		return ok && r > 0
	}
}

// Lt matches values strictly less than c.
func Lt(c any) Func {
	return func(v any) bool {
		r, ok := number.Compare(v, c)
		return ok && r < 0
	}
}

// Lte matches values less than or equal to c.
func Lte(c any) Func {
	return func(v any) bool {
		r, ok := number.Compare(v, c)
		return ok && r <= 0
	}
}

// Between takes the lower bound and returns a builder for the upper bound.
// Both bounds are exclusive: Between(2)(10) matches 5 but not 2 or 10.
func Between(lo any) func(hi any) Func {
	return func(hi any) Func {
		return Range(lo, hi)
	}
}

// Range is Between with both bounds supplied at once.
func Range(lo, hi any) Func {
	above, below := Gt(lo), Lt(hi)
	return func(v any) bool {
		return above(v) && below(v)
	}
}

// Eq matches values equal to c. Numbers compare by value.
func Eq(c any) Func {
	return func(v any) bool {
		return number.Equal(v, c)
	}
}

// Not matches values different from c. An absent field is nil, so Not(1)
// matches records without the field.
func Not(c any) Func {
	return func(v any) bool {
		return !number.Equal(v, c)
	}
}

// Includes matches strings containing the substring c and slices holding an
// element equal to c. Any other value never matches.
func Includes(c any) Func {
	return func(v any) bool {
		found, ok := contains(v, c)
		return ok && found
	}
}

// NotIncludes is the negation of Includes for strings and slices.
// Values that are not sequences never match.
func NotIncludes(c any) Func {
	return func(v any) bool {
		found, ok := contains(v, c)
		return ok && !found
	}
}

// Match matches string values against a regular expression.
// It panics if the pattern does not compile; see MatchErr.
func Match(pattern string) Func {
	fn, err := MatchErr(pattern)
	if err != nil {
		panic(err)
	}
	return fn
}

// MatchErr is Match returning the compilation error instead of panicking.
func MatchErr(pattern string) (Func, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return func(v any) bool {
		s, ok := v.(string)
		return ok && re.MatchString(s)
	}, nil
}

// contains reports whether v holds c. ok is false when v is not a sequence.
func contains(v, c any) (found bool, ok bool) {
	switch seq := v.(type) {
	case string:
		sub, isStr := c.(string)
		if !isStr {
			return false, true
		}
		return strings.Contains(seq, sub), true
	case []any:
		for _, item := range seq {
			if number.Equal(item, c) {
				return true, true
			}
		}
		return false, true
	case []string:
		sub, isStr := c.(string)
		if !isStr {
			return false, true
		}
		for _, item := range seq {
			if item == sub {
				return true, true
			}
		}
		return false, true
	default:
		return false, false
	}
}
