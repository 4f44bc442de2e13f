// Package number normalises Go numeric values so that records decoded from
// JSON (float64) and values written in Go code (int, int64, ...) compare by value.
package number

import (
	"encoding/json"
	"fmt"
	"math"
)

// ToFloat64 converts supported numeric values to float64.
func ToFloat64(value any) (float64, bool) {
	switch current := value.(type) {
	case int:
		return float64(current), true
	case int8:
		return float64(current), true
	case int16:
		return float64(current), true
	case int32:
		return float64(current), true
	case int64:
		return float64(current), true
	case uint:
		return float64(current), true
	case uint8:
		return float64(current), true
	case uint16:
		return float64(current), true
	case uint32:
		return float64(current), true
	case uint64:
		return float64(current), true
	case float32:
		return float64(current), true
	case float64:
		return current, true
	case json.Number:
		parsed, err := current.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// ToCount converts a whole, non-negative number into an int.
// Used for skip and limit values that arrive as int64, uint64 or float64.
func ToCount(value any) (int, error) {
	f, ok := ToFloat64(value)
	if !ok {
		return 0, fmt.Errorf("value %T is not a number", value)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("value %v is not a non-negative integer", value)
	}
	return int(f), nil
}

// Compare orders two numbers or two strings.
// ok is false when the values are not comparable with each other.
func Compare(a, b any) (result int, ok bool) {
	if fa, isNum := ToFloat64(a); isNum {
		fb, isNum := ToFloat64(b)
		if !isNum || math.IsNaN(fa) || math.IsNaN(fb) {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	sa, isStr := a.(string)
	if !isStr {
		return 0, false
	}
	sb, isStr := b.(string)
	if !isStr {
		return 0, false
	}
	switch {
	case sa < sb:
		return -1, true
	case sa > sb:
		return 1, true
	default:
		return 0, true
	}
}

// Equal reports whether two JSON-like values are equal.
// Numbers compare by value regardless of their Go type; maps and slices
// compare element-wise.
func Equal(a, b any) bool {
	if fa, ok := ToFloat64(a); ok {
		fb, ok := ToFloat64(b)
		return ok && fa == fb
	}

	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
