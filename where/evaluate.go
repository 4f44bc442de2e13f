package where

import "github.com/jacoelho/tidbit/internal/number"

// Evaluate reports whether record satisfies t.
//
// Evaluation never fails: a record that cannot be evaluated against the tree
// (a field that is not an object, a comparator that panics) does not match.
// Failures are contained to the sub-tree being evaluated, so an Or can still
// match through another branch.
func Evaluate(t Tree, record any) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	switch node := t.(type) {
	case nil:
		return true
	case And:
		for _, branch := range node {
			if !Evaluate(branch, record) {
				return false
			}
		}
		return true
	case Or:
		for _, branch := range node {
			if Evaluate(branch, record) {
				return true
			}
		}
		return false
	case Fields:
		return node.match(record)
	default:
		return false
	}
}

func (f Fields) match(record any) bool {
	if len(f) == 0 {
		return true
	}

	obj, ok := record.(map[string]any)
	if !ok {
		return false
	}

	for name, leaf := range f {
		value, present := obj[name]
		if !matchLeaf(leaf, value, present) {
			return false
		}
	}
	return true
}

func matchLeaf(leaf Leaf, value any, present bool) bool {
	switch l := leaf.(type) {
	case Func:
		return l(value)
	case EmptyObject:
		m, ok := value.(map[string]any)
		return ok && len(m) == 0
	case Nested:
		return Evaluate(l.Tree, value)
	case Literal:
		return present && number.Equal(value, l.Value)
	default:
		return false
	}
}
