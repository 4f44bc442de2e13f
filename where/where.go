// Package where implements the predicate trees used to filter records.
//
// A tree is an And, an Or, or a Fields mapping from field name to a Leaf:
//
//	where.And{
//		where.Fields{"name": where.Eq("john")},
//		where.Fields{"age": where.Match(comparator.Lt(20))},
//	}
//
// A nil Tree matches every record.
package where

import "github.com/jacoelho/tidbit/comparator"

// Tree is a predicate over a single record.
type Tree interface {
	isTree()
}

// And matches when every branch matches. An empty And matches every record.
type And []Tree

// Or matches when at least one branch matches. An empty Or matches nothing.
type Or []Tree

// Fields matches when every declared field satisfies its leaf.
// A Fields with no entries matches every record.
type Fields map[string]Leaf

func (And) isTree()    {}
func (Or) isTree()     {}
func (Fields) isTree() {}

// Leaf is the condition attached to a single field.
type Leaf interface {
	isLeaf()
}

// Literal requires the field to be present and equal to Value.
// Numbers compare by value; maps and slices compare element-wise.
type Literal struct {
	Value any
}

// Func applies a comparator to the field value (nil when absent).
type Func comparator.Func

// Nested evaluates Tree against the field value.
type Nested struct {
	Tree Tree
}

// EmptyObject requires the field to be an object without keys.
type EmptyObject struct{}

func (Literal) isLeaf()     {}
func (Func) isLeaf()        {}
func (Nested) isLeaf()      {}
func (EmptyObject) isLeaf() {}

// Eq is shorthand for Literal{Value: v}.
func Eq(v any) Leaf { return Literal{Value: v} }

// Match wraps a comparator as a leaf.
func Match(fn comparator.Func) Leaf { return Func(fn) }

// Sub recurses into the field value with another tree.
func Sub(t Tree) Leaf { return Nested{Tree: t} }

// Empty matches fields holding an empty object.
func Empty() Leaf { return EmptyObject{} }
