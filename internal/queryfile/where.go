package queryfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml/ast"

	"github.com/jacoelho/tidbit/comparator"
	"github.com/jacoelho/tidbit/where"
)

// Where is a predicate tree decoded from YAML.
//
// A mapping whose only key is "and" or "or" holding a list combines the
// listed trees. Any other mapping constrains fields:
//
//	name: john                    # literal equality
//	age: {op: between, value: [20, 40]}
//	address: {}                   # the field is an empty object
//	contents:                     # nested tree on an object field
//	  pocket: {brand: acme}
type Where struct {
	tree where.Tree
}

// Tree returns the decoded predicate, nil when none was given.
func (w Where) Tree() where.Tree {
	return w.tree
}

// UnmarshalYAML decodes a predicate tree.
func (w *Where) UnmarshalYAML(node ast.Node) error {
	tree, err := parseTree(node)
	if err != nil {
		return fmt.Errorf("where: %w", err)
	}
	w.tree = tree
	return nil
}

func parseTree(node ast.Node) (where.Tree, error) {
	pairs, ok := mappingPairs(node)
	if !ok {
		return nil, errors.New("predicate tree must be a mapping")
	}

	if len(pairs) == 1 {
		if key, ok := pairs[0].Key.(*ast.StringNode); ok && (key.Value == "and" || key.Value == "or") {
			if seq, ok := pairs[0].Value.(*ast.SequenceNode); ok {
				return parseCombinator(key.Value, seq)
			}
		}
	}

	fields := make(where.Fields, len(pairs))
	for _, pair := range pairs {
		key, ok := pair.Key.(*ast.StringNode)
		if !ok {
			return nil, errors.New("field name must be a string")
		}
		leaf, err := parseLeaf(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key.Value, err)
		}
		fields[key.Value] = leaf
	}
	return fields, nil
}

func parseCombinator(kind string, seq *ast.SequenceNode) (where.Tree, error) {
	trees := make([]where.Tree, 0, len(seq.Values))
	for i, item := range seq.Values {
		tree, err := parseTree(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		trees = append(trees, tree)
	}

	if kind == "and" {
		return where.And(trees), nil
	}
	return where.Or(trees), nil
}

func parseLeaf(node ast.Node) (where.Leaf, error) {
	pairs, isMapping := mappingPairs(node)
	if !isMapping {
		value, err := nodeToValue(node)
		if err != nil {
			return nil, err
		}
		return where.Eq(value), nil
	}

	if len(pairs) == 0 {
		return where.Empty(), nil
	}

	for _, pair := range pairs {
		if key, ok := pair.Key.(*ast.StringNode); ok && key.Value == "op" {
			return parsePredicate(pairs)
		}
	}

	sub, err := parseTree(node)
	if err != nil {
		return nil, err
	}
	return where.Sub(sub), nil
}

// parsePredicate decodes the strict form:
//
//	op: <operator>
//	value: <any>
func parsePredicate(pairs []*ast.MappingValueNode) (where.Leaf, error) {
	var (
		op       string
		value    any
		hasValue bool
	)

	for _, pair := range pairs {
		key, ok := pair.Key.(*ast.StringNode)
		if !ok {
			return nil, errors.New("predicate key must be a string")
		}

		switch key.Value {
		case "op":
			opNode, ok := pair.Value.(*ast.StringNode)
			if !ok {
				return nil, errors.New("op value must be a string")
			}
			op = strings.TrimSpace(opNode.Value)
		case "value":
			v, err := nodeToValue(pair.Value)
			if err != nil {
				return nil, fmt.Errorf("failed to parse value: %w", err)
			}
			value, hasValue = v, true
		default:
			return nil, fmt.Errorf("unsupported predicate key %q: use 'op' and 'value'", key.Value)
		}
	}

	if !comparator.IsValidOperator(op) {
		return nil, fmt.Errorf("%w: %q", comparator.ErrUnknownOperator, op)
	}
	if !hasValue {
		return nil, fmt.Errorf("op %q requires a value", op)
	}

	fn, err := comparator.Lookup(op, value)
	if err != nil {
		return nil, err
	}
	return where.Match(fn), nil
}

// mappingPairs returns the entries of a mapping node. A mapping with a single
// entry may be decoded as a bare MappingValueNode.
func mappingPairs(node ast.Node) ([]*ast.MappingValueNode, bool) {
	switch n := node.(type) {
	case *ast.MappingNode:
		return n.Values, true
	case *ast.MappingValueNode:
		return []*ast.MappingValueNode{n}, true
	default:
		return nil, false
	}
}

// nodeToValue extracts literal values from AST nodes.
// integer node value is normalized to int64
// float node value is always float64
func nodeToValue(node ast.Node) (any, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		switch v := n.Value.(type) {
		case int64:
			return v, nil
		case uint64:
			return int64(v), nil
		default:
			return nil, fmt.Errorf("unexpected integer node value type: %T", n.Value)
		}
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.StringNode:
		return n.Value, nil
	case *ast.BoolNode:
		return n.Value, nil
	case *ast.NullNode:
		return nil, nil
	case *ast.SequenceNode:
		result := make([]any, 0, len(n.Values))
		for i, item := range n.Values {
			val, err := nodeToValue(item)
			if err != nil {
				return nil, fmt.Errorf("invalid value at index %d: %w", i, err)
			}
			result = append(result, val)
		}
		return result, nil
	case *ast.MappingNode, *ast.MappingValueNode:
		pairs, _ := mappingPairs(node)
		result := make(map[string]any, len(pairs))
		for _, pair := range pairs {
			key, ok := pair.Key.(*ast.StringNode)
			if !ok {
				return nil, errors.New("object key must be a string")
			}
			val, err := nodeToValue(pair.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid value at key %q: %w", key.Value, err)
			}
			result[key.Value] = val
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported node type: %T", node)
	}
}
