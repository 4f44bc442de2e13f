package query

import (
	"context"
	"fmt"

	"github.com/jacoelho/tidbit/where"
)

// resolveRelation returns the first record of rel.Collection whose foreign
// field equals the record's source field, or nil when nothing matches.
//
// Each call runs a complete query against the related collection with the
// strategy that collection is flagged for. Nothing is cached between records.
func resolveRelation(ctx context.Context, record any, rel RelationOptions) (any, error) {
	obj, ok := record.(map[string]any)
	if !ok {
		return nil, nil
	}

	value, present := obj[rel.SourceField]
	if rel.Mutate != nil {
		value, present = rel.Mutate(value), true
	}
	if !present {
		return nil, nil
	}

	matches, err := New(rel.Collection).
		Find(where.Fields{rel.ForeignField: where.Eq(value)}).
		Limit(1).
		ToArray(ctx)
	if err != nil {
		return nil, fmt.Errorf("relation %s.%s: %w", rel.Collection.Name, rel.ForeignField, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}
