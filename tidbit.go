// Package tidbit queries collections of JSON files.
//
// A Tidbit holds the collections registered at construction and hands out
// queries over them:
//
//	db, err := tidbit.New(
//		source.Collection{Name: "users", Files: []source.File{source.Path("users.json")}},
//	)
//	...
//	q, err := db.Collection("users")
//	...
//	err = q.Find(where.Fields{"name": where.Eq("john")}).Limit(10).ToSink(ctx, os.Stdout)
//
// Collections are read-only once registered and may back any number of
// concurrent queries.
package tidbit

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/jacoelho/tidbit/query"
	"github.com/jacoelho/tidbit/source"
)

var (
	// ErrUnknownCollection is returned when no collection has the requested name.
	ErrUnknownCollection = errors.New("tidbit: unknown collection")

	// ErrDuplicateCollection is returned when two collections share a name.
	ErrDuplicateCollection = errors.New("tidbit: duplicate collection")
)

// Tidbit is a registry of collections.
type Tidbit struct {
	collections map[string]source.Collection
	order       []string
}

// New registers collections. Names must be unique and non-empty.
func New(collections ...source.Collection) (*Tidbit, error) {
	t := &Tidbit{collections: make(map[string]source.Collection, len(collections))}

	for _, c := range collections {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrUnknownCollection)
		}
		if _, exists := t.collections[c.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCollection, c.Name)
		}
		c.Files = slices.Clone(c.Files)
		t.collections[c.Name] = c
		t.order = append(t.order, c.Name)
	}
	return t, nil
}

// Collection returns a new query over the named collection. The query runs in
// memory when the collection is flagged LoadInMemory and streams otherwise.
func (t *Tidbit) Collection(name string) (*query.Query, error) {
	c, err := t.Lookup(name)
	if err != nil {
		return nil, err
	}
	return query.New(c), nil
}

// Lookup returns the named collection, typically to join it as a relation.
func (t *Tidbit) Lookup(name string) (source.Collection, error) {
	c, ok := t.collections[name]
	if !ok {
		return source.Collection{}, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// Names lists the registered collections in registration order.
func (t *Tidbit) Names() []string {
	return slices.Clone(t.order)
}

// FromArray returns an in-memory query over records not backed by a collection.
func (t *Tidbit) FromArray(records []any) *query.Query {
	return query.FromArray(records)
}

// FromReader returns a streaming query over the JSON documents read from r.
func (t *Tidbit) FromReader(r io.Reader) *query.Query {
	return query.FromReader(r)
}
