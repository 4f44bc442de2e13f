// Package query executes queries over JSON records.
//
// A Query is configured with chainable calls and executed with ToArray or
// ToSink:
//
//	results, err := query.New(users).
//		Find(where.Fields{"name": where.Eq("john")}).
//		Skip(1).
//		Limit(2).
//		ToArray(ctx)
//
// Collections flagged LoadInMemory are read eagerly and filtered as a slice;
// every other source is streamed element by element. Both strategies return
// the same records in the same order for the same configuration.
package query

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/jacoelho/tidbit/internal/logging"
	"github.com/jacoelho/tidbit/internal/paging"
	"github.com/jacoelho/tidbit/source"
	"github.com/jacoelho/tidbit/where"
)

var (
	// ErrSinkUnsupported is returned by ToSink on queries executed in memory.
	ErrSinkUnsupported = errors.New("query: in-memory collections cannot write to a sink")

	// ErrNoSource is returned when a streaming query has neither a collection
	// nor a reader to read from.
	ErrNoSource = errors.New("query: no collection or reader to read from")

	// ErrLimitReached is the cause attached to the execution context when a
	// streaming query stops reading because its limit is satisfied. It never
	// escapes an execution.
	ErrLimitReached = errors.New("query: limit reached")
)

// ProjectFunc maps a matching record, and the related record when a relation
// is configured, to the value returned by the query. related is nil when no
// relation is configured or nothing matched.
type ProjectFunc func(record, related any) (any, error)

// RelationOptions joins each record to the first record of Collection whose
// ForeignField equals the record's SourceField.
type RelationOptions struct {
	Collection   source.Collection
	SourceField  string
	ForeignField string
	// Mutate, when set, rewrites the source value before matching.
	Mutate func(value any) any
}

// Pagination is the skip/limit window applied to matching records.
// Nil fields are unset.
type Pagination struct {
	Skip  *int
	Limit *int
}

// Options is the configuration of a query.
type Options struct {
	Where      where.Tree
	Project    ProjectFunc
	Path       string
	Relation   *RelationOptions
	Pagination Pagination

	// Concurrency is the number of records projected in parallel by the
	// in-memory strategy. Values below 2 project sequentially.
	Concurrency int

	// Throttle caps the records read per second by the streaming strategy.
	// Zero means unlimited.
	Throttle float64
}

// Query is a query under construction. Builder methods mutate and return the
// receiver; every execution works on a snapshot of the options taken when it
// starts.
type Query struct {
	collection *source.Collection
	records    []any
	reader     io.Reader
	inMemory   bool
	opts       Options
}

// New returns a query over a registered collection, executed in memory when
// the collection is flagged LoadInMemory and streamed otherwise.
func New(c source.Collection) *Query {
	return &Query{collection: &c, inMemory: c.LoadInMemory}
}

// FromArray returns an in-memory query over already decoded records.
// Path has no effect on such queries.
func FromArray(records []any) *Query {
	return &Query{records: records, inMemory: true}
}

// FromReader returns a streaming query over the JSON documents read from r.
// The reader is consumed by the first execution and closed at its end when it
// implements io.Closer.
func FromReader(r io.Reader) *Query {
	return &Query{reader: r}
}

// Find sets the predicate records must satisfy.
func (q *Query) Find(tree where.Tree) *Query {
	q.opts.Where = tree
	return q
}

// Project sets the function applied to each returned record.
func (q *Query) Project(fn ProjectFunc) *Query {
	q.opts.Project = fn
	return q
}

// Relation sets the collection joined to every record before projection.
// The relation is resolved only when a projection is configured.
func (q *Query) Relation(opts RelationOptions) *Query {
	q.opts.Relation = &opts
	return q
}

// Path selects the array holding the records inside each document, as a dot
// separated path such as "data.results".
func (q *Query) Path(path string) *Query {
	q.opts.Path = path
	return q
}

// Limit caps the number of records returned.
func (q *Query) Limit(n int) *Query {
	q.opts.Pagination.Limit = &n
	return q
}

// Skip discards the first n matching records.
func (q *Query) Skip(n int) *Query {
	q.opts.Pagination.Skip = &n
	return q
}

// Concurrency sets how many records the in-memory strategy projects at once.
func (q *Query) Concurrency(n int) *Query {
	q.opts.Concurrency = n
	return q
}

// Throttle caps how many records per second the streaming strategy reads.
func (q *Query) Throttle(recordsPerSecond float64) *Query {
	q.opts.Throttle = recordsPerSecond
	return q
}

// InMemory reports whether the query runs with the in-memory strategy.
func (q *Query) InMemory() bool {
	return q.inMemory
}

// ToArray executes the query and buffers every result.
// A query matching nothing returns an empty, non-nil slice.
func (q *Query) ToArray(ctx context.Context) ([]any, error) {
	if q.inMemory {
		ctx, opts := q.begin(ctx, "memory")
		return runMemory(ctx, q, opts)
	}

	ctx, opts := q.begin(ctx, "stream")
	out := &collector{values: make([]any, 0)}
	if err := runStream(ctx, q, opts, out); err != nil {
		return nil, err
	}
	return out.values, nil
}

// ToSink executes the query and writes the results to w as one JSON array,
// element by element. w is closed when the execution ends. Queries matching
// nothing write "[]".
func (q *Query) ToSink(ctx context.Context, w io.WriteCloser) error {
	if q.inMemory {
		return ErrSinkUnsupported
	}

	ctx, opts := q.begin(ctx, "stream")
	framer := &arrayWriter{w: w}

	err := runStream(ctx, q, opts, framer)
	if err == nil {
		err = framer.finish()
	}
	if closeErr := w.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// begin takes the options snapshot and tags the execution logger.
func (q *Query) begin(ctx context.Context, strategy string) (context.Context, Options) {
	logger := logging.Ctx(ctx).With().
		Str("query_id", uuid.NewString()).
		Str("strategy", strategy).
		Str("collection", q.name()).
		Logger()
	return logger.WithContext(ctx), q.snapshot()
}

func (q *Query) snapshot() Options {
	opts := q.opts
	if p := opts.Pagination.Skip; p != nil {
		n := *p
		opts.Pagination.Skip = &n
	}
	if p := opts.Pagination.Limit; p != nil {
		n := *p
		opts.Pagination.Limit = &n
	}
	if opts.Relation != nil {
		rel := *opts.Relation
		opts.Relation = &rel
	}
	return opts
}

func (q *Query) name() string {
	switch {
	case q.collection != nil:
		return q.collection.Name
	case q.reader != nil:
		return "reader"
	default:
		return "array"
	}
}

// matcher applies the predicate and the pagination gate, in record order.
type matcher struct {
	where where.Tree
	gate  *paging.Gate
}

func newMatcher(opts Options) *matcher {
	return &matcher{
		where: opts.Where,
		gate:  paging.New(opts.Pagination.Skip, opts.Pagination.Limit),
	}
}

// admit reports whether record is returned, and whether the limit turned it
// away. Records failing the predicate never touch the gate.
func (m *matcher) admit(record any) (emit bool, stop bool) {
	if !where.Evaluate(m.where, record) {
		return false, false
	}
	switch m.gate.Admit() {
	case paging.Emit:
		return true, false
	case paging.Stop:
		return false, true
	default:
		return false, false
	}
}

// projector resolves the relation and applies the projection.
type projector struct {
	project  ProjectFunc
	relation *RelationOptions
}

func newProjector(opts Options) projector {
	return projector{project: opts.Project, relation: opts.Relation}
}

func (p projector) apply(ctx context.Context, record any) (any, error) {
	if p.project == nil {
		return record, nil
	}

	var related any
	if p.relation != nil {
		var err error
		related, err = resolveRelation(ctx, record, *p.relation)
		if err != nil {
			return nil, err
		}
	}
	return p.project(record, related)
}
