// Package paging implements the skip/limit gate applied to records that
// already matched the query predicate.
package paging

// Decision is the outcome of admitting a matching record.
type Decision uint8

const (
	// Emit passes the record downstream.
	Emit Decision = iota
	// Skip discards the record because it falls within the skip window.
	Skip
	// Stop discards the record because the limit is satisfied. Streaming
	// executions stop reading their source on Stop.
	Stop
)

func (d Decision) String() string {
	switch d {
	case Emit:
		return "emit"
	case Skip:
		return "skip"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Gate counts skipped and emitted records for one execution.
// A Gate must not be shared between executions.
type Gate struct {
	skip     int
	limit    int
	hasSkip  bool
	hasLimit bool

	skipped int
	found   int
}

// New returns a gate for the given window. A nil skip or limit is unset.
func New(skip, limit *int) *Gate {
	g := &Gate{}
	if skip != nil {
		g.skip, g.hasSkip = *skip, true
	}
	if limit != nil {
		g.limit, g.hasLimit = *limit, true
	}
	return g
}

// Admit must be called, in order, for every record that matched the predicate.
func (g *Gate) Admit() Decision {
	if g.hasSkip && g.skipped < g.skip {
		g.skipped++
		return Skip
	}
	if g.hasLimit && g.found >= g.limit {
		return Stop
	}
	g.found++
	return Emit
}

// Done reports whether the limit is satisfied, meaning no further record can
// be emitted.
func (g *Gate) Done() bool {
	return g.hasLimit && g.found >= g.limit
}

// Skipped returns the number of matching records discarded by skip.
func (g *Gate) Skipped() int { return g.skipped }

// Found returns the number of records emitted.
func (g *Gate) Found() int { return g.found }
