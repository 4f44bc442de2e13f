package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jacoelho/tidbit/internal/jsonpath"
	"github.com/jacoelho/tidbit/internal/logging"
	"github.com/jacoelho/tidbit/source"
)

// runMemory loads every record, filters them in one pass and projects the
// survivors. The whole slice is always scanned: the limit only decides which
// records are kept.
func runMemory(ctx context.Context, q *Query, opts Options) ([]any, error) {
	log := logging.Ctx(ctx)
	log.Debug().Str("path", opts.Path).Msg("loading records")

	records, err := load(ctx, q, opts.Path)
	if err != nil {
		return nil, err
	}

	m := newMatcher(opts)
	kept := make([]any, 0)
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if emit, _ := m.admit(record); emit {
			kept = append(kept, record)
		}
	}

	results, err := projectAll(ctx, newProjector(opts), kept, opts.Concurrency)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("scanned", len(records)).
		Int("skipped", m.gate.Skipped()).
		Int("found", m.gate.Found()).
		Msg("query completed")
	return results, nil
}

// load reads every file of the collection, in declaration order, or returns
// the records the query was built with.
func load(ctx context.Context, q *Query, path string) ([]any, error) {
	if q.collection == nil {
		return q.records, nil
	}

	var records []any
	for _, ref := range source.Explode(q.collection.Files) {
		fileRecords, err := loadFile(ctx, ref, path)
		if err != nil {
			return nil, err
		}
		records = append(records, fileRecords...)
	}
	return records, nil
}

func loadFile(ctx context.Context, ref source.Ref, path string) ([]any, error) {
	logging.Ctx(ctx).Debug().Str("file", ref.Path).Msg("opening source file")

	rc, err := ref.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	docs, err := jsonpath.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", ref.Path, err)
	}

	var records []any
	for _, doc := range docs {
		docRecords, err := jsonpath.Records(doc, path)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", ref.Path, err)
		}
		records = append(records, docRecords...)
	}
	return records, nil
}

// projectAll maps records through p keeping their order. With concurrency
// above one the records are projected in parallel.
func projectAll(ctx context.Context, p projector, records []any, concurrency int) ([]any, error) {
	if p.project == nil {
		return records, nil
	}

	out := make([]any, len(records))
	if concurrency < 2 {
		for i, record := range records {
			v, err := p.apply(ctx, record)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, record := range records {
		g.Go(func() error {
			v, err := p.apply(gctx, record)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
