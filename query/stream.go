package query

import (
	"context"
	"errors"
	"io"

	"github.com/jacoelho/tidbit/internal/jsonpath"
	"github.com/jacoelho/tidbit/internal/logging"
	"github.com/jacoelho/tidbit/internal/ratelimit"
	"github.com/jacoelho/tidbit/source"
)

// emitter receives the results of a streaming execution in order.
type emitter interface {
	write(value any) error
}

// runStream pulls records one by one from the query source and hands the
// survivors to out.
//
// When the limit is satisfied the execution context is cancelled with
// ErrLimitReached: the element iterator and the source both report that cause
// and it is dropped here, while any other error is returned.
func runStream(ctx context.Context, q *Query, opts Options, out emitter) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		src    io.Reader
		closer io.Closer
	)
	switch {
	case q.collection != nil:
		concat := source.NewConcat(ctx, source.Explode(q.collection.Files))
		src, closer = concat, concat
	case q.reader != nil:
		src = q.reader
		closer, _ = q.reader.(io.Closer)
	default:
		return ErrNoSource
	}

	log := logging.Ctx(ctx)
	log.Debug().Str("path", opts.Path).Msg("streaming records")

	m := newMatcher(opts)
	p := newProjector(opts)
	limiter := ratelimit.New(opts.Throttle)

	err := pump(ctx, cancel, src, opts.Path, m, p, limiter, out)

	stopped := errors.Is(context.Cause(ctx), ErrLimitReached)
	if errors.Is(err, ErrLimitReached) {
		err = nil
	}

	if closer != nil {
		if closeErr := closer.Close(); closeErr != nil {
			if stopped {
				log.Debug().Err(closeErr).Msg("ignoring close error after early stop")
			} else if err == nil {
				err = closeErr
			}
		}
	}
	if err != nil {
		return err
	}

	if stopped {
		log.Debug().Int("found", m.gate.Found()).Msg("limit reached, source closed early")
	}
	log.Debug().
		Int("skipped", m.gate.Skipped()).
		Int("found", m.gate.Found()).
		Msg("query completed")
	return nil
}

func pump(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	src io.Reader,
	path string,
	m *matcher,
	p projector,
	limiter *ratelimit.Limiter,
	out emitter,
) error {
	if m.gate.Done() {
		cancel(ErrLimitReached)
		return nil
	}

	for record, err := range jsonpath.Elements(ctx, src, path) {
		if err != nil {
			return err
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		emit, stop := m.admit(record)
		if stop {
			cancel(ErrLimitReached)
			return nil
		}
		if !emit {
			continue
		}

		value, err := p.apply(ctx, record)
		if err != nil {
			return err
		}
		if err := out.write(value); err != nil {
			return err
		}

		if m.gate.Done() {
			cancel(ErrLimitReached)
			return nil
		}
	}
	return nil
}
