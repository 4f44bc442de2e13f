// Package runner executes the query declared in a query file and writes its
// results as one JSON array.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jacoelho/tidbit/internal/config"
	"github.com/jacoelho/tidbit/internal/exit"
	"github.com/jacoelho/tidbit/internal/logging"
	"github.com/jacoelho/tidbit/internal/queryfile"
	"github.com/jacoelho/tidbit/query"
)

type Runner struct {
	config    *config.Config
	query     *query.Query
	output    io.Writer
	errOutput io.Writer
}

// New loads the query file named by cfg and prepares its query.
func New(cfg *config.Config) (*Runner, *exit.Result) {
	file, err := queryfile.Load(cfg.QueryFile)
	if err != nil {
		return nil, exit.Errorf("Error loading query file: %v\n", err)
	}

	db, err := file.Registry()
	if err != nil {
		return nil, exit.Errorf("Error registering collections: %v\n", err)
	}

	q, err := file.Build(db)
	if err != nil {
		return nil, exit.Errorf("Error building query: %v\n", err)
	}

	return &Runner{
		config:    cfg,
		query:     q.Throttle(cfg.RateLimit).Concurrency(cfg.Concurrency),
		output:    os.Stdout,
		errOutput: os.Stderr,
	}, nil
}

func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

func (r *Runner) SetErrorOutput(w io.Writer) {
	r.errOutput = w
}

func (r *Runner) payloadWriter() io.Writer {
	if r.output == nil {
		return io.Discard
	}
	return r.output
}

func (r *Runner) errorWriter() io.Writer {
	if r.errOutput == nil {
		return io.Discard
	}
	return r.errOutput
}

// Run executes the query and returns the process exit code.
func (r *Runner) Run(ctx context.Context) int {
	log := logging.Ctx(ctx)
	log.Debug().
		Str("query_file", r.config.QueryFile).
		Bool("in_memory", r.query.InMemory()).
		Msg("running query")

	if result := exit.FromError(r.execute(ctx)); result != nil {
		result.Output = r.errorWriter()
		result.Print()
		return result.ExitCode
	}
	return 0
}

func (r *Runner) execute(ctx context.Context) error {
	sink, err := r.sink()
	if err != nil {
		return err
	}

	if r.query.InMemory() {
		err = writeArray(ctx, r.query, sink)
	} else {
		err = r.query.ToSink(ctx, sink)
	}
	if err != nil {
		return err
	}

	if r.config.Output == "" {
		_, err = io.WriteString(r.payloadWriter(), "\n")
	}
	return err
}

// sink returns the destination of the results: the output file, or the
// payload writer left open.
func (r *Runner) sink() (io.WriteCloser, error) {
	if r.config.Output == "" {
		return nopCloser{r.payloadWriter()}, nil
	}

	f, err := os.Create(r.config.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// writeArray runs an in-memory query and writes its results framed the same
// way ToSink frames streamed ones.
func writeArray(ctx context.Context, q *query.Query, w io.WriteCloser) error {
	results, err := q.ToArray(ctx)
	if err != nil {
		w.Close()
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(results); err != nil {
		w.Close()
		return err
	}

	_, err = w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return err
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
