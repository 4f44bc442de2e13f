package source

import (
	"context"
	"errors"
	"io"

	"github.com/jacoelho/tidbit/internal/logging"
)

// ErrClosed is returned by reads on a closed Concat.
var ErrClosed = errors.New("source: read on closed source")

// Concat reads refs one after the other as a single stream. Each file is
// opened only when the previous one is drained, and documents of
// consecutive files are separated by a newline.
type Concat struct {
	ctx    context.Context
	refs   []Ref
	next   int
	cur    io.ReadCloser
	sep    bool
	closed bool
}

// NewConcat returns a reader over refs. Opening honours ctx.
func NewConcat(ctx context.Context, refs []Ref) *Concat {
	return &Concat{ctx: ctx, refs: refs}
}

func (c *Concat) Read(p []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if c.sep {
			c.sep = false
			p[0] = '\n'
			return 1, nil
		}

		if c.cur == nil {
			if c.next == len(c.refs) {
				return 0, io.EOF
			}
			if err := context.Cause(c.ctx); err != nil {
				return 0, err
			}

			ref := c.refs[c.next]
			c.next++
			logging.Ctx(c.ctx).Debug().Str("file", ref.Path).Msg("opening source file")

			rc, err := ref.Open(c.ctx)
			if err != nil {
				return 0, err
			}
			c.cur = rc
		}

		n, err := c.cur.Read(p)
		if errors.Is(err, io.EOF) {
			closeErr := c.cur.Close()
			c.cur = nil
			if closeErr != nil {
				return n, closeErr
			}
			c.sep = c.next < len(c.refs)
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Close releases the file being read, if any. Closing a source that still
// has unread data is how executions stop early; it is not an error.
func (c *Concat) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cur == nil {
		return nil
	}
	err := c.cur.Close()
	c.cur = nil
	return err
}
