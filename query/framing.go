package query

import (
	"bytes"
	"encoding/json"
	"io"
)

// collector buffers results for ToArray.
type collector struct {
	values []any
}

func (c *collector) write(value any) error {
	c.values = append(c.values, value)
	return nil
}

// arrayWriter frames results as a single JSON array written incrementally.
type arrayWriter struct {
	w       io.Writer
	buf     bytes.Buffer
	started bool
}

func (a *arrayWriter) write(value any) error {
	a.buf.Reset()
	if a.started {
		a.buf.WriteByte(',')
	} else {
		a.buf.WriteByte('[')
		a.started = true
	}

	enc := json.NewEncoder(&a.buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return err
	}
	// Encode terminates every value with a newline
	a.buf.Truncate(a.buf.Len() - 1)

	_, err := a.w.Write(a.buf.Bytes())
	return err
}

// finish closes the array, opening it first when nothing was written.
func (a *arrayWriter) finish() error {
	closing := "]"
	if !a.started {
		closing = "[]"
	}
	_, err := io.WriteString(a.w, closing)
	return err
}
