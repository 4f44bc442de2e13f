package source

import (
	"bufio"
	"bytes"
	"context"
	"io"
)

const maxLineSize = 16 << 20

// OpenLines is a Parser for newline delimited JSON: every non-blank line of
// the file is one record. The file is presented as a single JSON array so it
// streams like any other source.
func OpenLines(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := OpenFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return newLineArray(f), nil
}

// lineArray wraps each line of rc as an element of one JSON array.
type lineArray struct {
	rc      io.ReadCloser
	sc      *bufio.Scanner
	pending []byte
	started bool
	items   int
	done    bool
}

func newLineArray(rc io.ReadCloser) *lineArray {
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineArray{rc: rc, sc: sc}
}

func (l *lineArray) Read(p []byte) (int, error) {
	for len(l.pending) == 0 {
		if l.done {
			return 0, io.EOF
		}
		if err := l.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (l *lineArray) fill() error {
	if !l.started {
		l.started = true
		l.pending = []byte{'['}
		return nil
	}

	for l.sc.Scan() {
		line := bytes.TrimSpace(l.sc.Bytes())
		if len(line) == 0 {
			continue
		}

		l.pending = l.pending[:0]
		if l.items > 0 {
			l.pending = append(l.pending, ',')
		}
		l.pending = append(l.pending, line...)
		l.items++
		return nil
	}
	if err := l.sc.Err(); err != nil {
		return err
	}

	l.pending = []byte{']'}
	l.done = true
	return nil
}

func (l *lineArray) Close() error {
	return l.rc.Close()
}
