// Package source describes where the records of a collection come from and
// turns those declarations into readers.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrOpen indicates a file of a collection could not be opened.
var ErrOpen = errors.New("source: cannot open file")

// Parser turns a file reference into a reader producing JSON documents.
type Parser func(ctx context.Context, path string) (io.ReadCloser, error)

// OpenFile is the default Parser: the file itself holds the JSON documents.
func OpenFile(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return f, nil
}

// File declares one or more files sharing a parser.
type File struct {
	Paths  []string
	Parser Parser // nil means OpenFile
}

// Path declares a single file read with the default parser.
func Path(path string) File {
	return File{Paths: []string{path}}
}

// Group declares files read with a shared custom parser.
func Group(parser Parser, paths ...string) File {
	return File{Paths: paths, Parser: parser}
}

// Collection is the registered, read-only description of a set of files.
// It may back any number of concurrent queries.
type Collection struct {
	Name         string
	Files        []File
	LoadInMemory bool
}

// Ref is a single file together with the parser that reads it.
type Ref struct {
	Path   string
	Parser Parser
}

// Open reads the file through its parser.
func (r Ref) Open(ctx context.Context) (io.ReadCloser, error) {
	parser := r.Parser
	if parser == nil {
		parser = OpenFile
	}
	rc, err := parser(ctx, r.Path)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", r.Path, err)
	}
	return rc, nil
}

// Explode flattens file declarations into refs, keeping declaration order.
func Explode(files []File) []Ref {
	var refs []Ref
	for _, f := range files {
		for _, p := range f.Paths {
			refs = append(refs, Ref{Path: p, Parser: f.Parser})
		}
	}
	return refs
}
