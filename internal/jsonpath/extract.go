package jsonpath

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	rfcpath "github.com/theory/jsonpath"
)

// Decode reads every JSON document in r.
func Decode(r io.Reader) ([]any, error) {
	dec := json.NewDecoder(r)

	var docs []any
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// Extract returns the value at path inside doc. found is false when the path
// does not exist.
func Extract(doc any, path string) (value any, found bool, err error) {
	if path == "" {
		return doc, true, nil
	}

	expr := Expression(path)
	compiled, err := rfcpath.Parse(expr)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrSyntax, expr, err)
	}

	nodes := compiled.Select(doc)
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return nodes[0], true, nil
}

// Records returns the elements of the array at path inside doc, following
// the same rules as Elements.
func Records(doc any, path string) ([]any, error) {
	value, found, err := Extract(doc, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	records, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotArray, path)
	}
	return records, nil
}
