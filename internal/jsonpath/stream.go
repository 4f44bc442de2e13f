package jsonpath

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

// streamContext walks one source. Walk methods return false once the
// consumer stopped iterating or an error was yielded.
type streamContext struct {
	ctx   context.Context
	dec   *json.Decoder
	path  string
	segs  []segment
	yield func(any, error) bool
}

// Elements returns a lazy iterator over the elements of the array found at
// path in every JSON document read from r.
//
// Iteration ends at the end of r, when the consumer stops, or after the first
// error. Cancelling ctx yields context.Cause(ctx) before the next element.
func Elements(ctx context.Context, r io.Reader, path string) iter.Seq2[any, error] {
	segs := parse(path)

	return func(yield func(any, error) bool) {
		sc := &streamContext{
			ctx:   ctx,
			dec:   json.NewDecoder(r),
			path:  path,
			segs:  segs,
			yield: yield,
		}

		for {
			if err := context.Cause(ctx); err != nil {
				yield(nil, err)
				return
			}

			tok, err := sc.dec.Token()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				sc.fail(err)
				return
			}

			if !sc.walk(tok, sc.segs) {
				return
			}
		}
	}
}

// fail yields err, marking decoder syntax errors and truncated input as
// ErrMalformed. Errors coming from the underlying reader pass through untouched.
func (sc *streamContext) fail(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	sc.yield(nil, err)
	return false
}

func (sc *streamContext) token() (json.Token, bool) {
	tok, err := sc.dec.Token()
	if err != nil {
		return nil, sc.fail(err)
	}
	return tok, true
}

// walk consumes the value starting with tok, descending along segs.
func (sc *streamContext) walk(tok json.Token, segs []segment) bool {
	if len(segs) == 0 {
		return sc.emitArray(tok)
	}

	delim, isDelim := tok.(json.Delim)
	switch {
	case isDelim && delim == '{':
		return sc.walkObject(segs)
	case isDelim && delim == '[':
		return sc.walkArray(segs)
	case isDelim:
		return sc.fail(fmt.Errorf("%w: unexpected delimiter %q", ErrMalformed, delim))
	default:
		// scalars have no children: the path does not exist
		return true
	}
}

func (sc *streamContext) walkObject(segs []segment) bool {
	for {
		tok, ok := sc.token()
		if !ok {
			return false
		}
		if d, isDelim := tok.(json.Delim); isDelim && d == '}' {
			return true
		}

		key, isKey := tok.(string)
		if !isKey {
			return sc.fail(fmt.Errorf("%w: object key is %T", ErrMalformed, tok))
		}

		valueTok, ok := sc.token()
		if !ok {
			return false
		}

		if !segs[0].isIndex && segs[0].name == key {
			if !sc.walk(valueTok, segs[1:]) {
				return false
			}
			continue
		}
		if !sc.skip(valueTok) {
			return false
		}
	}
}

func (sc *streamContext) walkArray(segs []segment) bool {
	for idx := 0; ; idx++ {
		tok, ok := sc.token()
		if !ok {
			return false
		}
		if d, isDelim := tok.(json.Delim); isDelim && d == ']' {
			return true
		}

		if segs[0].isIndex && segs[0].index == idx {
			if !sc.walk(tok, segs[1:]) {
				return false
			}
			continue
		}
		if !sc.skip(tok) {
			return false
		}
	}
}

// emitArray yields every element of the array starting with tok.
func (sc *streamContext) emitArray(tok json.Token) bool {
	if d, isDelim := tok.(json.Delim); !isDelim || d != '[' {
		sc.yield(nil, fmt.Errorf("%w: %q", ErrNotArray, sc.path))
		return false
	}

	for {
		if err := context.Cause(sc.ctx); err != nil {
			sc.yield(nil, err)
			return false
		}

		elemTok, ok := sc.token()
		if !ok {
			return false
		}

		var value any
		if d, isDelim := elemTok.(json.Delim); isDelim {
			if d == ']' {
				return true
			}
			decoded, err := decodeSubtree(sc.dec, d)
			if err != nil {
				return sc.fail(err)
			}
			value = decoded
		} else {
			value = elemTok
		}

		if !sc.yield(value, nil) {
			return false
		}
	}
}

// skip consumes the value starting with tok without materialising it.
func (sc *streamContext) skip(tok json.Token) bool {
	d, isDelim := tok.(json.Delim)
	if !isDelim {
		return true
	}
	if d != '{' && d != '[' {
		return sc.fail(fmt.Errorf("%w: unexpected delimiter %q", ErrMalformed, d))
	}

	for depth := 1; depth > 0; {
		next, ok := sc.token()
		if !ok {
			return false
		}
		if nd, isDelim := next.(json.Delim); isDelim {
			switch nd {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return true
}

func decodeSubtree(dec *json.Decoder, openingDelim json.Delim) (any, error) {
	switch openingDelim {
	case '{':
		return decodeObjectSubtree(dec)
	case '[':
		return decodeArraySubtree(dec)
	default:
		return nil, fmt.Errorf("%w: unexpected delimiter %q", ErrMalformed, openingDelim)
	}
}

func decodeObjectSubtree(dec *json.Decoder) (any, error) {
	obj := make(map[string]any)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		if d, ok := tok.(json.Delim); ok && d == '}' {
			return obj, nil
		}

		key, ok := tok.(string)
		if !ok {
			return nil, ErrMalformed
		}

		valueToken, err := dec.Token()
		if err != nil {
			return nil, err
		}

		if vd, ok := valueToken.(json.Delim); ok {
			nestedValue, err := decodeSubtree(dec, vd)
			if err != nil {
				return nil, err
			}
			obj[key] = nestedValue
		} else {
			obj[key] = valueToken
		}
	}
}

func decodeArraySubtree(dec *json.Decoder) (any, error) {
	arr := make([]any, 0)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		if d, ok := tok.(json.Delim); ok {
			if d == ']' {
				return arr, nil
			}
			nestedValue, err := decodeSubtree(dec, d)
			if err != nil {
				return nil, err
			}
			arr = append(arr, nestedValue)
		} else {
			arr = append(arr, tok)
		}
	}
}
