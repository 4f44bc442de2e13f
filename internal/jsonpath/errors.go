package jsonpath

import "errors"

var (
	// ErrMalformed indicates the JSON source is malformed or truncated.
	ErrMalformed = errors.New("jsonpath: malformed JSON structure")

	// ErrNotArray indicates the value at the path is not an array.
	ErrNotArray = errors.New("jsonpath: value at path is not an array")

	// ErrSyntax indicates a path that cannot be turned into an expression.
	ErrSyntax = errors.New("jsonpath: syntax error")
)
