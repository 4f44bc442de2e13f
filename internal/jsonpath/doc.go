// Package jsonpath selects the records of a JSON source addressed by a
// dot-separated path such as "data.results".
//
// Elements streams the selection with O(depth) memory: the source is read
// token by token and only the array elements at the path are materialised.
// A source may contain several concatenated JSON documents; each one is
// searched in turn.
//
// Extract performs the same selection over an already decoded document.
//
// Path rules shared by both:
//   - the empty path selects the document root
//   - a segment made only of digits indexes an array, any other segment
//     names an object member
//   - a path that does not exist selects nothing
//   - a path that exists but does not hold an array is ErrNotArray
package jsonpath
