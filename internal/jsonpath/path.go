package jsonpath

import (
	"strconv"
	"strings"
)

// segment is one step of a dot path.
type segment struct {
	name    string
	index   int
	isIndex bool
}

func (s segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.name
}

// parse splits a dot path into segments. The empty path has no segments.
func parse(path string) []segment {
	if path == "" {
		return nil
	}

	parts := strings.Split(path, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		if isDigits(p) {
			if n, err := strconv.Atoi(p); err == nil {
				segs = append(segs, segment{index: n, isIndex: true})
				continue
			}
		}
		segs = append(segs, segment{name: p})
	}
	return segs
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Expression converts a dot path into an RFC 9535 JSONPath query.
//
//	Expression("data.results.0") == "$['data']['results'][0]"
func Expression(path string) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range parse(path) {
		if seg.isIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.index))
			b.WriteByte(']')
			continue
		}
		b.WriteString("['")
		for _, r := range seg.name {
			switch {
			case r == '\'' || r == '\\':
				b.WriteByte('\\')
				b.WriteRune(r)
			case r < 0x20:
				b.WriteString(`\u00`)
				b.WriteString(strconv.FormatInt(int64(r)>>4, 16))
				b.WriteString(strconv.FormatInt(int64(r)&0xf, 16))
			default:
				b.WriteRune(r)
			}
		}
		b.WriteString("']")
	}
	return b.String()
}
