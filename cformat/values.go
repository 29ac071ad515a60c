package cformat

import "bytes"

// Values is an Args source backed by explicit Go values, for templates the
// server authors itself. Integers are truncated to their argument word,
// strings and byte slices back %s, and missing arguments read as zero. %n
// through Values is ignored.
type Values []any

// Word implements Args.
func (v Values) Word(i int) uint32 {
	if i < 0 || i >= len(v) {
		return 0
	}

	switch x := v[i].(type) {
	case int:
		return uint32(x)
	case int32:
		return uint32(x)
	case int64:
		return uint32(x)
	case uint32:
		return x
	case uint64:
		return uint32(x)
	case byte:
		return uint32(x)
	}

	return 0
}

// String implements Args. Non-string arguments render as "(null)".
func (v Values) String(i int, limit int) []byte {
	if i < 0 || i >= len(v) {
		return []byte("(null)")
	}

	var s []byte
	switch x := v[i].(type) {
	case []byte:
		s = x
	case string:
		s = []byte(x)
	default:
		return []byte("(null)")
	}

	if n := bytes.IndexByte(s, 0); n >= 0 {
		s = s[:n]
	}
	if limit >= 0 && len(s) > limit {
		s = s[:limit]
	}

	return s
}

// Store implements Args.
func (v Values) Store(int, int, uint64) {}
