package session

import "bytes"

// Buffer is a fixed-capacity destination written one byte at a time.
// Implementations decide what an index past Cap does.
type Buffer interface {
	Cap() int
	Set(i int, b byte)
}

// Reverse writes src, up to its first NUL, into dst in reverse order followed
// by a NUL terminator. Unbounded, every source byte is written whatever dst's
// capacity is. Bounded, only the first Cap()-1 bytes of the reversal are kept.
//
// Returns:
//   - The number of bytes written before the terminator
func Reverse(dst Buffer, src []byte, bounded bool) int {
	size := bytes.IndexByte(src, 0)
	if size < 0 {
		size = len(src)
	}

	n := size
	if bounded && n > dst.Cap()-1 {
		n = dst.Cap() - 1
	}

	for i := 0; i < n; i++ {
		dst.Set(i, src[size-1-i])
	}
	dst.Set(n, 0)

	return n
}
