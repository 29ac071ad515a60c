package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// sliceBuffer is a Buffer over a Go slice; indexes past its length panic
// with the runtime's bounds check.
type sliceBuffer []byte

func (s sliceBuffer) Cap() int { return len(s) }

func (s sliceBuffer) Set(i int, b byte) { s[i] = b }

func TestReverse(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		bounded bool
		cap     int
		want    string
		n       int
	}{
		{"simple", "hello", false, 10, "olleh", 5},
		{"empty", "", false, 10, "", 0},
		{"stops at nul", "ab\x00cd", false, 10, "ba", 2},
		{"fills exactly", "abcd", false, 5, "dcba", 4},
		{"bounded keeps the head of the reversal", "abcdefgh", true, 5, "hgfe", 4},
		{"bounded short input untouched", "ab", true, 5, "ba", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make(sliceBuffer, tt.cap)
			n := Reverse(dst, []byte(tt.src), tt.bounded)
			assert.Equal(t, tt.n, n)
			assert.Equal(t, tt.want, string(cstring(dst)))
			assert.Equal(t, byte(0), dst[n])
		})
	}
}

func TestReverse_unboundedIgnoresCapacity(t *testing.T) {
	dst := make(sliceBuffer, 4)
	assert.Panics(t, func() {
		Reverse(dst, []byte("abcd"), false)
	}, "terminator lands one past the destination")
}
