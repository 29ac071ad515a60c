package cformat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(tpl string, args ...any) string {
	buf := make([]byte, 100)
	n := Format(buf, []byte(tpl), Values(args))
	if n > len(buf)-1 {
		n = len(buf) - 1
	}
	return string(buf[:n])
}

func doubleWords(f float64) (uint32, uint32) {
	bits := math.Float64bits(f)
	return uint32(bits), uint32(bits >> 32)
}

func TestFormat_directives(t *testing.T) {
	lo, hi := doubleWords(1.5)

	tests := []struct {
		name string
		tpl  string
		args []any
		want string
	}{
		{"literal", "hello", nil, "hello"},
		{"percent", "100%%", nil, "100%"},
		{"decimal", "%d", []any{42}, "42"},
		{"width", "%5d", []any{42}, "   42"},
		{"left", "%-5d|", []any{42}, "42   |"},
		{"zero pad negative", "%05d", []any{-42}, "-0042"},
		{"plus", "%+d", []any{5}, "+5"},
		{"space", "% d", []any{5}, " 5"},
		{"precision", "%.3d", []any{7}, "007"},
		{"zero precision zero value", "[%.0d]", []any{0}, "[]"},
		{"unsigned wraps", "%u", []any{-1}, "4294967295"},
		{"char width", "%hhd", []any{255}, "-1"},
		{"short width", "%hd", []any{65535}, "-1"},
		{"hex", "%x", []any{255}, "ff"},
		{"hex upper", "%X", []any{255}, "FF"},
		{"hex alt", "%#x", []any{255}, "0xff"},
		{"hex alt zero", "%#x", []any{0}, "0"},
		{"padded word", "%08x", []any{uint32(0xdeadc0de)}, "deadc0de"},
		{"short padded word", "%08x", []any{0x1f}, "0000001f"},
		{"octal", "%o", []any{8}, "10"},
		{"octal alt", "%#o", []any{8}, "010"},
		{"long long", "%lld", []any{uint32(1), uint32(1)}, "4294967297"},
		{"string", "%s", []any{"abc"}, "abc"},
		{"string precision", "%.2s", []any{"abc"}, "ab"},
		{"string width", "%5s", []any{"abc"}, "  abc"},
		{"string left", "%-5s|", []any{"abc"}, "abc  |"},
		{"string null", "%s", []any{7}, "(null)"},
		{"char", "%c%c", []any{'h', 'i'}, "hi"},
		{"pointer", "%p", []any{uint32(0xbfffef00)}, "0xbfffef00"},
		{"nil pointer", "%p", []any{0}, "(nil)"},
		{"positional", "%2$s %1$s", []any{"a", "b"}, "b a"},
		{"star width", "%*d", []any{5, 42}, "   42"},
		{"negative star width", "%*d|", []any{-4, 7}, "7   |"},
		{"star precision", "%.*s", []any{1, "xyz"}, "x"},
		{"missing args read zero", "%d %x", nil, "0 0"},
		{"float", "%f", []any{lo, hi}, "1.500000"},
		{"float precision", "%.2f", []any{lo, hi}, "1.50"},
		{"exponent", "%e", []any{lo, hi}, "1.500000e+00"},
		{"unknown verb", "%y", nil, "%y"},
		{"dangling percent", "abc%", nil, "abc%"},
		{"stops at nul", "ab\x00cd", nil, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(tt.tpl, tt.args...))
		})
	}
}

func TestFormat_truncates(t *testing.T) {
	buf := make([]byte, 5)
	n := Format(buf, []byte("abcdefgh"), Values(nil))

	assert.Equal(t, 8, n)
	assert.Equal(t, []byte("abcd\x00"), buf)
}

func TestFormat_zeroCapacity(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Equal(t, 3, Format(nil, []byte("abc"), Values(nil)))
	})
}

type store struct {
	index int
	size  int
	value uint64
}

type recordingArgs struct {
	words  []uint32
	stores []store
}

func (r *recordingArgs) Word(i int) uint32 {
	if i < len(r.words) {
		return r.words[i]
	}
	return 0
}

func (r *recordingArgs) String(int, int) []byte { return nil }

func (r *recordingArgs) Store(i, size int, v uint64) {
	r.stores = append(r.stores, store{index: i, size: size, value: v})
}

func TestFormat_countStores(t *testing.T) {
	t.Run("sizes by length modifier", func(t *testing.T) {
		args := &recordingArgs{}
		Format(make([]byte, 100), []byte("ab%nc%hhnd%hne%lln"), args)

		require.Len(t, args.stores, 4)
		assert.Equal(t, store{index: 0, size: 4, value: 2}, args.stores[0])
		assert.Equal(t, store{index: 1, size: 1, value: 3}, args.stores[1])
		assert.Equal(t, store{index: 2, size: 2, value: 4}, args.stores[2])
		assert.Equal(t, store{index: 3, size: 8, value: 5}, args.stores[3])
	})

	t.Run("counts untruncated length", func(t *testing.T) {
		args := &recordingArgs{}
		Format(make([]byte, 4), []byte("%20d%3$n"), args)

		require.Len(t, args.stores, 1)
		assert.Equal(t, store{index: 2, size: 4, value: 20}, args.stores[0])
	})
}

func TestFormat_sequentialCursor(t *testing.T) {
	args := &recordingArgs{words: []uint32{1, 2, 3, 4}}
	buf := make([]byte, 100)
	n := Format(buf, []byte("%x.%x.%4$x.%x"), args)

	assert.Equal(t, "1.2.4.3", string(buf[:n]))
}
