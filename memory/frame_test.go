package memory

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func faultOf(t *testing.T, fn func()) *Fault {
	t.Helper()

	var got *Fault
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a fault")
			f, ok := r.(*Fault)
			require.True(t, ok, "expected *Fault, got %T", r)
			got = f
		}()
		fn()
	}()

	return got
}

func TestNewFrame(t *testing.T) {
	f := NewFrame(false)

	secret, ok := Lookup(SlotSecret)
	require.True(t, ok)
	assert.Equal(t, SecretValue, f.LoadWord(secret.Addr()))

	rl, ok := Lookup(SlotReversedLine)
	require.True(t, ok)
	assert.Equal(t, StackBase, rl.Addr())
	assert.Empty(t, f.View(SlotReversedLine).CString())
	assert.False(t, f.Sanitized())
}

func TestLayout_contiguous(t *testing.T) {
	next := 0
	for _, s := range Layout() {
		assert.Equal(t, next, s.Offset, "slot %s", s.Name)
		next += s.Size
	}
	assert.Equal(t, FrameSize, next)
}

func TestFrame_unmappedAccessFaults(t *testing.T) {
	f := NewFrame(false)

	t.Run("read below base", func(t *testing.T) {
		fault := faultOf(t, func() { f.Load(StackBase - 1) })
		assert.Equal(t, KindSegv, fault.Kind)
		assert.Equal(t, "read", fault.Access)
		assert.Equal(t, StackBase-1, fault.Addr)
	})

	t.Run("write past end", func(t *testing.T) {
		fault := faultOf(t, func() { f.Store(StackBase+FrameSize, 'A') })
		assert.Equal(t, KindSegv, fault.Kind)
		assert.Equal(t, "write", fault.Access)
	})

	t.Run("word straddling the end", func(t *testing.T) {
		fault := faultOf(t, func() { f.LoadWord(StackBase + FrameSize - 2) })
		assert.Equal(t, StackBase+FrameSize, fault.Addr)
	})

	t.Run("unterminated string runs off the mapping", func(t *testing.T) {
		g := NewFrame(false)
		for i := 0; i < FrameSize; i++ {
			g.Store(StackBase+uint32(i), 'x')
		}
		fault := faultOf(t, func() { g.CString(StackBase, -1) })
		assert.Equal(t, StackBase+FrameSize, fault.Addr)
	})
}

func TestView_overflowSpillsIntoNeighbours(t *testing.T) {
	f := NewFrame(false)
	v := f.View(SlotReversedLine)
	for i := 0; i < ReversedLineSize+4; i++ {
		v.Set(i, 'B')
	}

	secret, _ := Lookup(SlotSecret)
	assert.Equal(t, uint32(0x42424242), f.LoadWord(secret.Addr()))
}

func TestView_sanitizedOverflowFaults(t *testing.T) {
	f := NewFrame(true)
	v := f.View(SlotReversedLine)
	for i := 0; i < ReversedLineSize; i++ {
		v.Set(i, 'B')
	}

	fault := faultOf(t, func() { v.Set(ReversedLineSize, 'B') })
	assert.Equal(t, KindStackOverflow, fault.Kind)
	assert.Equal(t, SlotReversedLine, fault.Slot)
	assert.Equal(t, StackBase+ReversedLineSize, fault.Addr)
	assert.Contains(t, fault.Error(), "reversed_line")

	secret, _ := Lookup(SlotSecret)
	assert.Equal(t, SecretValue, f.LoadWord(secret.Addr()), "sanitized write must not land")
}

func TestFrame_StoreN(t *testing.T) {
	f := NewFrame(false)
	secret, _ := Lookup(SlotSecret)

	f.StoreN(secret.Addr(), 2, 0x1234)
	assert.Equal(t, uint32(0xDEAD1234), f.LoadWord(secret.Addr()))
}

func TestFrame_CStringLimit(t *testing.T) {
	f := NewFrame(false)
	v := f.View(SlotReversedLine)
	for i, b := range []byte("hello") {
		v.Set(i, b)
	}

	assert.Equal(t, []byte("hel"), f.CString(v.Addr(), 3))
	assert.Equal(t, []byte("hello"), v.CString())
}

func TestFrame_Return(t *testing.T) {
	t.Run("intact frame returns", func(t *testing.T) {
		f := NewFrame(false)
		assert.NotPanics(t, f.Return)
	})

	t.Run("clobbered return address faults", func(t *testing.T) {
		f := NewFrame(false)
		ret, _ := Lookup(SlotReturnAddr)
		f.StoreN(ret.Addr(), 4, 0x41414141)

		fault := faultOf(t, f.Return)
		assert.Equal(t, KindSegv, fault.Kind)
		assert.Equal(t, "execute", fault.Access)
		assert.Equal(t, uint32(0x41414141), fault.Addr)
	})
}

func TestFrame_littleEndian(t *testing.T) {
	f := NewFrame(false)
	secret, _ := Lookup(SlotSecret)
	raw := f.CString(secret.Addr(), 4)
	assert.Equal(t, SecretValue, binary.LittleEndian.Uint32(raw))
}
