// Package memory models the stack frame the line server keeps its fixed-size
// buffers in. The frame is a 32-bit little-endian region mapped at StackBase;
// everything outside it is unmapped. Writes are not bounds-checked against the
// slot they target, so an oversized copy spills into the neighbouring slots
// exactly like it would on a native stack.
package memory

import "encoding/binary"

const (
	// StackBase is the address the frame is mapped at.
	StackBase uint32 = 0xbfffef00
	// SecretValue is the initial content of the secret slot.
	SecretValue uint32 = 0xDEADC0DE
	// ReversedLineSize is the capacity of the reversed_line slot.
	ReversedLineSize = 100

	savedFramePointer uint32 = 0xbffff0a8
	returnAddress     uint32 = 0x08048a3c
)

// Slot names.
const (
	SlotReversedLine = "reversed_line"
	SlotSecret       = "secret"
	SlotClientQuit   = "client_quit"
	SlotSavedFP      = "saved_fp"
	SlotReturnAddr   = "return_addr"
)

// Slot is one named local in the frame.
type Slot struct {
	Name   string
	Offset int
	Size   int
}

// Addr returns the address of the first byte of the slot.
func (s Slot) Addr() uint32 {
	return StackBase + uint32(s.Offset)
}

var layout = []Slot{
	{Name: SlotReversedLine, Offset: 0, Size: ReversedLineSize},
	{Name: SlotSecret, Offset: 100, Size: 4},
	{Name: SlotClientQuit, Offset: 104, Size: 4},
	{Name: SlotSavedFP, Offset: 108, Size: 4},
	{Name: SlotReturnAddr, Offset: 112, Size: 4},
}

// FrameSize is the number of mapped bytes.
const FrameSize = 116

// Frame is the simulated stack frame. It is not safe for concurrent use; the
// server owns exactly one and drives it from a single goroutine.
type Frame struct {
	mem      []byte
	sanitize bool
}

// NewFrame maps a fresh frame with its locals initialised.
//
// Parameters:
//   - sanitize: When true, slot-relative writes that leave their slot raise a
//     KindStackOverflow fault instead of corrupting the neighbouring slot
//
// Returns:
//   - A new Frame
func NewFrame(sanitize bool) *Frame {
	f := &Frame{
		mem:      make([]byte, FrameSize),
		sanitize: sanitize,
	}

	f.put(SlotSecret, SecretValue)
	f.put(SlotSavedFP, savedFramePointer)
	f.put(SlotReturnAddr, returnAddress)
	return f
}

func (f *Frame) put(name string, v uint32) {
	s, _ := Lookup(name)
	binary.LittleEndian.PutUint32(f.mem[s.Offset:], v)
}

// Lookup returns the layout entry for the named slot.
func Lookup(name string) (Slot, bool) {
	for _, s := range layout {
		if s.Name == name {
			return s, true
		}
	}

	return Slot{}, false
}

// Layout returns a copy of the frame layout in address order.
func Layout() []Slot {
	out := make([]Slot, len(layout))
	copy(out, layout)
	return out
}

// Sanitized reports whether the frame was built with overflow instrumentation.
func (f *Frame) Sanitized() bool {
	return f.sanitize
}

func (f *Frame) offset(access string, addr uint32) int {
	if addr < StackBase || addr-StackBase >= FrameSize {
		segv(access, addr)
	}

	return int(addr - StackBase)
}

// Load reads one byte. Unmapped addresses fault.
func (f *Frame) Load(addr uint32) byte {
	return f.mem[f.offset("read", addr)]
}

// Store writes one byte. Unmapped addresses fault.
func (f *Frame) Store(addr uint32, b byte) {
	f.mem[f.offset("write", addr)] = b
}

// LoadWord reads a little-endian 32-bit word byte by byte, so a word that
// straddles the end of the mapping faults on its first unmapped byte.
func (f *Frame) LoadWord(addr uint32) uint32 {
	var w uint32
	for i := uint32(0); i < 4; i++ {
		w |= uint32(f.Load(addr+i)) << (8 * i)
	}

	return w
}

// StoreN writes the low size bytes of v little-endian at addr.
func (f *Frame) StoreN(addr uint32, size int, v uint64) {
	for i := 0; i < size; i++ {
		f.Store(addr+uint32(i), byte(v>>(8*i)))
	}
}

// CString returns the bytes at addr up to, not including, the first NUL.
// A non-negative limit stops the scan after limit bytes. Running off the end
// of the mapping faults, the way strlen on an unterminated buffer would.
func (f *Frame) CString(addr uint32, limit int) []byte {
	var out []byte
	for limit < 0 || len(out) < limit {
		b := f.Load(addr + uint32(len(out)))
		if b == 0 {
			break
		}

		out = append(out, b)
	}

	return out
}

// Return models the epilogue of the function owning the frame: it jumps to
// the saved return address, which faults if an overflow rewrote it.
func (f *Frame) Return() {
	s, _ := Lookup(SlotReturnAddr)
	if ret := f.LoadWord(s.Addr()); ret != returnAddress {
		segv("execute", ret)
	}
}

// View is a slot-relative window onto the frame.
type View struct {
	frame *Frame
	slot  Slot
}

// View returns a window onto the named slot. It panics on an unknown name.
func (f *Frame) View(name string) *View {
	s, ok := Lookup(name)
	if !ok {
		panic("memory: unknown slot " + name)
	}

	return &View{frame: f, slot: s}
}

// Cap returns the declared size of the slot.
func (v *View) Cap() int {
	return v.slot.Size
}

// Addr returns the address of the slot.
func (v *View) Addr() uint32 {
	return v.slot.Addr()
}

// Set writes b at index i relative to the slot start. The index is not
// checked against Cap unless the frame is sanitized.
func (v *View) Set(i int, b byte) {
	addr := v.slot.Addr() + uint32(i)
	if v.frame.sanitize && (i < 0 || i >= v.slot.Size) {
		panic(&Fault{Kind: KindStackOverflow, Access: "write", Addr: addr, Slot: v.slot.Name})
	}

	v.frame.Store(addr, b)
}

// CString returns the NUL-terminated content starting at the slot.
func (v *View) CString() []byte {
	return v.frame.CString(v.slot.Addr(), -1)
}
