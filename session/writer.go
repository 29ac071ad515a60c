package session

import (
	"bytes"
	"io"

	"github.com/cyberinferno/vulnserver/cformat"
	"github.com/cyberinferno/vulnserver/memory"
)

// hardenedTemplate is the only template hardened mode renders client data with.
var hardenedTemplate = []byte("%s")

// ResponseWriter renders a template into a ResponseCapacity buffer and sends
// the rendered bytes up to the first NUL.
type ResponseWriter struct {
	w   io.Writer
	buf [ResponseCapacity]byte
}

// NewResponseWriter returns a ResponseWriter sending on w.
func NewResponseWriter(w io.Writer) *ResponseWriter {
	return &ResponseWriter{w: w}
}

// Write formats template against args and transmits the result. An empty
// template sends nothing.
//
// Parameters:
//   - template: C format template
//   - args: Argument source; nil means no arguments
//
// Returns:
//   - The number of bytes sent
//   - An error if the write failed
func (rw *ResponseWriter) Write(template []byte, args cformat.Args) (int, error) {
	if len(template) == 0 {
		return 0, nil
	}

	if args == nil {
		args = cformat.Values(nil)
	}

	cformat.Format(rw.buf[:], template, args)
	msg := rw.buf[:bytes.IndexByte(rw.buf[:], 0)]
	if len(msg) == 0 {
		return 0, nil
	}

	return rw.w.Write(msg)
}

// FrameArgs feeds a template the words of a frame as if they were the
// variadic arguments: argument i is the 32-bit word at Base+4*i, and pointer
// arguments are dereferenced in the frame's address space.
type FrameArgs struct {
	Frame *memory.Frame
	Base  uint32
}

// Word implements cformat.Args.
func (a FrameArgs) Word(i int) uint32 {
	return a.Frame.LoadWord(a.Base + uint32(4*i))
}

// String implements cformat.Args.
func (a FrameArgs) String(i int, limit int) []byte {
	return a.Frame.CString(a.Word(i), limit)
}

// Store implements cformat.Args.
func (a FrameArgs) Store(i int, size int, v uint64) {
	a.Frame.StoreN(a.Word(i), size, v)
}
