package memory

import "fmt"

// Fault kinds raised by the simulated address space.
const (
	// KindSegv is an access to an address that is not mapped.
	KindSegv = "SIGSEGV"
	// KindStackOverflow is reported by instrumented frames when a slot-relative
	// write leaves its slot.
	KindStackOverflow = "stack-buffer-overflow"
)

// Fault describes a memory-safety violation in the simulated frame. Faults are
// raised with panic and are never recovered by the server: they stand in for
// the crash a native build would take.
type Fault struct {
	Kind   string // KindSegv or KindStackOverflow
	Access string // "read" or "write"
	Addr   uint32 // faulting address
	Slot   string // slot being written when an instrumented frame detected the overflow
}

// Error implements error.
func (f *Fault) Error() string {
	if f.Slot != "" {
		return fmt.Sprintf("%s: %s of size 1 at 0x%08x past slot %q", f.Kind, f.Access, f.Addr, f.Slot)
	}

	return fmt.Sprintf("%s: invalid %s at address 0x%08x", f.Kind, f.Access, f.Addr)
}

func segv(access string, addr uint32) {
	panic(&Fault{Kind: KindSegv, Access: access, Addr: addr})
}
