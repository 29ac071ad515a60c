package session

import (
	"fmt"
	"strings"
)

// Buffer capacities of the line protocol.
const (
	LineCapacity     = 500
	ReversedCapacity = 100
	ResponseCapacity = 100
)

// Messages the server authors itself.
const (
	Greeting = "Type QUIT on a line by itself to quit\n"
	Farewell = "Goodbye\n"

	quitCommand = "QUIT"
)

// Mode selects whether the reverse copy and the response template keep their
// memory-safety defects.
type Mode int

const (
	// ModeVulnerable reverses without a bound and renders the reversed line
	// as the response template.
	ModeVulnerable Mode = iota
	// ModeHardened bounds the reverse copy and renders the reversed line as
	// an argument of a fixed template.
	ModeHardened
)

// String returns the flag spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeVulnerable:
		return "vulnerable"
	case ModeHardened:
		return "hardened"
	default:
		return "unknown"
	}
}

// ParseMode parses "vulnerable" or "hardened", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vulnerable", "":
		return ModeVulnerable, nil
	case "hardened":
		return ModeHardened, nil
	}

	return ModeVulnerable, fmt.Errorf("unknown mode %q (want vulnerable or hardened)", s)
}
