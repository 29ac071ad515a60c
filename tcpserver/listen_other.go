//go:build !linux

package tcpserver

import (
	"fmt"
	"net"
)

// listenTCP4 falls back to net.Listen; the backlog is left to the platform.
func listenTCP4(addr *net.TCPAddr, _ int) (net.Listener, error) {
	ln, err := net.Listen("tcp4", addr.String())
	if err != nil {
		return nil, fmt.Errorf("listen error: %w", err)
	}

	return ln, nil
}
