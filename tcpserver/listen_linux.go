//go:build linux

package tcpserver

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listenTCP4 binds an IPv4 stream socket and listens with the given backlog.
// net.Listen always uses the kernel's somaxconn, hence the raw socket.
func listenTCP4(addr *net.TCPAddr, backlog int) (net.Listener, error) {
	ip := addr.IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("socket error: %s is not an IPv4 address", addr.IP)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket error: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: addr.Port}
	copy(sa.Addr[:], ip)
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind error: %w", err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen error: %w", err)
	}

	f := os.NewFile(uintptr(fd), "tcp:"+addr.String())
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("listen error: %w", err)
	}

	return ln, nil
}
