package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/cyberinferno/vulnserver/logger"
	"github.com/cyberinferno/vulnserver/peerstats"
)

const (
	// DefaultHost is the loopback address the server binds.
	DefaultHost = "127.0.0.1"
	// DefaultBacklog is the listen backlog.
	DefaultBacklog = 5
)

var (
	// ErrAlreadyRunning is returned by Start on a running server.
	ErrAlreadyRunning = errors.New("server already running")
	// ErrAcceptFatal wraps accept failures the server cannot retry.
	ErrAcceptFatal = errors.New("error accepting connection")
)

// NewSessionFunc creates the session for an accepted connection. It receives
// the connection number and the connection, which the session then owns.
type NewSessionFunc func(id uint32, conn net.Conn) TCPServerSession

// TCPServer accepts connections one at a time on Addr and runs each session
// to completion before accepting the next; there is never more than one
// active connection.
type TCPServer struct {
	Logger     logger.Logger
	Name       string
	Addr       string
	Backlog    int
	Listener   net.Listener
	Running    atomic.Bool
	NewSession NewSessionFunc
	Stats      peerstats.Tracker
	Conns      ConnCounter

	mu     sync.Mutex
	active TCPServerSession
}

// Start binds Addr and starts listening. The accept loop is run by Serve.
//
// Returns:
//   - ErrAlreadyRunning if the server is running, or the socket, bind or
//     listen error
func (s *TCPServer) Start() error {
	if s.Running.Load() {
		return fmt.Errorf("%s: %w", s.Name, ErrAlreadyRunning)
	}

	addr, err := net.ResolveTCPAddr("tcp4", s.Addr)
	if err != nil {
		return fmt.Errorf("%s: bad address %q: %w", s.Name, s.Addr, err)
	}

	backlog := s.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	ln, err := listenTCP4(addr, backlog)
	if err != nil {
		s.log().Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("%s failed to start: %w", s.Name, err)
	}

	s.Listener = ln
	s.Running.Store(true)

	s.log().Info(fmt.Sprintf("%s server started", s.Name),
		logger.Field{Key: "addr", Value: ln.Addr().String()},
		logger.Field{Key: "backlog", Value: backlog})
	return nil
}

// Serve runs the accept loop until ctx is done, Stop is called or accept
// fails fatally.
//
// Returns:
//   - nil after a stop, or an error wrapping ErrAcceptFatal
func (s *TCPServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	return s.AcceptLoop(ctx)
}

// Stop closes the listener and the active session, if any. Safe to call when
// the server is not running.
func (s *TCPServer) Stop() {
	if !s.Running.Swap(false) {
		return
	}

	if s.Listener != nil {
		_ = s.Listener.Close()
	}

	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active != nil {
		_ = active.Close()
	}

	s.log().Info(fmt.Sprintf("%s server stopped", s.Name))
}

// Port returns the bound port, 0 before Start.
func (s *TCPServer) Port() int {
	if s.Listener == nil {
		return 0
	}

	if addr, ok := s.Listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}

	return 0
}

// activeSession returns the session being served, if any.
func (s *TCPServer) activeSession() (TCPServerSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != nil
}

// AcceptLoop accepts and serves connections sequentially. Interrupted accepts
// are retried; any other accept failure stops the server and ends the loop.
func (s *TCPServer) AcceptLoop(ctx context.Context) error {
	for s.Running.Load() {
		s.log().Info(fmt.Sprintf("%s: waiting for connection on TCP port %d", s.Name, s.Port()))

		conn, err := s.Listener.Accept()
		if err != nil {
			if !s.Running.Load() {
				return nil
			}

			if errors.Is(err, syscall.EINTR) {
				s.log().Warn("accept interrupted, retrying")
				continue
			}

			s.log().Error(fmt.Sprintf("%s server accept error", s.Name), logger.Field{Key: "error", Value: err})
			s.Stop()
			return fmt.Errorf("%s: %w: %w", s.Name, ErrAcceptFatal, err)
		}

		s.serveConn(ctx, conn)
	}

	return nil
}

func (s *TCPServer) serveConn(ctx context.Context, conn net.Conn) {
	id := s.Conns.Next()
	peer := RemoteHost(conn)
	log := s.log().With(logger.Field{Key: "conn", Value: id}, logger.Field{Key: "peer", Value: peer})

	fields := []logger.Field{{Key: "remote", Value: conn.RemoteAddr().String()}}
	if s.Stats != nil {
		n, err := s.Stats.Record(ctx, peer)
		if err != nil {
			log.Warn("peer stats unavailable", logger.Field{Key: "error", Value: err})
		} else {
			fields = append(fields, logger.Field{Key: "connections_in_window", Value: n})
		}
	}
	log.Info("connection accepted", fields...)

	session := s.NewSession(id, conn)
	s.mu.Lock()
	s.active = session
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}()

	if !s.Running.Load() {
		_ = session.Close()
		return
	}

	session.Handle()
	log.Info("connection closed")
}

var nopLogger = logger.NewNopLogger()

func (s *TCPServer) log() logger.Logger {
	if s.Logger == nil {
		return nopLogger
	}

	return s.Logger
}

// RemoteHost returns the IP of the remote end of conn, the form used for the
// "peer" log field and the peer stats key.
func RemoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}

	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}

	return addr.String()
}
