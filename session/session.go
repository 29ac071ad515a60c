// Package session implements the per-connection line protocol: greet, read a
// line, answer QUIT with a farewell, otherwise echo the line reversed.
//
// The reverse copy and the response rendering deliberately reproduce two
// memory-safety defects against a memory.Frame: an unbounded copy into the
// 100-byte reversed_line slot and the use of client bytes as a printf
// template. ModeHardened removes both.
package session

import (
	"bytes"
	"net"
	"sync"

	"github.com/cyberinferno/vulnserver/cformat"
	"github.com/cyberinferno/vulnserver/logger"
	"github.com/cyberinferno/vulnserver/memory"
)

// State is a step of the session state machine.
type State int

const (
	StateWaitingLine State = iota
	StateDispatch
	StateEchoing
	StateQuitting
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateWaitingLine:
		return "WaitingLine"
	case StateDispatch:
		return "Dispatch"
	case StateEchoing:
		return "Echoing"
	case StateQuitting:
		return "Quitting"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// PeerLogger records client input. *logger.PeerLog implements it.
type PeerLogger interface {
	Log(peer string, message string) error
}

// Session drives one connection to completion. The frame is shared with every
// other session of the process, the line buffer is not.
type Session struct {
	id      uint32
	conn    net.Conn
	frame   *memory.Frame
	mode    Mode
	logger  logger.Logger
	peerLog PeerLogger
	writer  *ResponseWriter

	line  [LineCapacity]byte
	state State

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithMode selects vulnerable or hardened handling.
func WithMode(mode Mode) Option {
	return func(s *Session) { s.mode = mode }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithPeerLog records every echoed line in l.
func WithPeerLog(l PeerLogger) Option {
	return func(s *Session) { s.peerLog = l }
}

// New creates a session for conn.
//
// Parameters:
//   - id: Connection number assigned by the listener
//   - conn: The accepted connection; the session closes it
//   - frame: The process frame holding reversed_line and the secret
//   - opts: Optional settings; the defaults are ModeVulnerable, no logging
//     and no peer log
//
// Returns:
//   - A Session in StateWaitingLine
func New(id uint32, conn net.Conn, frame *memory.Frame, opts ...Option) *Session {
	s := &Session{
		id:     id,
		conn:   conn,
		frame:  frame,
		mode:   ModeVulnerable,
		logger: logger.NewNopLogger(),
		writer: NewResponseWriter(conn),
		state:  StateWaitingLine,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ID returns the connection number.
func (s *Session) ID() uint32 {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Handle greets the client and runs the state machine until the client
// quits, disconnects or a transfer fails. The loop also ends once the
// frame's client_quit word is non-zero; it is cleared when the session
// starts. A memory fault raised while echoing is not recovered.
func (s *Session) Handle() {
	defer func() {
		s.state = StateClosed
		_ = s.Close()
	}()

	if _, err := s.writer.Write([]byte(Greeting), nil); err != nil {
		s.logger.Warn("greeting failed", logger.Field{Key: "error", Value: err})
		return
	}

	quit, _ := memory.Lookup(memory.SlotClientQuit)
	s.frame.StoreN(quit.Addr(), quit.Size, 0)

	clear(s.line[:])
	for {
		// client_quit is only set by QUIT, unless an overflow of
		// reversed_line reached it.
		if s.frame.LoadWord(quit.Addr()) != 0 {
			s.logger.Info("client_quit set, closing connection")
			return
		}

		s.state = StateWaitingLine
		n, err := ReadLine(s.conn, s.line[:])
		if err != nil {
			s.logger.Warn("connection dropped", logger.Field{Key: "error", Value: err})
			return
		}

		if n == 0 {
			s.logger.Info("client disconnected")
			return
		}

		s.logger.Info("Got client input", logger.Field{Key: "line", Value: string(cstring(s.line[:]))})

		s.state = StateDispatch
		if bytes.Equal(s.line[:len(quitCommand)], []byte(quitCommand)) {
			s.state = StateQuitting
			s.frame.StoreN(quit.Addr(), quit.Size, 1)
			if _, err := s.writer.Write([]byte(Farewell), nil); err != nil {
				s.logger.Warn("farewell failed", logger.Field{Key: "error", Value: err})
			}
			s.logger.Info("client quit")
			return
		}

		s.state = StateEchoing
		if err := s.echo(); err != nil {
			s.logger.Warn("echo failed", logger.Field{Key: "error", Value: err})
			return
		}

		clear(s.line[:])
	}
}

func (s *Session) echo() error {
	reversed := s.frame.View(memory.SlotReversedLine)
	n := Reverse(reversed, s.line[:], s.mode == ModeHardened)
	s.logger.Debug("line reversed", logger.Field{Key: "bytes", Value: n})

	var err error
	if s.mode == ModeHardened {
		_, err = s.writer.Write(hardenedTemplate, cformat.Values{reversed.CString()})
	} else {
		_, err = s.writer.Write(reversed.CString(), FrameArgs{Frame: s.frame, Base: memory.StackBase})
	}
	if err != nil {
		return err
	}

	if _, err := s.writer.Write([]byte{endLine}, nil); err != nil {
		return err
	}

	if s.peerLog != nil {
		if err := s.peerLog.Log(peerHost(s.conn), string(cstring(s.line[:]))); err != nil {
			s.logger.Error("peer log write failed", logger.Field{Key: "error", Value: err})
		}
	}

	return nil
}

// Close closes the connection. It is safe to call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}

func cstring(b []byte) []byte {
	if n := bytes.IndexByte(b, 0); n >= 0 {
		return b[:n]
	}

	return b
}

// peerHost returns the IP of the remote end, or the full address string when
// it has no host part.
func peerHost(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}

	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}

	return addr.String()
}
