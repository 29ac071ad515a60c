// Package probe is a line client for the reversing server. Fuzzing harnesses
// and the tests use it to greet, send lines, read responses and detect when
// the server hung up.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// HangupWait is how long HungUp waits for the server to close the connection.
const HangupWait = 250 * time.Millisecond

// ErrClosed is returned when the client has been closed.
var ErrClosed = errors.New("probe: client is closed")

// Config holds configuration for the probe client.
type Config struct {
	// Address is the "host:port" to connect to.
	Address string
	// ConnectionTimeout is the max duration for establishing the connection.
	ConnectionTimeout time.Duration
	// ReadTimeout bounds every response read; 0 means no timeout.
	ReadTimeout time.Duration
	// WriteTimeout bounds every write; 0 means no timeout.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with 5s connection, read and write timeouts.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ConnectionTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

// Client is one connection to the server. It is safe for concurrent use,
// though requests are serialised.
type Client struct {
	config   Config
	mu       sync.Mutex
	conn     net.Conn
	reader   *bufio.Reader
	greeting string
}

// Dial connects to the server and reads its greeting line.
//
// Parameters:
//   - ctx: Context bounding the dial
//   - config: Connection settings
//
// Returns:
//   - A connected Client
//   - An error if the dial or the greeting read failed
func Dial(ctx context.Context, config Config) (*Client, error) {
	dialer := net.Dialer{Timeout: config.ConnectionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("probe: dial %s: %w", config.Address, err)
	}

	c := &Client{
		config: config,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}

	greeting, err := c.readLine()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("probe: read greeting: %w", err)
	}

	c.greeting = greeting
	return c, nil
}

// Greeting returns the first line the server sent, without its terminator.
func (c *Client) Greeting() string {
	return c.greeting
}

// Send writes line followed by a terminator and returns the response line
// without its terminator.
func (c *Client) Send(line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write([]byte(line + "\n")); err != nil {
		return "", err
	}

	return c.readLine()
}

// SendRaw writes data exactly as given, without waiting for a response.
func (c *Client) SendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.write(data)
}

// ReadResponse reads the next response line without its terminator.
func (c *Client) ReadResponse() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.readLine()
}

// Quit sends QUIT and returns the farewell line. The server closes the
// connection afterwards; use HungUp to observe it.
func (c *Client) Quit() (string, error) {
	return c.Send("QUIT")
}

// HungUp reports whether the server has closed the connection: the next read
// returns EOF (or a reset) instead of data or a timeout.
func (c *Client) HungUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return true
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(HangupWait)); err != nil {
		return true
	}

	_, err := c.reader.Peek(1)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	return err != nil
}

// Close closes the connection. It is safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) write(data []byte) error {
	if c.conn == nil {
		return ErrClosed
	}

	if c.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("probe: write: %w", err)
	}

	return nil
}

func (c *Client) readLine() (string, error) {
	if c.conn == nil {
		return "", ErrClosed
	}

	deadline := time.Time{}
	if c.config.ReadTimeout > 0 {
		deadline = time.Now().Add(c.config.ReadTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, io.ErrUnexpectedEOF
		}
		return line, err
	}

	return strings.TrimSuffix(line, "\n"), nil
}
