package tcpserver

// TCPServerSession is implemented by the handler of one accepted connection.
// The server runs Handle to completion before accepting the next connection,
// so at most one session exists at any time.
type TCPServerSession interface {
	// ID returns the connection number assigned by the server.
	ID() uint32

	// Handle runs the session until the client leaves. It owns the
	// connection and must close it before returning.
	Handle()

	// Close closes the connection. The server calls it on Stop to unblock a
	// session waiting on its client. It should be safe to call multiple times.
	//
	// Returns:
	//   - An error if closing failed
	Close() error
}
