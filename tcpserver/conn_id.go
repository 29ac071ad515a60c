package tcpserver

import "sync/atomic"

// ConnCounter numbers accepted connections. The first connection is 1, so 0
// never identifies a connection.
type ConnCounter struct {
	n atomic.Uint32
}

// Next returns the number of the next connection.
func (c *ConnCounter) Next() uint32 {
	return c.n.Add(1)
}

// Accepted returns how many connections have been numbered.
func (c *ConnCounter) Accepted() uint32 {
	return c.n.Load()
}
