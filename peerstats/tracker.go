// Package peerstats counts connections per peer inside a sliding window. The
// listener records every accepted connection here so repeated probes from one
// fuzzing client show up in the logs; the counts never influence the line
// protocol itself.
package peerstats

import (
	"context"
	"time"
)

// DefaultWindow is how long a peer's count survives after its first
// connection in the window.
const DefaultWindow = time.Hour

// Tracker is implemented by the in-memory and Redis backed counters.
type Tracker interface {
	// Record counts one connection from peer.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - peer: Peer identifier, usually the client IP
	//
	// Returns:
	//   - The number of connections from peer in the current window,
	//     including this one
	//   - An error if the backend failed
	Record(ctx context.Context, peer string) (int64, error)

	// Count returns the connections recorded for peer in the current window,
	// 0 for an unknown peer.
	Count(ctx context.Context, peer string) (int64, error)

	// Reset forgets every peer.
	Reset(ctx context.Context) error
}
