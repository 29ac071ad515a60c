package peerstats

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryTracker keeps counts in a go-cache whose entries expire one window
// after they are created.
type MemoryTracker struct {
	window time.Duration
	mu     sync.Mutex
	cache  *cache.Cache
}

// NewMemoryTracker creates an in-memory Tracker.
//
// Parameters:
//   - window: Lifetime of a peer's count, measured from its first connection
//   - cleanupInterval: Interval at which expired counts are purged
//
// Returns:
//   - A new MemoryTracker
func NewMemoryTracker(window, cleanupInterval time.Duration) *MemoryTracker {
	return &MemoryTracker{
		window: window,
		cache:  cache.New(window, cleanupInterval),
	}
}

// Record implements Tracker.
func (t *MemoryTracker) Record(ctx context.Context, peer string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, found := t.cache.Get(peer); !found {
		t.cache.Set(peer, int64(1), t.window)
		return 1, nil
	}

	return t.cache.IncrementInt64(peer, 1)
}

// Count implements Tracker.
func (t *MemoryTracker) Count(ctx context.Context, peer string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	v, found := t.cache.Get(peer)
	if !found {
		return 0, nil
	}

	return v.(int64), nil
}

// Reset implements Tracker.
func (t *MemoryTracker) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.cache.Flush()
	return nil
}
