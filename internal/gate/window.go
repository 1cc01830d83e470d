package gate

import (
	"context"
	"sync"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// maxWindow is the longest window any ceiling uses; entries older than this
// are pruned on every operation so the slice stays bounded.
const maxWindow = 24 * time.Hour

// MemoryCounter is the default in-process sliding-window trade counter. A
// Redis-backed counter replaces it when several processes must share
// ceilings.
type MemoryCounter struct {
	mu     sync.Mutex
	stamps []time.Time
	now    func() time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now}
}

// CountSince returns the number of recorded trades within the window.
func (c *MemoryCounter) CountSince(_ context.Context, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()

	cutoff := c.now().Add(-window)
	n := 0
	for _, ts := range c.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n, nil
}

// Record registers one trade at the current time.
func (c *MemoryCounter) Record(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	c.stamps = append(c.stamps, c.now())
	return nil
}

func (c *MemoryCounter) prune() {
	cutoff := c.now().Add(-maxWindow)
	keep := c.stamps[:0]
	for _, ts := range c.stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	c.stamps = keep
}

var _ domain.TradeCounter = (*MemoryCounter)(nil)
