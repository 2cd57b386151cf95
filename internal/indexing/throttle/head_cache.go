// Package throttle keeps repeated chain-head lookups off the node.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/raulk/clock"
)

// HeadFetcher returns the current head block number.
type HeadFetcher interface {
	GetCurrentBlockNumber(ctx context.Context) (uint64, error)
}

// HeadCache caches the head block number for ttl. Failed lookups are not cached.
type HeadCache struct {
	fetcher HeadFetcher
	ttl     time.Duration
	clock   clock.Clock

	mu       sync.RWMutex
	cached   uint64
	cachedAt time.Time
}

func NewHeadCache(fetcher HeadFetcher, ttl time.Duration, clk clock.Clock) *HeadCache {
	if clk == nil {
		clk = clock.New()
	}
	return &HeadCache{
		fetcher: fetcher,
		ttl:     ttl,
		clock:   clk,
	}
}

// GetCurrentBlockNumber returns the cached head within ttl, otherwise fetches it.
func (c *HeadCache) GetCurrentBlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	if c.cached > 0 && c.clock.Since(c.cachedAt) < c.ttl {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	head, err := c.fetcher.GetCurrentBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cached = head
	c.cachedAt = c.clock.Now()
	c.mu.Unlock()

	return head, nil
}

// Invalidate forces the next call to fetch.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
