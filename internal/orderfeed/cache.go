package orderfeed

import (
	"context"
	"sync"

	"position-core/internal/sweep"
)

// StatusCache keeps the latest observed state per order and serves it
// to the reconciliation sweep. It is fed from a feed subscription via
// Run, or directly via Apply.
type StatusCache struct {
	mu     sync.RWMutex
	latest map[string]*sweep.Observation
}

// NewStatusCache creates an empty cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{
		latest: make(map[string]*sweep.Observation),
	}
}

var _ sweep.OrderStatusSource = (*StatusCache)(nil)

// Run consumes events until the channel closes or ctx is cancelled.
func (c *StatusCache) Run(ctx context.Context, events <-chan OrderEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.Apply(&e)
		}
	}
}

// Apply records one event as the latest state of its order.
func (c *StatusCache) Apply(e *OrderEvent) {
	if e == nil || e.OrderID == "" {
		return
	}

	obs := &sweep.Observation{
		OrderStatus: e.Status,
		Liquidation: e.LiquidationInfo(),
	}

	c.mu.Lock()
	c.latest[e.OrderID] = obs
	c.mu.Unlock()
}

// Observe returns the latest observation for an order, or nil when the
// feed has not delivered anything for it yet.
func (c *StatusCache) Observe(_ context.Context, orderID string) (*sweep.Observation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obs, ok := c.latest[orderID]
	if !ok {
		return nil, nil
	}

	cp := *obs
	if obs.Liquidation != nil {
		l := *obs.Liquidation
		cp.Liquidation = &l
	}
	return &cp, nil
}

// Len reports how many orders the cache currently tracks.
func (c *StatusCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.latest)
}
