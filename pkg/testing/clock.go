package testing

import (
	"sync"
	"time"
)

// PassClock is the time source of a MountTester.
//
// The mount state reads the time once when a pass starts and once when it
// ends. Every read through Source charges the configured pass cost, so a pass
// lasts exactly that cost and tests can push passes over a slow-pass
// threshold without sleeping. Now only observes the clock.
type PassClock struct {
	mu    sync.Mutex
	now   time.Time
	cost  time.Duration
	reads int
}

// NewPassClock returns a clock starting at a fixed epoch that charges cost on
// every read through Source.
func NewPassClock(cost time.Duration) *PassClock {
	return &PassClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cost: cost}
}

// Source returns the function to pass to rendercore.WithClock.
func (c *PassClock) Source() func() time.Time {
	return func() time.Time {
		c.mu.Lock()
		defer c.mu.Unlock()
		t := c.now
		c.now = c.now.Add(c.cost)
		c.reads++
		return t
	}
}

// Now returns the current time without charging.
func (c *PassClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, the idle time between passes.
func (c *PassClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SetPassCost changes the time charged per read for later passes.
func (c *PassClock) SetPassCost(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cost = d
}

// Reads returns how often the mount state read the clock.
func (c *PassClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
