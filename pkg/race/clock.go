package race

import (
	"sync"
	"time"
)

// Clock stamps arrival instants.
type Clock interface {
	Now() time.Time
}

// RealClock reads time.Now, which carries a monotonic reading.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock advanced by hand, used in tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts a manual clock at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
