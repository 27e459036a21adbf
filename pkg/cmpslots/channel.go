package cmpslots

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"solperf/pkg/cmpslots/feeds/slots"
	"solperf/pkg/constant"
	"solperf/pkg/race"
)

const (
	occupancyWarnPercent  = 90
	occupancyWarnInterval = 10 * time.Second
)

// ErrChannelClosed is returned by Send once the consumer side is closed.
var ErrChannelClosed = errors.New("event channel closed")

// Channel is a bounded FIFO of arrivals between the sessions of one source
// and its ingestion loop. Send blocks while the channel is full.
type Channel struct {
	name    string
	ch      chan slots.Arrival
	done    chan struct{}
	once    sync.Once
	metrics *Metrics
	clock   race.Clock

	mu       sync.Mutex
	lastWarn time.Time
}

// NewChannel creates a channel of the given capacity, constant.ChannelSize
// when capacity is not positive.
func NewChannel(name string, capacity int) *Channel {
	return newChannel(name, capacity, nil, race.RealClock{})
}

func newChannel(name string, capacity int, metrics *Metrics, clock race.Clock) *Channel {
	if capacity <= 0 {
		capacity = constant.ChannelSize
	}
	return &Channel{
		name:    name,
		ch:      make(chan slots.Arrival, capacity),
		done:    make(chan struct{}),
		metrics: metrics,
		clock:   clock,
	}
}

// Send enqueues a, waiting for room while the channel is full.
func (c *Channel) Send(ctx context.Context, a slots.Arrival) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.ch <- a:
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	c.observeOccupancy()
	return nil
}

// Receive dequeues the next arrival. It returns false once the channel is
// closed and drained, or when ctx is done.
func (c *Channel) Receive(ctx context.Context) (slots.Arrival, bool) {
	select {
	case a := <-c.ch:
		c.metrics.setOccupancy(c.name, len(c.ch))
		return a, true
	case <-c.done:
		select {
		case a := <-c.ch:
			c.metrics.setOccupancy(c.name, len(c.ch))
			return a, true
		default:
			return slots.Arrival{}, false
		}
	case <-ctx.Done():
		return slots.Arrival{}, false
	}
}

// Close stops further sends. Buffered arrivals can still be received.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
}

// Len returns the number of buffered arrivals.
func (c *Channel) Len() int {
	return len(c.ch)
}

// Cap returns the capacity of the channel.
func (c *Channel) Cap() int {
	return cap(c.ch)
}

func (c *Channel) observeOccupancy() {
	n := len(c.ch)
	c.metrics.setOccupancy(c.name, n)

	if n*100 < cap(c.ch)*occupancyWarnPercent {
		return
	}

	now := c.clock.Now()
	c.mu.Lock()
	if !c.lastWarn.IsZero() && now.Sub(c.lastWarn) < occupancyWarnInterval {
		c.mu.Unlock()
		return
	}
	c.lastWarn = now
	c.mu.Unlock()

	log.Warnf("%s: event channel is %d/%d full, ingestion is falling behind", c.name, n, cap(c.ch))
}
