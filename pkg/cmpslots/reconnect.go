package cmpslots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"solperf/pkg/cmpslots/feeds/slots"
	"solperf/pkg/constant"
)

// Source is one upstream slot feed. Stream runs a single session and
// returns when it ends.
type Source interface {
	Stream(ctx context.Context, out chan<- slots.Arrival) error
	Name() string
}

// State is the connection state of a source.
type State int

const (
	Disconnected State = iota
	Connecting
	Streaming
	Cancelled
	Exhausted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Cancelled:
		return "cancelled"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Backoff policy names accepted by ParseReconnectPolicy.
const (
	BackoffExponential = "exponential"
	BackoffReference   = "reference"
)

// ReconnectPolicy decides how long to wait between sessions.
type ReconnectPolicy struct {
	// NewBackOff returns a fresh schedule for one source.
	NewBackOff func() backoff.BackOff
	// AlertAfter consecutive failed sessions turn every further failure into
	// a warning. 0 never warns.
	AlertAfter int
}

// ExponentialPolicy waits 500ms after the first failure and grows by half
// on each further one, up to 30s.
func ExponentialPolicy(alertAfter int) ReconnectPolicy {
	return ReconnectPolicy{
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.Multiplier = 1.5
			b.RandomizationFactor = 0.5
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		},
		AlertAfter: alertAfter,
	}
}

// ReferencePolicy retries every second forever.
func ReferencePolicy(alertAfter int) ReconnectPolicy {
	return ReconnectPolicy{
		NewBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(constant.ReferenceBackoff)
		},
		AlertAfter: alertAfter,
	}
}

// ParseReconnectPolicy maps a --backoff value to a policy.
func ParseReconnectPolicy(name string, alertAfter int) (ReconnectPolicy, error) {
	switch name {
	case "", BackoffExponential:
		return ExponentialPolicy(alertAfter), nil
	case BackoffReference:
		return ReferencePolicy(alertAfter), nil
	}
	return ReconnectPolicy{}, fmt.Errorf("unknown backoff policy %q, possible values are %q, %q",
		name, BackoffExponential, BackoffReference)
}

// RunWithReconnect runs sessions of src back to back and forwards their
// arrivals into ch, sleeping according to policy between sessions. It
// returns ctx.Err() once ctx is done, and the terminal error when src
// reports a permanent failure or ch is closed.
func RunWithReconnect(ctx context.Context, src Source, ch *Channel, policy ReconnectPolicy, metrics *Metrics) error {
	var (
		name     = src.Name()
		b        = policy.NewBackOff()
		failures int
	)

	setState := func(s State) {
		metrics.setState(name, s)
		log.Tracef("%s: %s", name, s)
	}

	for {
		if ctx.Err() != nil {
			setState(Cancelled)
			return ctx.Err()
		}

		setState(Connecting)
		delivered, err := runSession(ctx, src, ch, func() { setState(Streaming) })

		if ctx.Err() != nil {
			setState(Cancelled)
			return ctx.Err()
		}
		if errors.Is(err, ErrChannelClosed) || slots.IsPermanent(err) {
			setState(Exhausted)
			return err
		}

		setState(Disconnected)
		if delivered > 0 {
			b.Reset()
			failures = 0
		}
		failures++
		metrics.reconnected(name)
		metrics.setFailures(name, failures)

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			setState(Exhausted)
			return fmt.Errorf("%s: giving up after %d failed sessions: %w", name, failures, err)
		}

		if policy.AlertAfter > 0 && failures >= policy.AlertAfter {
			log.Warnf("%s: %d consecutive failed sessions, last error: %v, reconnecting in %s",
				name, failures, err, wait.Round(time.Millisecond))
		} else {
			log.Infof("%s: session ended: %v, reconnecting in %s", name, err, wait.Round(time.Millisecond))
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			setState(Cancelled)
			return ctx.Err()
		}
	}
}

// runSession runs one session of src, bridging its arrivals into ch. It
// returns how many arrivals reached ch and why the session ended.
func runSession(ctx context.Context, src Source, ch *Channel, onFirst func()) (int, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		out       = make(chan slots.Arrival)
		forwarded = make(chan forwardResult, 1)
	)

	go func() {
		var res forwardResult
		defer func() { forwarded <- res }()

		for {
			select {
			case a := <-out:
				if err := ch.Send(ctx, a); err != nil {
					res.err = err
					cancel()
					return
				}
				if res.n == 0 {
					onFirst()
				}
				res.n++
			case <-sessionCtx.Done():
				return
			}
		}
	}()

	err := src.Stream(sessionCtx, out)
	cancel()
	res := <-forwarded

	if res.err != nil {
		return res.n, res.err
	}
	if err == nil {
		err = slots.ErrSessionEnded
	}
	return res.n, err
}

type forwardResult struct {
	n   int
	err error
}
