package cmpslots

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"solperf/pkg/race"
)

// ErrAllSourcesFailed is returned by Run when every source has terminated
// while the race was still running.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Supervisor races a set of sources over one shared tracker.
type Supervisor struct {
	sources     []Source
	channelSize int
	policy      ReconnectPolicy
	retention   time.Duration
	tracker     *race.Tracker[string]
	metrics     *Metrics
	clock       race.Clock
}

func NewSupervisor(cfg Config, sources []Source, metrics *Metrics) *Supervisor {
	return &Supervisor{
		sources:     sources,
		channelSize: cfg.ChannelSize,
		policy:      cfg.Policy,
		retention:   cfg.Retention,
		tracker:     race.NewTracker[string](),
		metrics:     metrics,
		clock:       race.RealClock{},
	}
}

// Tracker returns the tracker shared by all sources.
func (s *Supervisor) Tracker() *race.Tracker[string] {
	return s.tracker
}

type sourceResult struct {
	name string
	err  error
}

// Run starts a reconnecting session loop and an ingestion loop per source.
// A source that terminates is logged and the others keep racing. Run returns
// nil once ctx is done and ErrAllSourcesFailed if every source terminated
// before that.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.sources) == 0 {
		return ErrAllSourcesFailed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		results = make(chan sourceResult, len(s.sources))
	)

	for _, src := range s.sources {
		src := src
		ch := newChannel(src.Name(), s.channelSize, s.metrics, s.clock)

		wg.Add(2)
		go func() {
			defer wg.Done()
			Ingest(ctx, src.Name(), ch, s.tracker, s.metrics)
		}()
		go func() {
			defer wg.Done()
			err := RunWithReconnect(ctx, src, ch, s.policy, s.metrics)
			ch.Close()
			results <- sourceResult{name: src.Name(), err: err}
		}()
	}

	if s.retention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sweep(ctx)
		}()
	}

	log.Infof("racing %d sources", len(s.sources))

	var failed int
	for range s.sources {
		res := <-results
		if ctx.Err() != nil && errors.Is(res.err, ctx.Err()) {
			continue
		}
		failed++
		log.Errorf("source %s terminated: %v", res.name, res.err)
	}

	cancel()
	wg.Wait()

	if failed == len(s.sources) {
		return ErrAllSourcesFailed
	}
	return nil
}

func (s *Supervisor) sweep(ctx context.Context) {
	interval := s.retention / 2
	if interval <= 0 {
		interval = s.retention
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.tracker.Evict(s.clock.Now().Add(-s.retention)); n > 0 {
				log.Debugf("evicted %d slots older than %s, %d left", n, s.retention, s.tracker.Len())
			}
		case <-ctx.Done():
			return
		}
	}
}
