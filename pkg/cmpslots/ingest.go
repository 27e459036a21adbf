package cmpslots

import (
	"context"

	log "github.com/sirupsen/logrus"

	"solperf/pkg/race"
)

// Ingest feeds the arrivals of source name from ch into tracker and logs a
// winner line for every arrival that lost its race. It returns when ch is
// closed and drained or ctx is done.
func Ingest(ctx context.Context, name string, ch *Channel, tracker *race.Tracker[string], metrics *Metrics) {
	for {
		a, ok := ch.Receive(ctx)
		if !ok {
			return
		}

		v := tracker.Observe(a.Key, name, a.ReceivedAt)
		switch {
		case v.First:
			metrics.observed(name, verdictFirst)
			log.Debugf("slot %s first seen from %s", a.Key, name)
		case v.Reordered:
			metrics.observed(name, verdictReordered)
			log.Infof("slot %s winner %s, %d ms faster", a.Key, v.Winner, v.Delta.Milliseconds())
			log.Debugf("slot %s from %s was received before the winner but processed after it", a.Key, name)
		default:
			metrics.observed(name, verdictLost)
			log.Infof("slot %s winner %s, %d ms faster", a.Key, v.Winner, v.Delta.Milliseconds())
		}
	}
}
