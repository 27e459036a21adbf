package cmpslots

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const metricsNamespace = "slotrace"

// verdict label values of slotrace_observations_total
const (
	verdictFirst     = "first"
	verdictLost      = "lost"
	verdictReordered = "reordered"
)

// Metrics holds the prometheus collectors of a race. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	observations *prometheus.CounterVec
	occupancy    *prometheus.GaugeVec
	reconnects   *prometheus.CounterVec
	failures     *prometheus.GaugeVec
	state        *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "observations_total",
			Help:      "Slot events observed per source, by race verdict.",
		}, []string{"source", "verdict"}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "channel_occupancy",
			Help:      "Events buffered in the event channel of a source.",
		}, []string{"source"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnects_total",
			Help:      "Sessions of a source that ended and were retried.",
		}, []string{"source"}),
		failures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "source_consecutive_failures",
			Help:      "Consecutive failed sessions of a source.",
		}, []string{"source"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "source_state",
			Help:      "Connection state of a source: 0 disconnected, 1 connecting, 2 streaming, 3 cancelled, 4 exhausted.",
		}, []string{"source"}),
	}

	if reg != nil {
		reg.MustRegister(m.observations, m.occupancy, m.reconnects, m.failures, m.state)
	}
	return m
}

func (m *Metrics) observed(source, verdict string) {
	if m == nil {
		return
	}
	m.observations.WithLabelValues(source, verdict).Inc()
}

func (m *Metrics) setOccupancy(source string, n int) {
	if m == nil {
		return
	}
	m.occupancy.WithLabelValues(source).Set(float64(n))
}

func (m *Metrics) reconnected(source string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(source).Inc()
}

func (m *Metrics) setFailures(source string, n int) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(source).Set(float64(n))
}

func (m *Metrics) setState(source string, s State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(source).Set(float64(s))
}

// MetricsHandler serves the metrics gathered by g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// ServeMetrics serves /metrics on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Debugf("metrics server shutdown: %v", err)
		}
	}()

	log.Infof("serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
