// Package metrics exposes Prometheus instrumentation for benchmark runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one run. Each run gets
// its own registry so repeated runs in one process never collide.
type Metrics struct {
	BurstsDispatched prometheus.Counter
	BurstsLate       prometheus.Counter
	Requests         *prometheus.CounterVec
	InFlight         prometheus.Gauge
	Latency          prometheus.Histogram
	TickSkew         prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers the run metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		BurstsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "burstbench_bursts_dispatched_total",
			Help: "Total bursts dispatched",
		}),
		BurstsLate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "burstbench_bursts_late_total",
			Help: "Bursts dispatched after their scheduled tick",
		}),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burstbench_requests_total",
				Help: "Completed requests by outcome",
			},
			[]string{"outcome"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "burstbench_requests_in_flight",
			Help: "Requests currently in flight",
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "burstbench_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		TickSkew: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "burstbench_tick_skew_seconds",
			Help:    "How far past its scheduled tick each burst started",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.BurstsDispatched, m.BurstsLate, m.Requests,
		m.InFlight, m.Latency, m.TickSkew,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
