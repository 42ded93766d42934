package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the provider request collectors. One instance is shared by all
// fetch clients; the client name is a label.
type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portfolio",
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "Provider requests dispatched, by outcome",
			},
			[]string{"client", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "portfolio",
				Subsystem: "provider",
				Name:      "request_duration_seconds",
				Help:      "Duration of provider requests",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"client"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portfolio",
				Subsystem: "provider",
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups, by result",
			},
			[]string{"client", "result"},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "portfolio",
				Subsystem: "provider",
				Name:      "queue_depth",
				Help:      "Requests waiting for a dispatch slot",
			},
			[]string{"client"},
		),
	}
}
