// Package metrics holds the Prometheus collectors shared by the relay
// endpoint and the feed client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// RelayRequests counts relay endpoint responses by status code.
	RelayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedviewer_relay_requests_total",
			Help: "Relay endpoint responses, by status code.",
		},
		[]string{"status"},
	)

	// UpstreamDuration observes how long upstream fetches take.
	UpstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedviewer_upstream_duration_seconds",
			Help:    "Duration of upstream fetches made by the relay.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RelayAttempts counts feed client attempts per relay and outcome.
	RelayAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedviewer_relay_attempts_total",
			Help: "Feed client attempts, by relay and outcome.",
		},
		[]string{"relay", "outcome"},
	)

	// SourceFetches counts per-source fetch results.
	SourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedviewer_source_fetches_total",
			Help: "Per-source feed fetches, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register adds every collector to reg. Call once per registry.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		RelayRequests,
		UpstreamDuration,
		RelayAttempts,
		SourceFetches,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry with the process and Go collectors plus
// every feedviewer collector.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}
