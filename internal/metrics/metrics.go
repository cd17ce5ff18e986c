// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus instrumentation for the RPC surface.
// The collectors live on their own registry served from a separate plain
// HTTP port, keeping the /api status-code contract untouched.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the server collectors. A nil *Metrics is valid and drops
// every observation, so instrumentation can stay unconditional.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocean_requests_total",
				Help: "RPC requests by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocean_request_duration_seconds",
				Help:    "RPC request duration by method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry for the metrics listener.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one dispatched RPC request.
func (m *Metrics) ObserveRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}
