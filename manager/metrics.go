// File: manager/metrics.go
// Package manager
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus-backed point-in-time counters for the registry, shaped like
// a thread-safe named-metric map but backed by
// github.com/prometheus/client_golang instead of a hand-rolled map.

package manager

import "github.com/prometheus/client_golang/prometheus"

// Metrics records Manager-observable counters and exposes them to a
// Prometheus registry.
type Metrics struct {
	connectionsOpen  prometheus.Gauge
	connectionsTotal prometheus.Counter
	broadcastsOK     prometheus.Counter
	broadcastsFailed prometheus.Counter
	broadcastBytes   prometheus.Counter
	frameSize        prometheus.Histogram
}

// NewMetrics constructs a Metrics recorder and registers its collectors
// against reg. Passing nil registers against prometheus.DefaultRegisterer.
func NewMetrics(reg ...prometheus.Registerer) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	if len(reg) > 0 && reg[0] != nil {
		registerer = reg[0]
	}

	m := &Metrics{
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wsgateway",
			Name:      "connections_open",
			Help:      "Number of currently registered WebSocket connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsgateway",
			Name:      "connections_total",
			Help:      "Total WebSocket connections ever registered.",
		}),
		broadcastsOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsgateway",
			Name:      "broadcast_sends_total",
			Help:      "Total successful per-recipient broadcast sends.",
		}),
		broadcastsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsgateway",
			Name:      "broadcast_send_failures_total",
			Help:      "Total per-recipient broadcast sends that failed.",
		}),
		broadcastBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsgateway",
			Name:      "broadcast_bytes_total",
			Help:      "Total payload bytes delivered by successful broadcast sends.",
		}),
		frameSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wsgateway",
			Name:      "broadcast_frame_size_bytes",
			Help:      "Size distribution of successfully broadcast payloads.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}),
	}

	// A collector whose name is already registered (e.g. two Managers
	// sharing a registry) is skipped: the earlier collector stays
	// registered and this Metrics' counterpart is not exported. Any other
	// registration error panics, matching prometheus.MustRegister's own
	// convention.
	for _, c := range []prometheus.Collector{
		m.connectionsOpen, m.connectionsTotal, m.broadcastsOK, m.broadcastsFailed, m.broadcastBytes, m.frameSize,
	} {
		if err := registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(err)
		}
	}

	return m
}

func (m *Metrics) observeConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsOpen.Inc()
	m.connectionsTotal.Inc()
}

func (m *Metrics) observeConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsOpen.Dec()
}

func (m *Metrics) observeBroadcastSuccess(bytes int) {
	if m == nil {
		return
	}
	m.broadcastsOK.Inc()
	m.broadcastBytes.Add(float64(bytes))
	m.frameSize.Observe(float64(bytes))
}

func (m *Metrics) observeBroadcastFailure() {
	if m == nil {
		return
	}
	m.broadcastsFailed.Inc()
}
