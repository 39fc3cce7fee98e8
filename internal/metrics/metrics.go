// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/agricure/agricure-locate/internal/acquisition"
)

const namespace = "agricure_locate"

// Metrics collects acquisition metrics on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	stale       prometheus.Counter
	loading     prometheus.Gauge
	latency     prometheus.Histogram

	mu      sync.Mutex
	started map[uint64]time.Time
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of position requests by trigger",
		}, []string{"trigger"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of resolved position requests by status and error code",
		}, []string{"status", "code"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_callbacks_total",
			Help:      "Total number of callbacks discarded because a newer request was issued",
		}),
		loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loading",
			Help:      "1 while a position request is in flight",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time from trigger to resolution of a position request",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		started: make(map[uint64]time.Time),
	}
	m.registry.MustRegister(m.requests, m.resolutions, m.stale, m.loading, m.latency,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Gather implements prometheus.Gatherer on the dedicated registry.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest counts a trigger. trigger names what caused it, e.g. "schedule" or "signal".
func (m *Metrics) ObserveRequest(trigger string) {
	m.requests.WithLabelValues(trigger).Inc()
}

// ObserveState updates the metrics for a state snapshot. Latency is measured from the first loading
// snapshot of a request to its first resolution.
func (m *Metrics) ObserveState(state acquisition.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state.IsLoading {
		m.loading.Set(1)
		if _, ok := m.started[state.Request]; !ok {
			m.started[state.Request] = state.UpdatedAt
		}
		return
	}
	m.loading.Set(0)
	if !state.Resolved() {
		return
	}

	code := ""
	if state.Error != nil {
		code = state.Error.Code.String()
	}
	m.resolutions.WithLabelValues(string(state.Status()), code).Inc()
	if start, ok := m.started[state.Request]; ok {
		m.latency.Observe(state.UpdatedAt.Sub(start).Seconds())
	}
	for request := range m.started {
		if request <= state.Request {
			delete(m.started, request)
		}
	}
}

// ObserveStale counts a discarded stale callback.
func (m *Metrics) ObserveStale(uint64) {
	m.stale.Inc()
}
