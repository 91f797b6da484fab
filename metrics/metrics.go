// Package metrics holds the Prometheus collectors shared by the relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the relay. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	DeliveriesTotal *prometheus.CounterVec
	CyclesTotal     prometheus.Counter
	CycleDuration   prometheus.Histogram
	LedgerEntries   *prometheus.GaugeVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total HTTP requests issued by the fetcher.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "HTTP request latency for fetcher requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_retries_total",
			Help: "Total number of fetch retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_errors_total",
			Help: "Total number of relay errors by type.",
		},
		[]string{"error_type"},
	)
	deliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Per-file delivery outcomes.",
		},
		[]string{"outcome"},
	)
	cycles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_cycles_total",
			Help: "Completed crawl cycles.",
		},
	)
	cycleDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_cycle_duration_seconds",
			Help:    "Wall time of a crawl cycle, including pacing delays.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	ledgerEntries := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_ledger_entries",
			Help: "Entries held by the dedup ledger.",
		},
		[]string{"set"},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, deliveries, cycles, cycleDuration, ledgerEntries)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		DeliveriesTotal: deliveries,
		CyclesTotal:     cycles,
		CycleDuration:   cycleDuration,
		LedgerEntries:   ledgerEntries,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncDelivery counts one per-file outcome.
func (m *Metrics) IncDelivery(outcome string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(d.Seconds())
}

// SetLedgerEntries publishes the current ledger sizes.
func (m *Metrics) SetLedgerEntries(topics, links int) {
	if m == nil {
		return
	}
	m.LedgerEntries.WithLabelValues("seen_topics").Set(float64(topics))
	m.LedgerEntries.WithLabelValues("posted_links").Set(float64(links))
}
