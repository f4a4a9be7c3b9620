// Package metrics exposes Prometheus collectors for flatlease.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/flatlease/internal/event"
)

const namespace = "flatlease"

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal        *prometheus.CounterVec
	duesGenerated      *prometheus.CounterVec
	paymentsAmount     prometheus.Counter
	sweepRuns          *prometheus.CounterVec
	sweepTransitions   *prometheus.CounterVec
	sweepFailures      *prometheus.CounterVec
	sweepDuration      *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events delivered by the event bus.",
		}, []string{"type"}),
		duesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dues_generated_total",
			Help:      "Monthly dues created by generation, by origin.",
		}, []string{"origin"}),
		paymentsAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_amount_total",
			Help:      "Sum of recorded payment amounts.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Sweep executions by sweep and outcome.",
		}, []string{"sweep", "outcome"}),
		sweepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_transitions_total",
			Help:      "Entities changed by sweeps.",
		}, []string{"sweep"}),
		sweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_entity_failures_total",
			Help:      "Entities a sweep failed to process.",
		}, []string{"sweep"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Sweep wall time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sweep"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsTotal, m.duesGenerated, m.paymentsAmount,
		m.sweepRuns, m.sweepTransitions, m.sweepFailures, m.sweepDuration,
		m.httpRequests, m.httpRequestSeconds,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// HandleEvent counts a delivered domain event. It implements eventbus.Handler.
func (m *Metrics) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	m.eventsTotal.WithLabelValues(evt.EventType).Inc()

	switch evt.EventType {
	case event.TypeMonthlyDuesGenerated:
		var p event.MonthlyDuesGeneratedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		origin := "building"
		if p.ContractID != "" {
			origin = "contract"
		}
		m.duesGenerated.WithLabelValues(origin).Add(float64(p.DueCount))
	case event.TypePaymentRecorded:
		var p event.PaymentRecordedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		m.paymentsAmount.Add(p.Amount.InexactFloat64())
	}
	return nil
}

// BusCounter reports event bus totals.
type BusCounter interface {
	Published() uint64
	Dropped() uint64
}

// WatchBus exports the published and dropped totals of bus.
func (m *Metrics) WatchBus(bus BusCounter) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events offered to the event bus.",
		}, func() float64 { return float64(bus.Published()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Domain events lost to a full event bus buffer.",
		}, func() float64 { return float64(bus.Dropped()) }),
	)
}

// ObserveSweep records one sweep run.
func (m *Metrics) ObserveSweep(sweep string, transitioned, failed int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sweepRuns.WithLabelValues(sweep, outcome).Inc()
	m.sweepTransitions.WithLabelValues(sweep).Add(float64(transitioned))
	m.sweepFailures.WithLabelValues(sweep).Add(float64(failed))
	m.sweepDuration.WithLabelValues(sweep).Observe(elapsed.Seconds())
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, code string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
