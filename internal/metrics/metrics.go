// Package metrics exposes Prometheus collectors for form saves and table
// loads.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-formdesk/pkg/orchestrator"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

// Save outcomes.
const (
	OutcomeSaved    = "saved"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

const namespace = "formdesk"

// Metrics owns a private registry so tests and embedders do not collide
// with the global one.
type Metrics struct {
	registry       *prometheus.Registry
	saves          *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	saveDuration   *prometheus.HistogramVec
	tableLoads     *prometheus.CounterVec
	tableDurations *prometheus.HistogramVec
}

// New registers every collector plus the Go runtime collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Form save attempts by outcome.",
		}, []string{"form", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_transitions_total",
			Help:      "Save pipeline phase changes.",
		}, []string{"form", "to"}),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Time from validation start to a terminal save phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"form"}),
		tableLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_loads_total",
			Help:      "Table page loads by result.",
		}, []string{"table", "result"}),
		tableDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "table_load_duration_seconds",
			Help:      "Table page load latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.saves,
		m.transitions,
		m.saveDuration,
		m.tableLoads,
		m.tableDurations,
	)
	return m
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observer returns a save pipeline observer labelled with form. Each
// orchestrator needs its own observer because it tracks the start time.
func (m *Metrics) Observer(form string) orchestrator.Observer {
	return &saveObserver{metrics: m, form: form, now: time.Now}
}

// ObserveTableLoad records one table load.
func (m *Metrics) ObserveTableLoad(table string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.tableLoads.WithLabelValues(table, result).Inc()
	m.tableDurations.WithLabelValues(table).Observe(d.Seconds())
}

type saveObserver struct {
	metrics *Metrics
	form    string
	now     func() time.Time

	mu      sync.Mutex
	started time.Time
}

func (o *saveObserver) Transition(_, to orchestrator.State, err error) {
	o.metrics.transitions.WithLabelValues(o.form, string(to)).Inc()

	o.mu.Lock()
	defer o.mu.Unlock()
	switch to {
	case orchestrator.StateValidating:
		o.started = o.now()
	case orchestrator.StateSuccess, orchestrator.StateFailed:
		o.metrics.saves.WithLabelValues(o.form, outcome(to, err)).Inc()
		if !o.started.IsZero() {
			o.metrics.saveDuration.WithLabelValues(o.form).Observe(o.now().Sub(o.started).Seconds())
			o.started = time.Time{}
		}
	}
}

func outcome(to orchestrator.State, err error) string {
	if to == orchestrator.StateSuccess {
		return OutcomeSaved
	}
	if _, ok := validation.AsFieldErrors(err); ok {
		return OutcomeInvalid
	}
	if _, ok := validation.AsNotification(err); ok {
		return OutcomeInvalid
	}
	if _, ok := validation.AsSaveError(err); ok {
		return OutcomeRejected
	}
	return OutcomeError
}
