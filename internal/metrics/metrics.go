package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/runner"
)

// Namespace prefixes every metric name.
const Namespace = "door_actuator"

// Rejection reasons used as label values.
const (
	ReasonBusy    = "busy"
	ReasonUnknown = "unknown_sequence"
	ReasonOther   = "other"
)

// Run outcomes used as label values.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

// Metrics collects run statistics. It implements runner.Observer.
type Metrics struct {
	runner.NopObserver

	registry *prometheus.Registry

	runsAccepted   *prometheus.CounterVec
	runsRejected   *prometheus.CounterVec
	runsFinished   *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	triggerPresses prometheus.Counter
	running        prometheus.Gauge
}

var _ runner.Observer = (*Metrics)(nil)

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		runsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_accepted_total",
				Help:      "Total number of admitted runs",
			},
			[]string{"sequence", "source"},
		),
		runsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_rejected_total",
				Help:      "Total number of refused run requests",
			},
			[]string{"reason", "source"},
		),
		runsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_finished_total",
				Help:      "Total number of runs that reached done",
			},
			[]string{"sequence", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time from admission to done",
				Buckets:   []float64{1, 2, 5, 10, 15, 20, 25, 30, 45, 60},
			},
			[]string{"sequence"},
		),
		triggerPresses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "trigger_presses_total",
			Help:      "Total number of debounced push button presses",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "running",
			Help:      "1 while a run is active",
		}),
	}

	registry.MustRegister(
		m.runsAccepted,
		m.runsRejected,
		m.runsFinished,
		m.runDuration,
		m.triggerPresses,
		m.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

// RunAccepted implements runner.Observer.
func (m *Metrics) RunAccepted(name string, actor actuation.Actor, _ time.Duration) {
	m.runsAccepted.WithLabelValues(name, string(actor.Source)).Inc()
	m.running.Set(1)
}

// RunRejected implements runner.Observer.
func (m *Metrics) RunRejected(_ string, actor actuation.Actor, err error) {
	m.runsRejected.WithLabelValues(Reason(err), string(actor.Source)).Inc()
}

// RunFinished implements runner.Observer.
func (m *Metrics) RunFinished(name string, elapsed time.Duration, aborted bool) {
	outcome := OutcomeCompleted
	if aborted {
		outcome = OutcomeAborted
	}

	m.runsFinished.WithLabelValues(name, outcome).Inc()
	m.runDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	m.running.Set(0)
}

// TriggerPressed implements runner.Observer.
func (m *Metrics) TriggerPressed() {
	m.triggerPresses.Inc()
}

// Reason maps a rejection error to its label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, actuation.ErrBusy):
		return ReasonBusy
	case errors.Is(err, actuation.ErrUnknownSequence):
		return ReasonUnknown
	default:
		return ReasonOther
	}
}
