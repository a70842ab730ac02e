// Package prom implements scope.Observer by registering Prometheus
// metrics against a prometheus.Registerer, so a process using the scope
// library gets task/scope counters and latency histograms for free.
package prom

import (
	"time"

	"github.com/kvxio/conc/scope"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a Prometheus-backed scope.Observer.
type Metrics struct {
	scopesCreated   prometheus.Counter
	scopesCancelled prometheus.Counter
	scopesClosed    prometheus.Counter
	scopeJoinWait   prometheus.Histogram

	tasksStarted  prometheus.Counter
	tasksFinished *prometheus.CounterVec // labeled by outcome: ok|error|panic
	activeTasks   prometheus.Gauge
	taskDuration  prometheus.Histogram
}

// New builds a Metrics observer and registers its collectors against reg.
// Pass prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to publish alongside the process default.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		scopesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scope", Name: "created_total",
			Help: "Scopes opened via Scoped or Open.",
		}),
		scopesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scope", Name: "cancelled_total",
			Help: "Scopes soft-cancelled via CancelScope.",
		}),
		scopesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scope", Name: "closed_total",
			Help: "Scopes that completed their close protocol.",
		}),
		scopeJoinWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scope", Name: "join_wait_seconds",
			Help:    "Time Wait spent blocked before returning.",
			Buckets: prometheus.DefBuckets,
		}),
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "task", Name: "started_total",
			Help: "Tasks that began running (past the spawn protocol).",
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "task", Name: "finished_total",
			Help: "Tasks that finished, labeled by outcome.",
		}, []string{"outcome"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "task", Name: "active",
			Help: "Tasks currently running.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "task", Name: "duration_seconds",
			Help:    "Task body execution time.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.scopesCreated, m.scopesCancelled, m.scopesClosed, m.scopeJoinWait,
		m.tasksStarted, m.tasksFinished, m.activeTasks, m.taskDuration,
	)
	return m
}

// ScopeCreated records scope creation.
func (m *Metrics) ScopeCreated(*scope.Ctx) { m.scopesCreated.Inc() }

// ScopeCancelled records a soft cancellation.
func (m *Metrics) ScopeCancelled(_ *scope.Ctx, _ error) { m.scopesCancelled.Inc() }

// ScopeClosed records a completed close protocol.
func (m *Metrics) ScopeClosed(_ *scope.Ctx, _ error) { m.scopesClosed.Inc() }

// ScopeJoined records a Wait call's blocked duration.
func (m *Metrics) ScopeJoined(_ *scope.Ctx, wait time.Duration) {
	m.scopeJoinWait.Observe(wait.Seconds())
}

// TaskStarted increments active and started counters.
func (m *Metrics) TaskStarted(*scope.Ctx) {
	m.activeTasks.Inc()
	m.tasksStarted.Inc()
}

// TaskFinished decrements active, labels the outcome, and observes duration.
func (m *Metrics) TaskFinished(_ *scope.Ctx, dur time.Duration, err error, panicked bool) {
	m.activeTasks.Dec()
	switch {
	case panicked:
		m.tasksFinished.WithLabelValues("panic").Inc()
	case err != nil:
		m.tasksFinished.WithLabelValues("error").Inc()
	default:
		m.tasksFinished.WithLabelValues("ok").Inc()
	}
	m.taskDuration.Observe(dur.Seconds())
}

var _ scope.Observer = (*Metrics)(nil)
