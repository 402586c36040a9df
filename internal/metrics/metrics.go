// Package metrics exposes task and reload counters in the Prometheus text
// format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/sitepipe/internal/runner"
)

const namespace = "sitepipe"

// Result label values.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultPartial   = "partial"
	ResultCanceled  = "canceled"
)

// buckets for seconds resolutions of task durations
var buckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics records task executions and reloads on its own registry.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	reloads  prometheus.Counter
}

// New creates the collectors and registers them together with the Go
// runtime collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Completed task and composite runs by result.",
		}, []string{"task", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time taken by a task or composite run.",
			Buckets:   buckets,
		}, []string{"task"}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Reload notifications sent to browsers.",
		}),
	}
	m.registry.MustRegister(
		m.runs,
		m.duration,
		m.reloads,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReload counts one reload broadcast.
func (m *Metrics) ObserveReload() {
	m.reloads.Inc()
}

// OnExecutionStarted implements runner.ExecutionListener.
func (m *Metrics) OnExecutionStarted(*runner.Execution) {}

// OnExecutionCompleted implements runner.ExecutionListener.
func (m *Metrics) OnExecutionCompleted(exec *runner.Execution) {
	m.runs.WithLabelValues(exec.Name, Result(exec)).Inc()
	m.duration.WithLabelValues(exec.Name).Observe(exec.Duration().Seconds())
}

// Result classifies a completed execution. A run whose only errors were
// non-fatal is partial.
func Result(exec *runner.Execution) string {
	switch exec.State() {
	case runner.ExecutionStateSucceeded:
		return ResultSucceeded
	case runner.ExecutionStateCanceled:
		return ResultCanceled
	}
	if runner.IsNonFatal(exec.Err()) {
		return ResultPartial
	}
	return ResultFailed
}

var _ runner.ExecutionListener = (*Metrics)(nil)
