// Package metrics holds the Prometheus collectors for session activity and
// the HTTP adapter. Collectors register on the registry passed to New so
// tests can use an isolated one.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tabstep"

// Metrics is the set of collectors. A nil *Metrics records nothing.
type Metrics struct {
	ActionsTotal     *prometheus.CounterVec
	CleaningTotal    *prometheus.CounterVec
	EditsTotal       *prometheus.CounterVec
	HistoryTotal     *prometheus.CounterVec
	ImportedTotal    *prometheus.CounterVec
	MLDuration       *prometheus.HistogramVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	WorkingTableRows prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		ActionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "actions_logged_total",
			Help:      "Actions appended to the action log by type",
		}, []string{"action_type"}),
		CleaningTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cleaning_operations_total",
			Help:      "Cleaning requests by operation and outcome",
		}, []string{"operation", "status"}),
		EditsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "table_edits_total",
			Help:      "Direct edits of the working table by kind and outcome",
		}, []string{"kind", "status"}),
		HistoryTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "steps_total",
			Help:      "Undo and redo requests by outcome",
		}, []string{"direction", "status"}),
		ImportedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "imported_actions_total",
			Help:      "Actions recovered from imported scripts by type",
		}, []string{"action_type"}),
		MLDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ml",
			Name:      "run_duration_seconds",
			Help:      "Model training and evaluation time",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"task", "status"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		WorkingTableRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "working_table_rows",
			Help:      "Rows in the working table after the last write",
		}),
		gatherer: reg,
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ActionLogged counts one appended entry.
func (m *Metrics) ActionLogged(actionType string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(actionType).Inc()
}

// Cleaning counts one cleaning request.
func (m *Metrics) Cleaning(op string, err error) {
	if m == nil {
		return
	}
	m.CleaningTotal.WithLabelValues(op, status(err)).Inc()
}

// Edit counts one direct edit. kind is "cell" or "table".
func (m *Metrics) Edit(kind string, err error) {
	if m == nil {
		return
	}
	m.EditsTotal.WithLabelValues(kind, status(err)).Inc()
}

// HistoryStep counts an undo or redo. ok is false when there was nothing to
// step to.
func (m *Metrics) HistoryStep(direction string, ok bool) {
	if m == nil {
		return
	}
	s := "ok"
	if !ok {
		s = "empty"
	}
	m.HistoryTotal.WithLabelValues(direction, s).Inc()
}

// Imported counts actions recovered from a script.
func (m *Metrics) Imported(actionType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImportedTotal.WithLabelValues(actionType).Add(float64(n))
}

// MLRun observes one model run.
func (m *Metrics) MLRun(task string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.MLDuration.WithLabelValues(task, status(err)).Observe(d.Seconds())
}

// Request observes one HTTP request.
func (m *Metrics) Request(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TableRows sets the working table size gauge.
func (m *Metrics) TableRows(n int) {
	if m == nil {
		return
	}
	m.WorkingTableRows.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
