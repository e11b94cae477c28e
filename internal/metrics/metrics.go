// Package metrics holds the Prometheus collectors for ingestion, alerting, analysis and HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsIngested   *prometheus.CounterVec
	EventsRejected   *prometheus.CounterVec
	AlertsDispatched *prometheus.CounterVec
	AnalyzerRuns     *prometheus.CounterVec
	AnalyzerDuration *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New registers every collector on a fresh registry that also carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		EventsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyber_monitor_events_ingested_total",
			Help: "Events stored, by kind and severity",
		}, []string{"kind", "severity"}),
		EventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyber_monitor_events_rejected_total",
			Help: "Events rejected by validation, by field",
		}, []string{"field"}),
		AlertsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyber_monitor_alerts_total",
			Help: "Alert emails attempted, by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		AnalyzerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyber_monitor_analyzer_runs_total",
			Help: "Analyzer engine invocations, by engine and outcome",
		}, []string{"engine", "outcome"}),
		AnalyzerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cyber_monitor_analyzer_duration_seconds",
			Help:    "Wall time of analyzer engine invocations",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"engine"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyber_monitor_http_requests_total",
			Help: "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cyber_monitor_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// EventIngested counts one stored event.
func (m *Metrics) EventIngested(kind, severity string) {
	if m == nil {
		return
	}
	m.EventsIngested.WithLabelValues(kind, severity).Inc()
}

// EventRejected counts one event rejected on field.
func (m *Metrics) EventRejected(field string) {
	if m == nil {
		return
	}
	m.EventsRejected.WithLabelValues(field).Inc()
}

// AlertDispatched counts one send attempt. trigger is "manual", "severity" or "test".
func (m *Metrics) AlertDispatched(trigger string, err error) {
	if m == nil {
		return
	}
	m.AlertsDispatched.WithLabelValues(trigger, outcome(err)).Inc()
}

// AnalyzerRun records one engine invocation. result is "ok" or the failure kind.
func (m *Metrics) AnalyzerRun(engine, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalyzerRuns.WithLabelValues(engine, result).Inc()
	m.AnalyzerDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// Middleware records request counts and latency labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
