// Package metrics owns the Prometheus registry and the collectors the
// service reports.
package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p-n-ai/pai-progress/internal/roster"
)

// Metrics groups the collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	reloads         *prometheus.CounterVec
	students        prometheus.Gauge
	lastReload      prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	exports         *prometheus.CounterVec
}

// New registers the collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "progress_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	reloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_roster_reloads_total",
		Help: "Roster reload attempts by outcome",
	}, []string{"result"})

	students := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "progress_roster_students",
		Help: "Students in the current roster snapshot",
	})

	lastReload := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "progress_roster_last_reload_timestamp_seconds",
		Help: "Unix time of the last successful roster reload",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_cache_lookups_total",
		Help: "Summary cache lookups by result",
	}, []string{"result"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_exports_total",
		Help: "Rendered exports by format",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "progress_goroutines",
		Help: "Number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, reloads, students, lastReload, cacheLookups, exports, goroutines)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		reloads:         reloads,
		students:        students,
		lastReload:      lastReload,
		cacheLookups:    cacheLookups,
		exports:         exports,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one handled request. route is the mux pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
	m.requestTotal.WithLabelValues(method, route, code).Inc()
}

// RecordCacheLookup counts a summary cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordExport counts a rendered export.
func (m *Metrics) RecordExport(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}

// LogEvent makes Metrics a roster.EventLogger so reloads are counted as
// they happen.
func (m *Metrics) LogEvent(event roster.Event) error {
	if m == nil {
		return nil
	}
	switch event.Type {
	case roster.EventReloaded:
		m.reloads.WithLabelValues("success").Inc()
		m.students.Set(float64(event.Students))
		at := event.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		m.lastReload.Set(float64(at.Unix()))
	case roster.EventReloadFailed:
		m.reloads.WithLabelValues("failure").Inc()
	}
	return nil
}

// Middleware wraps next and observes every request under route.
func (m *Metrics) Middleware(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.ObserveRequest(r.Method, route, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
