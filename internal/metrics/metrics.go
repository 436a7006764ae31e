// Package metrics exposes the proxy's operational counters and gauges over
// Prometheus: request outcomes, per-kind transform counts, and the permit
// wait times and free-permit count of the transform admission semaphore. Grounded on
// internal/edge/metrics/prometheus_metrics.go (teacher), trimmed down from
// its render-farm/cache vocabulary to this proxy's own pipeline stages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics collects the proxy's Prometheus series. A nil *Metrics is valid
// and every method on it is a no-op, so callers that don't configure a
// metrics listener can leave the field unset instead of threading an
// enabled bool through the pipeline.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	transformsTotal  *prometheus.CounterVec
	transformErrors  *prometheus.CounterVec
	permitWait       *prometheus.HistogramVec
	permitTimeouts   *prometheus.CounterVec
	permitsAvailable prometheus.Gauge

	handler fasthttp.RequestHandler
}

// New builds a Metrics registered against a fresh prometheus.Registry, so
// multiple proxy instances in the same process (e.g. under test) never
// collide on prometheus.DefaultRegisterer.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of requests handled, by upstream status class.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "request_duration_seconds",
			Help:      "Time to fully handle one request, forward included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		transformsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "transforms_total",
			Help:      "Total number of response bodies transformed, by kind.",
		}, []string{"kind"}),
		transformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "transform_errors_total",
			Help:      "Total number of transforms that fell back to passing the body through unmodified.",
		}, []string{"kind"}),
		permitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "permit_wait_seconds",
			Help:      "Time spent waiting for a transform-admission permit.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"priority"}),
		permitTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "permit_timeouts_total",
			Help:      "Total number of permit acquisitions that were canceled before a slot freed up.",
		}, []string{"priority"}),
		permitsAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "permits_available",
			Help:      "Current free transform-admission permits.",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.transformsTotal,
		m.transformErrors,
		m.permitWait,
		m.permitTimeouts,
		m.permitsAvailable,
	)

	m.handler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return m
}

// Handler serves this collector's metrics over HTTP in the Prometheus
// exposition format.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	if m == nil {
		return func(ctx *fasthttp.RequestCtx) { ctx.Error("metrics disabled", fasthttp.StatusNotFound) }
	}
	return m.handler
}

// RecordRequest records one handled request's outcome and total latency.
func (m *Metrics) RecordRequest(statusClass string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(statusClass).Inc()
	m.requestDuration.WithLabelValues(statusClass).Observe(d.Seconds())
}

// RecordTransform records one successful body transform of the given kind
// ("html" or "image").
func (m *Metrics) RecordTransform(kind string) {
	if m == nil {
		return
	}
	m.transformsTotal.WithLabelValues(kind).Inc()
}

// RecordTransformError records a transform of the given kind that failed
// and fell back to passing the original body through unmodified.
func (m *Metrics) RecordTransformError(kind string) {
	if m == nil {
		return
	}
	m.transformErrors.WithLabelValues(kind).Inc()
}

// RecordPermitWait records how long a transform-admission Acquire call took
// for the given priority ("high" or "low") before it either succeeded or
// was canceled.
func (m *Metrics) RecordPermitWait(priority string, d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.permitWait.WithLabelValues(priority).Observe(d.Seconds())
	if timedOut {
		m.permitTimeouts.WithLabelValues(priority).Inc()
	}
}

// SetPermitsAvailable reports the semaphore's current free-permit count.
func (m *Metrics) SetPermitsAvailable(n int) {
	if m == nil {
		return
	}
	m.permitsAvailable.Set(float64(n))
}

// StatusClass converts an HTTP status code to Prometheus's conventional
// "2xx"/"3xx"/... label, matching the teacher's getStatusCodeRange.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
