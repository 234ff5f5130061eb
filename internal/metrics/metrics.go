// Package metrics exposes Tranquil's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tranquil"

// Session outcome labels for tranquil_breathing_sessions_total.
const (
	SessionStarted   = "started"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// Metrics holds the application collectors and the registry serving them.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	assessments     *prometheus.CounterVec
	breathing       *prometheus.CounterVec
	breathingActive prometheus.Gauge
	remindersSent   *prometheus.CounterVec
	referralsSent   *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "path"},
		),
		assessments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assessments_total",
				Help:      "Stress check-ins recorded, by severity band.",
			},
			[]string{"band"},
		),
		breathing: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breathing_sessions_total",
				Help:      "Breathing sessions by outcome.",
			},
			[]string{"status"},
		),
		breathingActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breathing_sessions_active",
				Help:      "Breathing sessions currently ticking.",
			},
		),
		remindersSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_sent_total",
				Help:      "Check-in reminders dispatched.",
			},
			[]string{"success"},
		),
		referralsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "referrals_sent_total",
				Help:      "Professional referral notifications dispatched.",
			},
			[]string{"success"},
		),
	}
	m.Registry = prometheus.NewRegistry()
	m.Registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.assessments,
		m.breathing,
		m.breathingActive,
		m.remindersSent,
		m.referralsSent,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordAssessment counts a recorded check-in.
func (m *Metrics) RecordAssessment(band string) {
	m.assessments.WithLabelValues(band).Inc()
}

// RecordSession counts a breathing session outcome and keeps the active gauge in step.
func (m *Metrics) RecordSession(status string) {
	m.breathing.WithLabelValues(status).Inc()
	switch status {
	case SessionStarted:
		m.breathingActive.Inc()
	case SessionCompleted, SessionAbandoned:
		m.breathingActive.Dec()
	}
}

// RecordReminder counts a reminder dispatch.
func (m *Metrics) RecordReminder(success bool) {
	m.remindersSent.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordReferral counts a referral dispatch.
func (m *Metrics) RecordReferral(success bool) {
	m.referralsSent.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// InstrumentHandler wraps next with HTTP request metrics.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = canonicalPath(r.URL.Path)
		}
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.written = true
	return r.ResponseWriter.Write(b)
}

// canonicalPath keeps the first path segment so IDs do not explode label cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + strings.SplitN(trimmed, "/", 2)[0]
}
