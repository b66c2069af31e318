package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/toursync/toursync-admin/internal/jobs"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	sessionRefreshes *prometheus.CounterVec
	changelogEntries *prometheus.CounterVec
	jobsOnce         sync.Once
	jobs             *jobmetrics.Metrics
}

// NewMetrics initialises the registry and the application collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toursync_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toursync_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toursync_session_refresh_total",
		Help: "Background session refreshes partitioned by result.",
	}, []string{"result"})
	changelog := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toursync_changelog_entries_total",
		Help: "Change log entries partitioned by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(
		requests, duration, refreshes, changelog,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		sessionRefreshes: refreshes,
		changelogEntries: changelog,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSessionRefresh counts a finished background refresh.
func (m *Metrics) ObserveSessionRefresh(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sessionRefreshes.WithLabelValues(result).Inc()
}

// ObserveChangelog counts a change log entry outcome.
func (m *Metrics) ObserveChangelog(outcome string) {
	if m == nil {
		return
	}
	m.changelogEntries.WithLabelValues(outcome).Inc()
}

// Jobs exposes the background job collectors. They are registered on first
// use, so only processes that run jobs export them.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	m.jobsOnce.Do(func() {
		m.jobs = jobmetrics.NewMetrics(m.registry)
	})
	return m.jobs
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
