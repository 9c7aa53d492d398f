// Package metrics exposes the Prometheus collectors recorded by the HTTP layer
// and the orchestrators. All methods are safe to call on a nil *Metrics so
// tests and tools can run without a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the application's collectors and the registry they are
// registered with.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	playlists        *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	compensations    *prometheus.CounterVec
	logins           *prometheus.CounterVec
}

// New creates the collectors on a fresh registry together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodplaylist_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moodplaylist_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		playlists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodplaylist_playlists_created_total",
			Help: "Playlist creation attempts by path (real or mock) and outcome.",
		}, []string{"path", "outcome"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodplaylist_provider_failures_total",
			Help: "Failed Spotify calls by step.",
		}, []string{"step"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodplaylist_compensations_total",
			Help: "Remote playlist deletions after a failed creation, by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodplaylist_logins_total",
			Help: "Login attempts by method (local, spotify) and outcome.",
		}, []string{"method", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.playlists, m.providerFailures, m.compensations, m.logins,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

// PlaylistCreated records the outcome of a playlist creation on path.
func (m *Metrics) PlaylistCreated(path, outcome string) {
	if m == nil {
		return
	}
	m.playlists.WithLabelValues(path, outcome).Inc()
}

// ProviderFailure records a failed Spotify call at step.
func (m *Metrics) ProviderFailure(step string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(step).Inc()
}

// Compensation records a remote playlist clean-up attempt.
func (m *Metrics) Compensation(outcome string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(outcome).Inc()
}

// Login records a login attempt.
func (m *Metrics) Login(method, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(method, outcome).Inc()
}
