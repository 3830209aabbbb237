package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rateLimited *prometheus.CounterVec
	aiSource    *prometheus.CounterVec
	registry    *prometheus.Registry
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxstudy",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxstudy",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxstudy",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by service.",
		}, []string{"service"}),
		aiSource: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxstudy",
			Name:      "ai_responses_total",
			Help:      "Chat responses by producing AI provider.",
		}, []string{"source"}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Request records one served request.
func (m *Metrics) Request(route, status string, seconds float64) {
	m.requests.WithLabelValues(route, status).Inc()
	m.duration.WithLabelValues(route).Observe(seconds)
}

// RateLimited records a rejected request.
func (m *Metrics) RateLimited(service string) {
	m.rateLimited.WithLabelValues(service).Inc()
}

// AIResponse records which provider answered a chat request.
func (m *Metrics) AIResponse(source string) {
	m.aiSource.WithLabelValues(source).Inc()
}
