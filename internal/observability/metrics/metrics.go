package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics exposes Prometheus instruments for the HTTP surface and the
// invitation and approval workflows.
type HTTPMetrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inflight  prometheus.Gauge
	workflows *prometheus.CounterVec
}

func NewHTTPMetrics() *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitedock_http_requests_total",
		Help: "Counts HTTP requests by method, route, and status.",
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitedock_http_request_duration_seconds",
		Help:    "HTTP request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sitedock_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served.",
	})

	workflows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitedock_workflow_events_total",
		Help: "Counts invitation and approval workflow events by kind and outcome.",
	}, []string{"kind", "outcome"})

	prometheus.MustRegister(requests, duration, inflight, workflows)

	return &HTTPMetrics{
		requests:  requests,
		duration:  duration,
		inflight:  inflight,
		workflows: workflows,
	}
}

// ObserveWorkflowEvent records one workflow transition, e.g.
// ("invitation", "accepted") or ("approval", "rejected").
func (m *HTTPMetrics) ObserveWorkflowEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.workflows.WithLabelValues(sanitizeLabel(kind), sanitizeLabel(outcome)).Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		m.inflight.Inc()
		c.Next()
		m.inflight.Dec()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requests.WithLabelValues(method, route, status).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func sanitizeLabel(val string) string {
	if strings.TrimSpace(val) == "" {
		return "unknown"
	}
	return val
}
