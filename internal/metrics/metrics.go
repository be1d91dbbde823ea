package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "active_sessions",
		Help:      "Number of swarm sessions currently held by the registry.",
	})

	ActiveReaders = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "active_readers",
		Help:      "Number of in-flight byte streams across all sessions.",
	})

	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "sessions_created_total",
		Help:      "Total swarm sessions created.",
	})

	SessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "sessions_evicted_total",
		Help:      "Total swarm sessions destroyed by idle eviction.",
	})

	SessionCreateTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "session_create_timeouts_total",
		Help:      "Total session creations abandoned waiting for swarm metadata.",
	})

	StreamedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "streamed_bytes_total",
		Help:      "Total bytes relayed to streaming clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveSessions,
		ActiveReaders,
		SessionsCreated,
		SessionsEvicted,
		SessionCreateTimeouts,
		StreamedBytes,
	)
}
