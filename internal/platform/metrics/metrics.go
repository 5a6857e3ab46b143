package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route pattern
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csi_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimiterRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csi_rate_limiter_rejections_total",
			Help: "Total number of requests rejected by rate limiter",
		},
	)

	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csi_sessions_created_total",
			Help: "Session creation calls, split by whether an active session was reused",
		},
		[]string{"already_active"},
	)

	Heartbeats = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csi_heartbeats_total",
			Help: "Heartbeats processed",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csi_sessions_expired_total",
			Help: "Sessions whose remaining time reached zero on a heartbeat",
		},
	)

	FocusLost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csi_focus_lost_total",
			Help: "Focus-loss signals by client reason",
		},
		[]string{"reason"},
	)

	SessionsFlagged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csi_sessions_flagged_total",
			Help: "Sessions transitioned to flagged",
		},
		[]string{"source"},
	)

	Answers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csi_answers_total",
			Help: "Answer submissions by lock type and outcome",
		},
		[]string{"type", "outcome"},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csi_session_events_processed_total",
			Help: "Session events handled by the event worker",
		},
		[]string{"type", "result"},
	)
)
