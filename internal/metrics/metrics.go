package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_http_requests_total",
			Help: "HTTP requests handled by the portal API.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "civic_http_request_duration_seconds",
			Help:    "Latency of HTTP requests handled by the portal API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// VotesTotal counts vote mutations by outcome: cast, flipped, repeated, removed.
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_votes_total",
			Help: "Vote operations applied by the voting engine.",
		},
		[]string{"outcome", "type"},
	)

	SessionsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "civic_sessions_reaped_total",
			Help: "Expired sessions removed by the reaper.",
		},
	)

	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_notifications_published_total",
			Help: "Email notifications queued, by kind and result.",
		},
		[]string{"kind", "result"},
	)
)
