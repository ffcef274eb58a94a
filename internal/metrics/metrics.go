package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "supportbot_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	// Replies counts generated replies by source: greeting, faq, llm or fallback.
	Replies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_replies_total",
			Help: "Total number of replies by source",
		},
		[]string{"source"},
	)

	CompletionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "supportbot_completion_latency_seconds",
			Help: "Remote completion latency in seconds",
		},
	)

	CompletionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportbot_completion_failures_total",
			Help: "Total number of failed remote completions",
		},
	)

	Escalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportbot_escalations_total",
			Help: "Total number of replies flagged for human escalation",
		},
	)

	ActiveWebsockets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportbot_active_websockets",
			Help: "Number of open websocket chat connections",
		},
	)
)
