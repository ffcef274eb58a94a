package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegistered(t *testing.T) {
	RequestCount.WithLabelValues("GET", "/healthz", "200").Inc()
	RequestDuration.WithLabelValues("GET", "/healthz").Observe(0.01)
	Replies.WithLabelValues("faq").Inc()
	CompletionLatency.Observe(0.2)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"supportbot_http_requests_total",
		"supportbot_http_request_duration_seconds",
		"supportbot_replies_total",
		"supportbot_completion_latency_seconds",
		"supportbot_completion_failures_total",
		"supportbot_escalations_total",
		"supportbot_active_websockets",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}
