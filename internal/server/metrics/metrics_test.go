package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestNew_RegistersAndCounts(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Connections.Inc()
	m.Messages.Add(2)
	m.RejectedSends.WithLabelValues("rate_limited").Inc()
	m.ObserveRequest("/chat/messages", "GET", 200, 10*time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, "gophchat_live_connections 1")
	assert.Contains(t, out, "gophchat_messages_total 2")
	assert.Contains(t, out, `gophchat_rejected_sends_total{reason="rate_limited"} 1`)
	assert.Contains(t, out, `gophchat_http_requests_total{code="200",method="GET",route="/chat/messages"} 1`)
	assert.Contains(t, out, `gophchat_http_request_duration_seconds_count{route="/chat/messages"} 1`)
}

func TestNew_TwoRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
