package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposition(t *testing.T) {
	m := New()

	m.RequestsTotal.WithLabelValues("dashboard", "ok").Inc()
	m.CacheHitsTotal.Inc()
	m.CostUSDTotal.Add(0.25)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "orkestra_requests_total")
	assert.Contains(t, body, "orkestra_cache_hits_total 1")
	assert.Contains(t, body, "orkestra_cost_usd_total 0.25")
}
