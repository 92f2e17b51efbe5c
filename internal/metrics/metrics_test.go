package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/healthmon/internal/domain"
)

func TestObserveCycle(t *testing.T) {
	m := New()
	snap := domain.HealthSnapshot{
		Results: map[string]domain.ProbeResult{
			"cache":  {Status: domain.StatusUnhealthy, LatencyMS: 20},
			"system": {Status: domain.StatusHealthy, LatencyMS: 5},
		},
		Derived: domain.Derived{SuccessRate: 0.5, AverageLatencyMS: 12.5},
	}
	m.ObserveCycle(snap, 30*time.Millisecond)
	snap.Derived.SuccessRate = 1
	m.ObserveCycle(snap, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.successfulCycles))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.probeStatus.WithLabelValues("cache")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.probeStatus.WithLabelValues("system")))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.averageLatency))
}

func TestPersistenceCounters(t *testing.T) {
	m := New()
	m.Persisted()
	m.Persisted()
	m.PersistFailed()
	m.PersistDropped()
	m.SetOpenAlerts(3)
	m.AlertRaised(domain.SeverityHigh)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.persisted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistDropped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.openAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsRaised.WithLabelValues("high")))
}

func TestHandlerServesPrivateRegistry(t *testing.T) {
	m := New()
	m.SetOpenAlerts(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "healthmon_open_alerts 1"))
}
