package present

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/healthmon/internal/domain"
)

func init() { color.NoColor = true }

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestBuild_Pending(t *testing.T) {
	s := Build(nil, domain.EngineState{Phase: domain.PhaseRunning}, nil)
	assert.True(t, s.Pending)
	assert.NotNil(t, s.Probes)
	assert.NotNil(t, s.RecentAlerts)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s))
	assert.Contains(t, buf.String(), "waiting for first cycle")
}

func TestBuild_FromSnapshot(t *testing.T) {
	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fixedNow(t, started.Add(90*time.Second))

	snap := &domain.HealthSnapshot{
		CycleID: 3,
		TakenAt: started.Add(80 * time.Second),
		Results: map[string]domain.ProbeResult{
			"system": {Status: domain.StatusDegraded, LatencyMS: 201, Detail: map[string]any{
				domain.DetailCPUUsagePct: 12.5, domain.DetailMemoryUsagePct: 85.0,
			}},
			"cache": {Status: domain.StatusUnhealthy, LatencyMS: 10000, Detail: map[string]any{
				domain.DetailTimeout: true, domain.DetailError: "context deadline exceeded",
			}},
		},
		Derived: domain.Derived{SuccessRate: 0, AverageLatencyMS: 5100.5},
	}
	recent := []domain.Alert{
		{ID: "system/memory", RaisedAt: started},
		{ID: "coordination/success_rate", RaisedAt: started.Add(time.Second)},
	}
	s := Build(snap, domain.EngineState{StartedAt: started, CycleCount: 4}, recent)

	assert.False(t, s.Pending)
	assert.Equal(t, 90.0, s.UptimeSeconds)
	require.Len(t, s.Probes, 2)
	assert.Equal(t, "cache", s.Probes[0].Name, "probes are sorted by name")
	assert.Equal(t, []string{"timed out"}, s.Probes[0].Highlights)
	assert.Equal(t, "context deadline exceeded", s.Probes[0].Error)
	assert.Equal(t, []string{"cpu 12.5%", "mem 85%"}, s.Probes[1].Highlights)
	assert.Equal(t, "coordination/success_rate", s.RecentAlerts[0].ID, "newest alert first")

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"cycle_count":4`)
}

func TestRender_ShowsProbesAndAlerts(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cleared := at.Add(time.Minute)
	s := Status{
		RunID:       "0123456789abcdef",
		Phase:       domain.PhaseRunning,
		CycleCount:  2,
		SuccessRate: 0.5,
		TakenAt:     at,
		Probes: []ProbeView{
			{Name: "cache", Status: domain.StatusUnhealthy, LatencyMS: 3, Error: "refused"},
			{Name: "system", Status: domain.StatusHealthy, LatencyMS: 5, Highlights: []string{"cpu 10%"}},
		},
		RecentAlerts: []domain.Alert{
			{ID: "system/cpu", Severity: domain.SeverityMedium, Message: "cpu high", RaisedAt: at, ClearedAt: &cleared},
		},
		PersistFailures: 1,
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s))
	out := buf.String()

	assert.Contains(t, out, "run 01234567")
	assert.Contains(t, out, "success 50.0%")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "✖ cache")
	assert.Contains(t, out, "refused")
	assert.Contains(t, out, "cpu 10%")
	assert.True(t, strings.Contains(out, "12:01:00 cleared"), out)
}

func TestRender_MissingData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Status{}))
	assert.Contains(t, buf.String(), "run -")
	assert.Contains(t, buf.String(), "no alerts")
}
