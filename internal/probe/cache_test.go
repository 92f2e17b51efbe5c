package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/healthmon/internal/domain"
)

func TestCacheProbe_Run(t *testing.T) {
	testCases := []struct {
		name       string
		minHitRate float64
		mockSetup  func(mock redismock.ClientMock)
		wantStatus domain.Status
		check      func(t *testing.T, r domain.ProbeResult)
	}{
		{
			name: "Healthy with stats and memory",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectPing().SetVal("PONG")
				mock.ExpectInfo("stats").SetVal("# Stats\r\nkeyspace_hits:90\r\nkeyspace_misses:10\r\n")
				mock.ExpectInfo("memory").SetVal("# Memory\r\nused_memory:1048576\r\n")
				mock.ExpectInfo("clients").SetVal("# Clients\r\nconnected_clients:7\r\n")
			},
			wantStatus: domain.StatusHealthy,
			check: func(t *testing.T, r domain.ProbeResult) {
				rate, ok := r.Float("hitRatePct")
				require.True(t, ok)
				assert.InDelta(t, 90.0, rate, 1e-9)
				assert.Equal(t, uint64(1048576), r.Detail["usedMemoryBytes"])
				assert.Equal(t, 7, r.Detail["connectedClients"])
			},
		},
		{
			name:       "Degraded below hit rate floor",
			minHitRate: 95,
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectPing().SetVal("PONG")
				mock.ExpectInfo("stats").SetVal("keyspace_hits:50\r\nkeyspace_misses:50\r\n")
				mock.ExpectInfo("memory").SetVal("used_memory:10\r\n")
				mock.ExpectInfo("clients").SetVal("connected_clients:1\r\n")
			},
			wantStatus: domain.StatusDegraded,
		},
		{
			name: "Unhealthy when ping fails",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectPing().SetErr(errors.New("connection refused"))
			},
			wantStatus: domain.StatusUnhealthy,
			check: func(t *testing.T, r domain.ProbeResult) {
				assert.Contains(t, r.Detail[domain.DetailError], "connection refused")
			},
		},
		{
			name: "Degraded when info fails",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectPing().SetVal("PONG")
				mock.ExpectInfo("stats").SetErr(errors.New("NOPERM"))
			},
			wantStatus: domain.StatusDegraded,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			tc.mockSetup(mock)

			out := NewCacheProbe(db, tc.minHitRate).Run(context.Background())
			assert.Equal(t, tc.wantStatus, out.Status)
			assert.Equal(t, "cache", out.Name)
			if tc.check != nil {
				tc.check(t, out)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestParseInfo(t *testing.T) {
	kv := parseInfo("# Server\r\nredis_version:7.2.4\r\n\r\nuptime_in_seconds:42\r\n")
	assert.Equal(t, "7.2.4", kv["redis_version"])
	assert.Equal(t, "42", kv["uptime_in_seconds"])
	assert.Len(t, kv, 2)
}
