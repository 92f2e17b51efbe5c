package elastic

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/healthmon/internal/repo"
)

type mockRoundTripper struct {
	Status int
	Body   string
	Err    error
	Reqs   []*http.Request
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.Reqs = append(m.Reqs, req)
	if m.Err != nil {
		return nil, m.Err
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: m.Status,
		Body:       io.NopCloser(strings.NewReader(m.Body)),
		Header:     header,
	}, nil
}

func newMockSink(t *testing.T, rt *mockRoundTripper) *Sink {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{Transport: rt})
	require.NoError(t, err)
	return NewSink(es, "")
}

func TestSink_Write(t *testing.T) {
	ts := time.Date(2024, 5, 17, 8, 30, 0, 0, time.UTC)
	rec := repo.Record{Timestamp: ts, RunID: "run", CycleID: 12}

	testCases := []struct {
		name      string
		rt        *mockRoundTripper
		expectErr string
	}{
		{
			name: "Success Should index into daily index",
			rt:   &mockRoundTripper{Status: http.StatusCreated, Body: `{"result":"created"}`},
		},
		{
			name:      "Error Should surface es error type",
			rt:        &mockRoundTripper{Status: http.StatusBadRequest, Body: `{"error":{"type":"mapper_parsing_exception","reason":"bad field"}}`},
			expectErr: "mapper_parsing_exception",
		},
		{
			name:      "Error Should wrap transport failure",
			rt:        &mockRoundTripper{Err: errors.New("connection reset")},
			expectErr: "connection reset",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newMockSink(t, tc.rt)
			err := s.Write(context.Background(), rec)
			if tc.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectErr)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, tc.rt.Reqs)
			last := tc.rt.Reqs[len(tc.rt.Reqs)-1]
			assert.Equal(t, "/health-snapshots-2024.05.17/_doc/run-12", last.URL.Path)
		})
	}
}

func TestSink_IndexName(t *testing.T) {
	s := NewSink(nil, "hm")
	assert.Equal(t, "hm-2023.12.31", s.IndexName(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)))
	assert.NoError(t, s.Close())
}
