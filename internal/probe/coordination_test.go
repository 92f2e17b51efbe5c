package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/healthmon/internal/domain"
)

func TestCoordinationProbe_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer s.Close()

	p := NewCoordinationProbe(s.URL, 2*time.Second)
	out := p.Run(context.Background())
	if out.Status != domain.StatusHealthy {
		t.Fatalf("want healthy, got %+v", out)
	}
	if out.Detail[domain.DetailHTTPStatus] != 200 {
		t.Fatalf("want httpStatus 200, got %v", out.Detail[domain.DetailHTTPStatus])
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
}

func TestCoordinationProbe_Status500(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := NewCoordinationProbe(s.URL, 2*time.Second).Run(context.Background())
	if out.Status != domain.StatusUnhealthy {
		t.Fatalf("want unhealthy, got %+v", out)
	}
	msg, _ := out.Detail[domain.DetailError].(string)
	if !strings.HasPrefix(msg, "500") {
		t.Fatalf("want error to start with 500, got %q", msg)
	}
}

func TestCoordinationProbe_StreamsAndErrorRate(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","streams":{"orders":"healthy","billing":"degraded"},"errorRatePct":2.5}`))
	}))
	defer s.Close()

	out := NewCoordinationProbe(s.URL, 2*time.Second).Run(context.Background())
	if out.Status != domain.StatusDegraded {
		t.Fatalf("worst stream should win, got %s", out.Status)
	}
	if out.Detail["streams"] != 2 || out.Detail["unhealthyStreams"] != 1 {
		t.Fatalf("unexpected stream detail: %+v", out.Detail)
	}
	if v, ok := out.Float(domain.DetailErrorRatePct); !ok || v != 2.5 {
		t.Fatalf("want errorRatePct 2.5, got %v", out.Detail[domain.DetailErrorRatePct])
	}
}

func TestCoordinationProbe_MalformedBody(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer s.Close()

	out := NewCoordinationProbe(s.URL, 2*time.Second).Run(context.Background())
	if out.Status != domain.StatusUnhealthy {
		t.Fatalf("want unhealthy on malformed body, got %s", out.Status)
	}
	msg, _ := out.Detail[domain.DetailError].(string)
	if !strings.Contains(msg, "malformed") {
		t.Fatalf("want malformed error, got %q", msg)
	}
}

func TestCoordinationProbe_TimeoutReportsError(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewCoordinationProbe(s.URL, 50*time.Millisecond).Run(context.Background())
	if out.Status != domain.StatusUnhealthy {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if _, ok := out.Detail[domain.DetailHTTPStatus]; ok {
		t.Fatalf("want no http status on transport error")
	}
	if out.Detail[domain.DetailError] == "" {
		t.Fatalf("want non-empty error message")
	}
}
