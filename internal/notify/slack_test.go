package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/healthmon/internal/alert"
	"github.com/hamed0406/healthmon/internal/domain"
)

func TestSlack_OK(t *testing.T) {
	var got, user string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		user = payload["username"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL, "healthmon")
	if s == nil {
		t.Fatal("expected slack client")
	}
	err := s.Send(context.Background(), "Title", "Hello")
	if err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got != "*Title*\nHello" {
		t.Fatalf("payload not as expected: %q", got)
	}
	if user != "healthmon" {
		t.Fatalf("username not sent: %q", user)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL, "")
	err := s.Send(context.Background(), "X", "Y")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected error on non-2xx, got %v", err)
	}
}

func TestSlack_Disabled(t *testing.T) {
	if NewSlack("", "healthmon") != nil {
		t.Fatalf("empty webhook should disable slack")
	}
	var s *Slack
	if err := s.Send(context.Background(), "X", "Y"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

type captureSender struct {
	calls       int
	title, text string
}

func (c *captureSender) Send(_ context.Context, title, text string) error {
	c.calls++
	c.title, c.text = title, text
	return nil
}

func TestAlerts_FormatsRaiseAndClear(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	raise := domain.Alert{ID: "system/memory", Severity: domain.SeverityMedium, Message: "memory usage 85.0% above 80.0%", RaisedAt: at}
	cleared := domain.Alert{ID: "performance/latency", Severity: domain.SeverityMedium, RaisedAt: at}.Cleared(at.Add(90 * time.Second))

	c := &captureSender{}
	err := NewAlerts(c, domain.SeverityLow).Notify(context.Background(), []alert.Transition{
		{Kind: alert.Raised, Alert: raise},
		{Kind: alert.Cleared, Alert: cleared},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.Contains(c.title, "1 alert(s) raised") {
		t.Fatalf("unexpected title %q", c.title)
	}
	if !strings.Contains(c.text, "RAISED [medium] system/memory") || !strings.Contains(c.text, "CLEARED [medium] performance/latency after 1m30s") {
		t.Fatalf("unexpected text %q", c.text)
	}
}

func TestAlerts_FiltersBelowMinSeverity(t *testing.T) {
	c := &captureSender{}
	n := NewAlerts(c, domain.SeverityHigh)
	err := n.Notify(context.Background(), []alert.Transition{
		{Kind: alert.Raised, Alert: domain.Alert{ID: "system/cpu", Severity: domain.SeverityMedium}},
	})
	if err != nil || c.calls != 0 {
		t.Fatalf("medium alert should be filtered, calls=%d err=%v", c.calls, err)
	}
}
