package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/healthmon/internal/alert"
	"github.com/hamed0406/healthmon/internal/domain"
)

// Sender delivers one formatted message.
type Sender interface {
	Send(ctx context.Context, title, text string) error
}

// Alerts turns alert transitions into messages for a single Sender.
// Transitions below MinSeverity are not sent.
type Alerts struct {
	sender      Sender
	MinSeverity domain.Severity
}

func NewAlerts(s Sender, min domain.Severity) *Alerts {
	return &Alerts{sender: s, MinSeverity: min}
}

func rank(s domain.Severity) int {
	switch s {
	case domain.SeverityHigh:
		return 2
	case domain.SeverityMedium:
		return 1
	}
	return 0
}

// Notify sends one message per batch. An empty batch after filtering sends
// nothing.
func (a *Alerts) Notify(ctx context.Context, transitions []alert.Transition) error {
	var raised, cleared []domain.Alert
	for _, t := range transitions {
		if rank(t.Alert.Severity) < rank(a.MinSeverity) {
			continue
		}
		if t.Kind == alert.Raised {
			raised = append(raised, t.Alert)
		} else {
			cleared = append(cleared, t.Alert)
		}
	}
	if len(raised) == 0 && len(cleared) == 0 {
		return nil
	}

	title := "🟢 Alerts cleared"
	if len(raised) > 0 {
		title = fmt.Sprintf("🔴 %d alert(s) raised", len(raised))
	}

	var b strings.Builder
	for _, r := range raised {
		fmt.Fprintf(&b, "RAISED [%s] %s: %s (%s)\n", r.Severity, r.ID, r.Message, r.RaisedAt.Format(time.RFC3339))
	}
	for _, c := range cleared {
		open := ""
		if c.ClearedAt != nil {
			open = " after " + c.ClearedAt.Sub(c.RaisedAt).Round(time.Second).String()
		}
		fmt.Fprintf(&b, "CLEARED [%s] %s%s\n", c.Severity, c.ID, open)
	}
	if err := a.sender.Send(ctx, title, strings.TrimRight(b.String(), "\n")); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
