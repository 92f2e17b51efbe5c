package present

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/hamed0406/healthmon/internal/domain"
)

var now = time.Now

type ProbeView struct {
	Name       string        `json:"name"`
	Status     domain.Status `json:"status"`
	LatencyMS  float64       `json:"latency_ms"`
	Highlights []string      `json:"highlights,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Status is the operator view of the engine. It is rendered to the terminal
// and served as JSON by the status API.
type Status struct {
	Pending              bool           `json:"pending"`
	RunID                string         `json:"run_id"`
	Phase                domain.Phase   `json:"phase"`
	StartedAt            time.Time      `json:"started_at"`
	UptimeSeconds        float64        `json:"uptime_seconds"`
	CycleCount           uint64         `json:"cycle_count"`
	SuccessfulCycleCount uint64         `json:"successful_cycle_count"`
	PersistedCount       uint64         `json:"persisted_count"`
	PersistFailures      uint64         `json:"persist_failures"`
	CycleID              uint64         `json:"cycle_id"`
	TakenAt              time.Time      `json:"taken_at,omitempty"`
	SuccessRate          float64        `json:"success_rate"`
	AverageLatencyMS     float64        `json:"average_latency_ms"`
	Probes               []ProbeView    `json:"probes"`
	RecentAlerts         []domain.Alert `json:"recent_alerts"`
}

// highlight keys in display order, with their label and unit.
var highlights = []struct {
	key, label, unit string
}{
	{domain.DetailCPUUsagePct, "cpu", "%"},
	{domain.DetailMemoryUsagePct, "mem", "%"},
	{domain.DetailErrorRatePct, "errors", "%"},
	{domain.DetailPoolUtilizationPct, "pool", "%"},
	{"hitRatePct", "hits", "%"},
	{"leaderlessPartitions", "leaderless", ""},
	{"unhealthyStreams", "unhealthy streams", ""},
	{domain.DetailAttempts, "attempts", ""},
}

// Build assembles the view from the latest snapshot (nil before the first
// cycle), the engine state and the recent ledger entries, oldest first.
func Build(snap *domain.HealthSnapshot, st domain.EngineState, recent []domain.Alert) Status {
	s := Status{
		Pending:              snap == nil,
		RunID:                st.RunID,
		Phase:                st.Phase,
		StartedAt:            st.StartedAt,
		CycleCount:           st.CycleCount,
		SuccessfulCycleCount: st.SuccessfulCycleCount,
		PersistedCount:       st.PersistedCount,
		PersistFailures:      st.PersistFailures,
		Probes:               []ProbeView{},
		RecentAlerts:         make([]domain.Alert, 0, len(recent)),
	}
	if !st.StartedAt.IsZero() {
		s.UptimeSeconds = now().Sub(st.StartedAt).Seconds()
	}
	for i := len(recent) - 1; i >= 0; i-- {
		s.RecentAlerts = append(s.RecentAlerts, recent[i])
	}
	if snap == nil {
		return s
	}

	s.CycleID = snap.CycleID
	s.TakenAt = snap.TakenAt
	s.SuccessRate = snap.Derived.SuccessRate
	s.AverageLatencyMS = snap.Derived.AverageLatencyMS

	names := make([]string, 0, len(snap.Results))
	for name := range snap.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := snap.Results[name]
		pv := ProbeView{Name: name, Status: r.Status, LatencyMS: r.LatencyMS}
		if msg, ok := r.Detail[domain.DetailError].(string); ok {
			pv.Error = msg
		}
		for _, h := range highlights {
			if v, ok := r.Float(h.key); ok {
				pv.Highlights = append(pv.Highlights, fmt.Sprintf("%s %s%s", h.label, trimFloat(v), h.unit))
			}
		}
		if t, _ := r.Detail[domain.DetailTimeout].(bool); t {
			pv.Highlights = append(pv.Highlights, "timed out")
		}
		s.Probes = append(s.Probes, pv)
	}
	return s
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func icon(st domain.Status) string {
	switch st {
	case domain.StatusHealthy:
		return green("●")
	case domain.StatusDegraded:
		return yellow("▲")
	}
	return red("✖")
}

func severity(sev domain.Severity) string {
	switch sev {
	case domain.SeverityHigh:
		return red(string(sev))
	case domain.SeverityMedium:
		return yellow(string(sev))
	}
	return string(sev)
}

// Render writes the terminal view of s to w.
func Render(w io.Writer, s Status) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  run %s  %s\n", bold("healthmon"), shortID(s.RunID), s.Phase)
	fmt.Fprintf(&b, "uptime %s  cycles %d (%d clean)  persisted %d",
		time.Duration(s.UptimeSeconds*float64(time.Second)).Round(time.Second),
		s.CycleCount, s.SuccessfulCycleCount, s.PersistedCount)
	if s.PersistFailures > 0 {
		fmt.Fprintf(&b, "  %s", red(fmt.Sprintf("%d failed", s.PersistFailures)))
	}
	b.WriteString("\n\n")

	if s.Pending {
		b.WriteString(faint("waiting for first cycle…") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	rate := fmt.Sprintf("%.1f%%", s.SuccessRate*100)
	switch {
	case s.SuccessRate == 1:
		rate = green(rate)
	case s.SuccessRate >= 0.5:
		rate = yellow(rate)
	default:
		rate = red(rate)
	}
	fmt.Fprintf(&b, "cycle %d at %s  success %s  avg latency %.0fms\n",
		s.CycleID, s.TakenAt.Format("15:04:05"), rate, s.AverageLatencyMS)

	for _, p := range s.Probes {
		fmt.Fprintf(&b, "  %s %-14s %7.0fms", icon(p.Status), p.Name, p.LatencyMS)
		if len(p.Highlights) > 0 {
			fmt.Fprintf(&b, "  %s", strings.Join(p.Highlights, ", "))
		}
		if p.Error != "" && p.Status != domain.StatusHealthy {
			fmt.Fprintf(&b, "  %s", faint(p.Error))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if len(s.RecentAlerts) == 0 {
		b.WriteString(faint("no alerts") + "\n")
	}
	for _, a := range s.RecentAlerts {
		state := red("raised")
		at := a.RaisedAt
		if a.ClearedAt != nil {
			state, at = green("cleared"), *a.ClearedAt
		}
		fmt.Fprintf(&b, "  %s %-7s %-26s %s  %s\n", at.Format("15:04:05"), state, a.ID, severity(a.Severity), a.Message)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
