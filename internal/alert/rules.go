package alert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hamed0406/healthmon/internal/domain"
)

// Verdict is a rule's judgement of one snapshot.
type Verdict struct {
	Violated bool
	Severity domain.Severity
	Message  string
}

// Rule inspects a snapshot for one condition. The alert it raises is keyed
// by Category/Condition.
type Rule interface {
	Category() string
	Condition() string
	Evaluate(snap domain.HealthSnapshot) Verdict
}

// RuleFunc adapts a function into a Rule.
type RuleFunc struct {
	Cat  string
	Cond string
	Fn   func(snap domain.HealthSnapshot) Verdict
}

func (r RuleFunc) Category() string  { return r.Cat }
func (r RuleFunc) Condition() string { return r.Cond }

func (r RuleFunc) Evaluate(snap domain.HealthSnapshot) Verdict { return r.Fn(snap) }

// Built-in alert IDs.
var (
	IDSuccessRate = domain.AlertID("coordination", "success_rate")
	IDLatency     = domain.AlertID("performance", "latency")
	IDErrorRate   = domain.AlertID("performance", "error_rate")
	IDMemory      = domain.AlertID("system", "memory")
	IDCPU         = domain.AlertID("system", "cpu")
)

// Policy maps alert IDs to the severity they are raised with.
type Policy map[string]domain.Severity

func DefaultPolicy() Policy {
	return Policy{
		IDSuccessRate: domain.SeverityHigh,
		IDLatency:     domain.SeverityMedium,
		IDErrorRate:   domain.SeverityMedium,
		IDMemory:      domain.SeverityMedium,
		IDCPU:         domain.SeverityMedium,
	}
}

func (p Policy) severity(id string) domain.Severity {
	if s, ok := p[id]; ok {
		return s
	}
	if s, ok := DefaultPolicy()[id]; ok {
		return s
	}
	return domain.SeverityMedium
}

// DefaultRules builds the built-in rule set for the given thresholds.
func DefaultRules(th domain.ThresholdConfig, policy Policy) []Rule {
	return []Rule{
		RuleFunc{Cat: "coordination", Cond: "success_rate", Fn: func(s domain.HealthSnapshot) Verdict {
			rate := s.Derived.SuccessRate
			if rate >= th.SuccessRateMin {
				return Verdict{}
			}
			return Verdict{
				Violated: true,
				Severity: policy.severity(IDSuccessRate),
				Message:  fmt.Sprintf("success rate %.1f%% below %.1f%%", rate*100, th.SuccessRateMin*100),
			}
		}},
		RuleFunc{Cat: "performance", Cond: "latency", Fn: func(s domain.HealthSnapshot) Verdict {
			avg := s.Derived.AverageLatencyMS
			if avg <= th.LatencyMaxMS {
				return Verdict{}
			}
			return Verdict{
				Violated: true,
				Severity: policy.severity(IDLatency),
				Message:  fmt.Sprintf("average latency %.0fms above %.0fms", avg, th.LatencyMaxMS),
			}
		}},
		detailRule("system", "memory", domain.DetailMemoryUsagePct, th.MemoryUsageMaxPct, policy.severity(IDMemory), "memory usage"),
		detailRule("system", "cpu", domain.DetailCPUUsagePct, th.CPUUsageMaxPct, policy.severity(IDCPU), "cpu usage"),
		detailRule("performance", "error_rate", domain.DetailErrorRatePct, th.ErrorRateMaxPct, policy.severity(IDErrorRate), "error rate"),
	}
}

// detailRule fires when any probe reports the numeric detail key above max.
func detailRule(cat, cond, key string, max float64, sev domain.Severity, label string) Rule {
	return RuleFunc{Cat: cat, Cond: cond, Fn: func(s domain.HealthSnapshot) Verdict {
		var over []string
		peak := 0.0
		for name, r := range s.Results {
			v, ok := r.Float(key)
			if !ok || v <= max {
				continue
			}
			over = append(over, name)
			if v > peak {
				peak = v
			}
		}
		if len(over) == 0 {
			return Verdict{}
		}
		sort.Strings(over)
		return Verdict{
			Violated: true,
			Severity: sev,
			Message:  fmt.Sprintf("%s %.1f%% above %.1f%% (%s)", label, peak, max, strings.Join(over, ", ")),
		}
	}}
}
