package alert

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthmon/internal/domain"
)

type TransitionKind string

const (
	Raised  TransitionKind = "raised"
	Cleared TransitionKind = "cleared"
)

// Transition is a ledger change produced by one evaluation.
type Transition struct {
	Kind  TransitionKind
	Alert domain.Alert
}

// Evaluator applies rules to snapshots and records raises and clears in the
// ledger. It is driven from a single goroutine.
type Evaluator struct {
	logger *zap.Logger
	ledger *Ledger
	rules  []Rule
	now    func() time.Time
}

func NewEvaluator(logger *zap.Logger, ledger *Ledger, rules []Rule) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger, ledger: ledger, rules: rules, now: time.Now}
}

func (e *Evaluator) Ledger() *Ledger { return e.ledger }

// Evaluate runs every rule against snap. A rule that panics is skipped for
// this cycle and its open alert, if any, is left untouched.
func (e *Evaluator) Evaluate(snap domain.HealthSnapshot) []Transition {
	var out []Transition
	for _, r := range e.rules {
		v, err := e.safeEvaluate(r, snap)
		id := domain.AlertID(r.Category(), r.Condition())
		if err != nil {
			e.logger.Error("rule_panic", zap.String("rule", id), zap.Uint64("cycle_id", snap.CycleID), zap.Error(err))
			continue
		}
		out = append(out, e.apply(r, id, v)...)
	}
	return out
}

func (e *Evaluator) safeEvaluate(r Rule, snap domain.HealthSnapshot) (v Verdict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Evaluate(snap), nil
}

func (e *Evaluator) apply(r Rule, id string, v Verdict) []Transition {
	now := e.now().UTC()
	current, open := e.ledger.Open(id)

	switch {
	case !v.Violated && !open:
		return nil
	case !v.Violated && open:
		return []Transition{e.clear(current, now)}
	case open && current.Severity == v.Severity:
		return nil
	}

	var out []Transition
	if open {
		out = append(out, e.clear(current, now))
	}
	a := domain.Alert{
		ID:        id,
		Category:  r.Category(),
		Condition: r.Condition(),
		Severity:  v.Severity,
		Message:   v.Message,
		RaisedAt:  now,
	}
	e.ledger.Append(a)
	e.logger.Info("alert_raised",
		zap.String("alert_id", id),
		zap.String("severity", string(a.Severity)),
		zap.String("message", a.Message),
	)
	return append(out, Transition{Kind: Raised, Alert: a})
}

func (e *Evaluator) clear(a domain.Alert, now time.Time) Transition {
	c := a.Cleared(now)
	e.ledger.Append(c)
	e.logger.Info("alert_cleared", zap.String("alert_id", a.ID), zap.Duration("open_for", now.Sub(a.RaisedAt)))
	return Transition{Kind: Cleared, Alert: c}
}
