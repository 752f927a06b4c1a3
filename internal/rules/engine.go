// Package rules evaluates declarative alert rules against a run's derived
// metrics. The engine is deterministic: rules fire in configuration order,
// alert ids derive from rule name and run id, and evaluating the same
// metrics twice produces identical alerts.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/contracts"
)

// comparator implements one threshold operator
type comparator func(value, threshold float64) bool

// ⭐ SSOT: 알림 조건 연산자는 이 맵에서만
var comparators = map[string]comparator{
	"<":  func(v, t float64) bool { return v < t },
	"<=": func(v, t float64) bool { return v <= t },
	">":  func(v, t float64) bool { return v > t },
	">=": func(v, t float64) bool { return v >= t },
	"==": func(v, t float64) bool { return v == t },
	"!=": func(v, t float64) bool { return v != t },
}

// Engine holds an ordered rule set loaded from analysis config
type Engine struct {
	rules []analysisconfig.Rule
}

// NewEngine creates a rule engine. Rule order is preserved; validation
// happens at config load, not here.
func NewEngine(rules []analysisconfig.Rule) *Engine {
	return &Engine{rules: append([]analysisconfig.Rule(nil), rules...)}
}

// Evaluate runs every rule against the metric map. A rule whose metric is
// absent is skipped with an info entry; it is a data gap, not a failure.
// Unknown operators are recorded as warnings and never fire.
func (e *Engine) Evaluate(metrics map[string]float64, runID string, asof time.Time) ([]contracts.Alert, []contracts.RunError) {
	var alerts []contracts.Alert
	var errs []contracts.RunError

	for _, rule := range e.rules {
		value, ok := metrics[rule.Metric]
		if !ok {
			errs = append(errs, contracts.RunError{
				Source:      "rule_engine",
				Stage:       contracts.StageSynthesize,
				Message:     fmt.Sprintf("rule %s skipped: metric %q not available this run", rule.Name, rule.Metric),
				Level:       contracts.LevelInfo,
				Recoverable: true,
				Timestamp:   asof,
			})
			continue
		}

		cmp, ok := comparators[rule.Operator]
		if !ok {
			errs = append(errs, contracts.RunError{
				Source:      "rule_engine",
				Stage:       contracts.StageSynthesize,
				Message:     fmt.Sprintf("rule %s skipped: unknown operator %q", rule.Name, rule.Operator),
				Level:       contracts.LevelWarn,
				Recoverable: true,
				Timestamp:   asof,
			})
			continue
		}

		if !cmp(value, rule.Threshold) {
			continue
		}

		alerts = append(alerts, contracts.Alert{
			ID:           contracts.AlertID(rule.Name, runID),
			RuleName:     rule.Name,
			Title:        rule.Title,
			Message:      renderMessage(rule, value),
			Severity:     contracts.Severity(rule.Severity),
			CurrentValue: value,
			Threshold:    rule.Threshold,
			Operator:     rule.Operator,
			TriggeredAt:  asof,
			RunID:        runID,
		})
	}

	return alerts, errs
}

// Rules returns the configured rules in evaluation order
func (e *Engine) Rules() []analysisconfig.Rule {
	return append([]analysisconfig.Rule(nil), e.rules...)
}

// renderMessage substitutes {metric}, {operator}, {value} and {threshold}
// placeholders. The template is optional; without one the message falls
// back to the bare condition that fired.
func renderMessage(rule analysisconfig.Rule, value float64) string {
	if rule.MessageTemplate == "" {
		return fmt.Sprintf("%s = %s %s %s",
			rule.Metric, formatNumber(value), rule.Operator, formatNumber(rule.Threshold))
	}
	return strings.NewReplacer(
		"{metric}", rule.Metric,
		"{operator}", rule.Operator,
		"{value}", formatNumber(value),
		"{threshold}", formatNumber(rule.Threshold),
	).Replace(rule.MessageTemplate)
}

// formatNumber drops trailing zeros so messages read naturally
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
