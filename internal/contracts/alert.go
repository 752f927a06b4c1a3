package contracts

import (
	"fmt"
	"time"
)

// Severity is the ordered alert severity scale
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering of the severity (higher = more severe)
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// IsValid reports whether s is a known severity
func (s Severity) IsValid() bool {
	return s.Rank() >= 0
}

// Alert is a rule-engine output. Alerts are deterministic, rule-based and
// independent of any text-generation collaborator; nothing outside the rule
// engine constructs them.
type Alert struct {
	ID           string    `json:"id"`
	RuleName     string    `json:"rule_name"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Severity     Severity  `json:"severity"`
	CurrentValue float64   `json:"current_value"`
	Threshold    float64   `json:"threshold"`
	Operator     string    `json:"operator"`
	TriggeredAt  time.Time `json:"triggered_at"`
	RunID        string    `json:"run_id"`
}

// AlertID derives the deterministic alert id for a rule within a run
func AlertID(ruleName, runID string) string {
	return fmt.Sprintf("alert_%s_%s", ruleName, runID)
}
