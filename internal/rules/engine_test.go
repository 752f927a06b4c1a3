package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/contracts"
)

var testAsOf = time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)

func btcCrashRule() analysisconfig.Rule {
	return analysisconfig.Rule{
		Name:            "btc_crash",
		Metric:          "btc_24h_change",
		Operator:        "<",
		Threshold:       -0.08,
		Severity:        "high",
		Title:           "BTC Crash",
		MessageTemplate: "BTC moved {value} in 24h, below {threshold}",
	}
}

func TestEvaluateFiresOnBreach(t *testing.T) {
	engine := NewEngine([]analysisconfig.Rule{btcCrashRule()})

	alerts, errs := engine.Evaluate(map[string]float64{"btc_24h_change": -0.105}, "run42", testAsOf)
	require.Len(t, alerts, 1)
	assert.Empty(t, errs)

	a := alerts[0]
	assert.Equal(t, "alert_btc_crash_run42", a.ID)
	assert.Equal(t, "btc_crash", a.RuleName)
	assert.Equal(t, contracts.SeverityHigh, a.Severity)
	assert.Equal(t, -0.105, a.CurrentValue)
	assert.Equal(t, -0.08, a.Threshold)
	assert.Equal(t, "BTC moved -0.105 in 24h, below -0.08", a.Message)
	assert.Equal(t, testAsOf, a.TriggeredAt)
}

func TestEvaluateDefaultMessageWithoutTemplate(t *testing.T) {
	rule := btcCrashRule()
	rule.MessageTemplate = ""
	engine := NewEngine([]analysisconfig.Rule{rule})

	alerts, errs := engine.Evaluate(map[string]float64{"btc_24h_change": -0.105}, "run1", testAsOf)
	require.Len(t, alerts, 1)
	assert.Empty(t, errs)
	assert.Equal(t, "btc_24h_change = -0.105 < -0.08", alerts[0].Message)
}

func TestEvaluateMetricAndOperatorPlaceholders(t *testing.T) {
	rule := btcCrashRule()
	rule.MessageTemplate = "{metric} {operator} {threshold} breached at {value}"
	engine := NewEngine([]analysisconfig.Rule{rule})

	alerts, _ := engine.Evaluate(map[string]float64{"btc_24h_change": -0.105}, "run1", testAsOf)
	require.Len(t, alerts, 1)
	assert.Equal(t, "btc_24h_change < -0.08 breached at -0.105", alerts[0].Message)
}

func TestEvaluateQuietWhenWithinThreshold(t *testing.T) {
	engine := NewEngine([]analysisconfig.Rule{btcCrashRule()})

	alerts, errs := engine.Evaluate(map[string]float64{"btc_24h_change": -0.05}, "run42", testAsOf)
	assert.Empty(t, alerts)
	assert.Empty(t, errs)
}

func TestEvaluateSkipsMissingMetricWithInfoEntry(t *testing.T) {
	engine := NewEngine([]analysisconfig.Rule{btcCrashRule()})

	alerts, errs := engine.Evaluate(map[string]float64{"vix_level": 18}, "run42", testAsOf)
	assert.Empty(t, alerts)
	require.Len(t, errs, 1)
	assert.Equal(t, contracts.LevelInfo, errs[0].Level)
	assert.True(t, errs[0].Recoverable)
	assert.Contains(t, errs[0].Message, "btc_24h_change")
	assert.Equal(t, contracts.StageSynthesize, errs[0].Stage)
}

func TestEvaluatePreservesConfigOrder(t *testing.T) {
	rules := []analysisconfig.Rule{
		{Name: "vix_spike", Metric: "vix_level", Operator: ">=", Threshold: 30,
			Severity: "high", Title: "VIX", MessageTemplate: "vix {value}"},
		{Name: "yield_inversion", Metric: "yield_spread_2y10y", Operator: "<", Threshold: -0.2,
			Severity: "medium", Title: "Curve", MessageTemplate: "spread {value}"},
		{Name: "policy_restrictive", Metric: "fed_funds_rate", Operator: ">=", Threshold: 5.0,
			Severity: "low", Title: "Policy", MessageTemplate: "rate {value}"},
	}
	engine := NewEngine(rules)

	metrics := map[string]float64{
		"vix_level":          34,
		"yield_spread_2y10y": -0.45,
		"fed_funds_rate":     5.25,
	}

	alerts, errs := engine.Evaluate(metrics, "r1", testAsOf)
	assert.Empty(t, errs)
	require.Len(t, alerts, 3)
	assert.Equal(t, "vix_spike", alerts[0].RuleName)
	assert.Equal(t, "yield_inversion", alerts[1].RuleName)
	assert.Equal(t, "policy_restrictive", alerts[2].RuleName)
}

func TestEvaluateOperatorTable(t *testing.T) {
	cases := []struct {
		op        string
		value     float64
		threshold float64
		fires     bool
	}{
		{"<", 1, 2, true},
		{"<", 2, 2, false},
		{"<=", 2, 2, true},
		{">", 3, 2, true},
		{">", 2, 2, false},
		{">=", 2, 2, true},
		{"==", 2, 2, true},
		{"==", 2.1, 2, false},
		{"!=", 2.1, 2, true},
		{"!=", 2, 2, false},
	}

	for _, tc := range cases {
		engine := NewEngine([]analysisconfig.Rule{{
			Name: "probe", Metric: "m", Operator: tc.op, Threshold: tc.threshold,
			Severity: "low", Title: "p", MessageTemplate: "m {value}",
		}})
		alerts, _ := engine.Evaluate(map[string]float64{"m": tc.value}, "r", testAsOf)
		assert.Equal(t, tc.fires, len(alerts) == 1, "%v %s %v", tc.value, tc.op, tc.threshold)
	}
}

func TestEvaluateUnknownOperatorWarnsAndSkips(t *testing.T) {
	engine := NewEngine([]analysisconfig.Rule{{
		Name: "bad", Metric: "m", Operator: "~=", Threshold: 1,
		Severity: "low", Title: "b", MessageTemplate: "x",
	}})

	alerts, errs := engine.Evaluate(map[string]float64{"m": 5}, "r", testAsOf)
	assert.Empty(t, alerts)
	require.Len(t, errs, 1)
	assert.Equal(t, contracts.LevelWarn, errs[0].Level)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	engine := NewEngine([]analysisconfig.Rule{btcCrashRule()})
	metrics := map[string]float64{"btc_24h_change": -0.09}

	first, _ := engine.Evaluate(metrics, "run7", testAsOf)
	second, _ := engine.Evaluate(metrics, "run7", testAsOf)
	assert.Equal(t, first, second)
}
