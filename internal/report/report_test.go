package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

var testAsOf = time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)

func testState() contracts.RunState {
	vix := 32.5
	spread := -0.45
	state := contracts.NewRunState("run42", testAsOf, "America/New_York")
	state.Macro = contracts.MacroData{
		Indicators:  map[string]contracts.Observation{"FEDFUNDS": {Date: "2025-06-01", Value: 5.25}},
		YieldSpread: &spread,
		Inflation:   map[string]float64{"cpi_yoy": 3.2},
	}
	state.Market = contracts.MarketData{
		Assets: map[string]contracts.Quote{
			"SPY": {Symbol: "SPY", Price: 520.1, Change24h: -0.012},
		},
		VIXLevel: &vix,
	}

	macro, _ := contracts.NewSignal("hawkish_bias", contracts.DirectionHawkish, 0.75, 0.75,
		contracts.StageMacroIngest, nil, "run42", testAsOf)
	cross, _ := contracts.NewSignal("vix_spike", contracts.DirectionBearish, 0.63, 0.9,
		contracts.StageCrossAssetIngest, nil, "run42", testAsOf)
	state.Signals = []contracts.Signal{macro, cross}
	return *state
}

func testAlerts() []contracts.Alert {
	return []contracts.Alert{{
		ID: "alert_vix_spike_run42", RuleName: "vix_spike", Title: "VIX Spike",
		Message: "vix at 32.5", Severity: contracts.SeverityHigh,
		TriggeredAt: testAsOf, RunID: "run42",
	}}
}

func TestBuildSkeleton(t *testing.T) {
	state := testState()
	summary := contracts.SignalsSummary{
		OverallDirection: contracts.DirectionBearish,
		OverallScore:     -0.21,
		SignalCount:      2,
		SignificantCount: 2,
	}

	rep := Build(state, summary, testAlerts())

	assert.Equal(t, "report_run42", rep.ID)
	assert.Equal(t, testAsOf, rep.GeneratedAt)
	assert.False(t, rep.SummarizerUsed)
	assert.Contains(t, rep.Summary, "bearish")
	assert.Contains(t, rep.Summary, "vix_spike")

	require.Len(t, rep.Sections, 3, "macro, cross-asset and alerts; no news signals this run")
	assert.Equal(t, "macro_overview", rep.Sections[0].SectionType)
	assert.Equal(t, "cross_asset", rep.Sections[1].SectionType)
	assert.Equal(t, "alerts", rep.Sections[2].SectionType)
	assert.Contains(t, rep.Sections[0].KeyPoints[0], "hawkish_bias")
	assert.Contains(t, rep.Sections[2].KeyPoints[0], "HIGH")

	assert.Equal(t, 5.25, rep.MarketSnapshot["fed_funds_rate"])
	assert.Equal(t, 32.5, rep.MarketSnapshot["vix_level"])
	assert.Equal(t, 3.2, rep.MarketSnapshot["cpi_yoy"])
}

func TestBuildIsDeterministic(t *testing.T) {
	state := testState()
	summary := contracts.SignalsSummary{OverallDirection: contracts.DirectionNeutral}

	first := Build(state, summary, nil)
	second := Build(state, summary, nil)
	assert.Equal(t, first, second)
	assert.Contains(t, first.Summary, "No alerts triggered")
}

type stubSummarizer struct {
	text string
	err  error
}

func (s stubSummarizer) Summarize(context.Context, contracts.Report, contracts.RunState) (string, error) {
	return s.text, s.err
}

func TestFinalizeAppliesSummarizer(t *testing.T) {
	rep := Build(testState(), contracts.SignalsSummary{}, nil)

	out, err := Finalize(context.Background(), rep, testState(), stubSummarizer{text: "markets look fragile"})
	require.NoError(t, err)
	assert.Equal(t, "markets look fragile", out.Summary)
	assert.True(t, out.SummarizerUsed)
}

func TestFinalizeKeepsFallbackOnFailure(t *testing.T) {
	rep := Build(testState(), contracts.SignalsSummary{}, nil)
	original := rep.Summary

	out, err := Finalize(context.Background(), rep, testState(), stubSummarizer{err: fmt.Errorf("upstream 503")})
	assert.Error(t, err)
	assert.Equal(t, original, out.Summary)
	assert.False(t, out.SummarizerUsed)

	out, err = Finalize(context.Background(), rep, testState(), stubSummarizer{text: "   "})
	assert.Error(t, err)
	assert.False(t, out.SummarizerUsed)
}

func TestFinalizeWithoutSummarizer(t *testing.T) {
	rep := Build(testState(), contracts.SignalsSummary{}, nil)
	out, err := Finalize(context.Background(), rep, testState(), nil)
	require.NoError(t, err)
	assert.Equal(t, rep, out)
}
