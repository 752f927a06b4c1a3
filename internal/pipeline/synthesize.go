package pipeline

import (
	"context"

	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/internal/report"
	"github.com/wonny/macrolens/backend/internal/signals"
)

// synthesize evaluates alert rules against the run's derived metrics and
// assembles the report skeleton. Runs last; it sees everything the ingest
// stages accumulated.
func (o *Orchestrator) synthesize(ctx context.Context, view contracts.RunState) contracts.StageUpdate {
	var update contracts.StageUpdate

	metrics := runMetrics(view)
	alerts, ruleErrs := o.engine.Evaluate(metrics, view.RunID, view.AsOf)
	update.Alerts = alerts
	update.Errors = append(update.Errors, ruleErrs...)

	summary := signals.Aggregate(view.Signals)
	rep := report.Build(view, summary, alerts)

	rep, err := report.Finalize(ctx, rep, view, o.summarizer)
	if err != nil {
		update.Errors = append(update.Errors, contracts.RunError{
			Source:      "summarizer",
			Stage:       contracts.StageSynthesize,
			Message:     "summarizer failed, keeping deterministic summary: " + err.Error(),
			Level:       contracts.LevelWarn,
			Recoverable: true,
			Timestamp:   view.AsOf,
		})
	}
	update.Report = &rep

	return update
}

// runMetrics flattens the state into the metric map the rule engine
// evaluates against. Missing inputs stay missing; rules skip them.
func runMetrics(state contracts.RunState) map[string]float64 {
	m := map[string]float64{}

	if obs, ok := state.Macro.Indicators["FEDFUNDS"]; ok {
		m["fed_funds_rate"] = obs.Value
	}
	if v, ok := state.Macro.Inflation["cpi_yoy"]; ok {
		m["cpi_yoy"] = v
	}
	if state.Macro.YieldSpread != nil {
		m["yield_spread_2y10y"] = *state.Macro.YieldSpread
	}

	if q, ok := state.Market.Assets["SPY"]; ok {
		m["spy_24h_change"] = q.Change24h
	}
	if q, ok := state.Market.Assets["BTC-USDT"]; ok {
		m["btc_24h_change"] = q.Change24h
	}
	if q, ok := state.Market.Assets["GLD"]; ok {
		m["gold_24h_change"] = q.Change24h
	}
	if state.Market.VIXLevel != nil {
		m["vix_level"] = *state.Market.VIXLevel
	}

	if state.News.Summary.ScoredCount > 0 {
		m["news_avg_sentiment"] = state.News.Summary.AvgSentiment
	}
	if state.Sentiment.FedCutProbability != nil {
		m["fed_cut_probability"] = *state.Sentiment.FedCutProbability
	}

	// the composite stance score travels as signal evidence
	for _, s := range state.Signals {
		if s.Name == contracts.SignalHawkishBias || s.Name == contracts.SignalDovishBias || s.Name == "fed_neutral" {
			if h, ok := s.Evidence["hawkish_score"].(float64); ok {
				m["hawkish_score"] = h
			}
		}
	}

	return m
}
