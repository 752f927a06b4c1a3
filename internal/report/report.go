// Package report assembles the deterministic report skeleton from a run's
// accumulated state. A Summarizer may later replace the summary prose; the
// structure itself never depends on one.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

// Summarizer rewrites the report summary. Implementations call external
// text-generation services; failures fall back to the deterministic text.
type Summarizer interface {
	Summarize(ctx context.Context, rep contracts.Report, state contracts.RunState) (string, error)
}

// Build assembles the report skeleton for a run. Everything here is a pure
// function of the state: same state, same report.
func Build(state contracts.RunState, summary contracts.SignalsSummary, alerts []contracts.Alert) contracts.Report {
	rep := contracts.Report{
		ID:             fmt.Sprintf("report_%s", state.RunID),
		Title:          fmt.Sprintf("Market Top-Down Analysis — %s", state.AsOf.Format("2006-01-02")),
		Summary:        fallbackSummary(summary, alerts),
		SignalsSummary: summary,
		MarketSnapshot: snapshot(state),
		GeneratedAt:    state.AsOf,
	}

	if sec, ok := section("Macro Environment", "macro_overview", contracts.StageMacroIngest, state.Signals); ok {
		rep.Sections = append(rep.Sections, sec)
	}
	if sec, ok := section("Cross-Asset Risk", "cross_asset", contracts.StageCrossAssetIngest, state.Signals); ok {
		rep.Sections = append(rep.Sections, sec)
	}
	if sec, ok := section("News & Positioning", "news_sentiment", contracts.StageNewsIngest, state.Signals); ok {
		rep.Sections = append(rep.Sections, sec)
	}
	if sec, ok := alertSection(alerts); ok {
		rep.Sections = append(rep.Sections, sec)
	}

	return rep
}

// fallbackSummary is the deterministic one-paragraph summary used when no
// summarizer is wired or the summarizer fails
func fallbackSummary(summary contracts.SignalsSummary, alerts []contracts.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall bias %s (score %.3f) across %d signals, %d significant.",
		summary.OverallDirection, summary.OverallScore, summary.SignalCount, summary.SignificantCount)

	if len(alerts) > 0 {
		names := make([]string, len(alerts))
		for i, a := range alerts {
			names[i] = a.RuleName
		}
		fmt.Fprintf(&b, " %d alert(s) triggered: %s.", len(alerts), strings.Join(names, ", "))
	} else {
		b.WriteString(" No alerts triggered.")
	}
	return b.String()
}

// section builds one report block from the signals a stage contributed
func section(title, sectionType string, stage contracts.Stage, sigs []contracts.Signal) (contracts.ReportSection, bool) {
	var points []string
	for _, s := range sigs {
		if s.SourceStage != stage {
			continue
		}
		points = append(points, fmt.Sprintf("%s: %s (score %.2f, confidence %.2f)",
			s.Name, s.Direction, s.Score, s.Confidence))
	}
	if len(points) == 0 {
		return contracts.ReportSection{}, false
	}
	return contracts.ReportSection{
		Title:       title,
		SectionType: sectionType,
		SourceStage: stage,
		KeyPoints:   points,
	}, true
}

func alertSection(alerts []contracts.Alert) (contracts.ReportSection, bool) {
	if len(alerts) == 0 {
		return contracts.ReportSection{}, false
	}
	points := make([]string, len(alerts))
	for i, a := range alerts {
		points[i] = fmt.Sprintf("[%s] %s — %s", strings.ToUpper(string(a.Severity)), a.Title, a.Message)
	}
	return contracts.ReportSection{
		Title:       "Alerts",
		SectionType: "alerts",
		SourceStage: contracts.StageSynthesize,
		KeyPoints:   points,
	}, true
}

// snapshot captures the market state the report was written against
func snapshot(state contracts.RunState) map[string]interface{} {
	snap := map[string]interface{}{}

	if len(state.Market.Assets) > 0 {
		symbols := make([]string, 0, len(state.Market.Assets))
		for sym := range state.Market.Assets {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)

		quotes := map[string]interface{}{}
		for _, sym := range symbols {
			q := state.Market.Assets[sym]
			quotes[sym] = map[string]interface{}{
				"price":      q.Price,
				"change_24h": q.Change24h,
			}
		}
		snap["quotes"] = quotes
	}

	if state.Market.VIXLevel != nil {
		snap["vix_level"] = *state.Market.VIXLevel
	}
	if state.Macro.YieldSpread != nil {
		snap["yield_spread_2y10y"] = *state.Macro.YieldSpread
	}
	for k, v := range state.Macro.Inflation {
		snap[k] = v
	}
	if obs, ok := state.Macro.Indicators["FEDFUNDS"]; ok {
		snap["fed_funds_rate"] = obs.Value
	}
	return snap
}

// Finalize applies the summarizer when one is wired. Summarizer failures
// keep the deterministic summary and report the error to the caller so it
// can be recorded in the run trail.
func Finalize(ctx context.Context, rep contracts.Report, state contracts.RunState, s Summarizer) (contracts.Report, error) {
	if s == nil {
		return rep, nil
	}
	text, err := s.Summarize(ctx, rep, state)
	if err != nil {
		return rep, err
	}
	if strings.TrimSpace(text) == "" {
		return rep, fmt.Errorf("summarizer returned empty text")
	}
	rep.Summary = text
	rep.SummarizerUsed = true
	return rep, nil
}
