package contracts

import (
	"time"
)

// Error levels for RunError entries
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// RunError is one structured failure record in the run's audit trail.
// Failures never unwind past a stage boundary; they land here instead.
type RunError struct {
	Source      string    `json:"source"` // provider or component name
	Stage       Stage     `json:"stage"`
	Message     string    `json:"message"`
	Level       string    `json:"level"` // info / warn / error
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}

// MacroData is the raw macro bucket, keyed by source-defined series ids
type MacroData struct {
	Indicators  map[string]Observation `json:"indicators,omitempty"`   // e.g. "FEDFUNDS" -> latest observation
	YieldSpread *float64               `json:"yield_spread,omitempty"` // 10Y minus 2Y, percentage points
	Inflation   map[string]float64     `json:"inflation,omitempty"`    // e.g. "cpi_yoy" -> 3.2
}

// MarketData is the raw cross-asset bucket, keyed by symbol
type MarketData struct {
	Assets   map[string]Quote `json:"assets,omitempty"`
	VIXLevel *float64         `json:"vix_level,omitempty"`
}

// NewsSummary aggregates sentiment over the fetched articles
type NewsSummary struct {
	ArticleCount int     `json:"article_count"`
	ScoredCount  int     `json:"scored_count"` // articles carrying a sentiment score
	AvgSentiment float64 `json:"avg_sentiment"`
	BullishCount int     `json:"bullish_count"`
	BearishCount int     `json:"bearish_count"`
	NeutralCount int     `json:"neutral_count"`
}

// NewsData is the raw news bucket
type NewsData struct {
	Articles []Article   `json:"articles,omitempty"`
	Summary  NewsSummary `json:"summary"`
	Source   string      `json:"source,omitempty"` // adapter that served the need
}

// SentimentData is the optional prediction-market bucket
type SentimentData struct {
	Available         bool               `json:"available"`
	Markets           []PredictionMarket `json:"markets,omitempty"`
	FedCutProbability *float64           `json:"fed_cut_probability,omitempty"`
}

// ReportSection is one block of the report skeleton
type ReportSection struct {
	Title       string   `json:"title"`
	SectionType string   `json:"section_type"`
	SourceStage Stage    `json:"source_stage"`
	KeyPoints   []string `json:"key_points,omitempty"`
}

// Report is the handoff structure for the external summarizer and delivery.
// Summary may be replaced by summarizer prose; everything else is built
// deterministically by the synthesize stage.
type Report struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Summary        string                 `json:"summary"`
	Sections       []ReportSection        `json:"sections,omitempty"`
	SignalsSummary SignalsSummary         `json:"signals_summary"`
	MarketSnapshot map[string]interface{} `json:"market_snapshot,omitempty"`
	GeneratedAt    time.Time              `json:"generated_at"`
	SummarizerUsed bool                   `json:"summarizer_used"`
}

// RunState is the single record flowing through the pipeline for one
// execution. The orchestrator is its only writer; stages receive clones
// and return StageUpdate values that are merged additively.
type RunState struct {
	RunID    string    `json:"run_id"`
	AsOf     time.Time `json:"asof"` // fixed at bootstrap; all time-relative calc uses it
	Timezone string    `json:"timezone"`

	Macro     MacroData     `json:"macro_data"`
	Market    MarketData    `json:"market_data"`
	News      NewsData      `json:"news_data"`
	Sentiment SentimentData `json:"sentiment_data"`

	Signals []Signal   `json:"signals"`
	Alerts  []Alert    `json:"alerts"`
	Errors  []RunError `json:"errors"`

	Report *Report `json:"report,omitempty"`
}

// StageUpdate is the partial update a stage returns. Nil bucket pointers
// mean "no change"; list fields are appended, never replaced.
type StageUpdate struct {
	Macro     *MacroData
	Market    *MarketData
	News      *NewsData
	Sentiment *SentimentData

	Signals []Signal
	Alerts  []Alert
	Errors  []RunError

	Report *Report
}

// NewRunState creates the initial state for a run
func NewRunState(runID string, asof time.Time, timezone string) *RunState {
	return &RunState{
		RunID:    runID,
		AsOf:     asof,
		Timezone: timezone,
		Signals:  []Signal{},
		Alerts:   []Alert{},
		Errors:   []RunError{},
	}
}

// Clone returns a deep-enough copy for a stage's read view. Maps and
// slices are copied so a misbehaving stage cannot mutate shared state;
// element values are treated as immutable by contract.
func (rs *RunState) Clone() RunState {
	out := *rs

	out.Macro.Indicators = copyMap(rs.Macro.Indicators)
	out.Macro.Inflation = copyMap(rs.Macro.Inflation)
	out.Macro.YieldSpread = copyPtr(rs.Macro.YieldSpread)
	out.Market.Assets = copyMap(rs.Market.Assets)
	out.Market.VIXLevel = copyPtr(rs.Market.VIXLevel)
	out.News.Articles = append([]Article(nil), rs.News.Articles...)
	out.Sentiment.Markets = append([]PredictionMarket(nil), rs.Sentiment.Markets...)
	out.Sentiment.FedCutProbability = copyPtr(rs.Sentiment.FedCutProbability)

	out.Signals = append([]Signal(nil), rs.Signals...)
	out.Alerts = append([]Alert(nil), rs.Alerts...)
	out.Errors = append([]RunError(nil), rs.Errors...)

	return out
}

// ApplyUpdate merges a stage's partial update additively. Buckets are set
// only when the update carries them; signals and alerts are appended with
// id dedup so replays cannot duplicate entries. Nothing is ever deleted.
func (rs *RunState) ApplyUpdate(u StageUpdate) {
	if u.Macro != nil {
		rs.Macro = *u.Macro
	}
	if u.Market != nil {
		rs.Market = *u.Market
	}
	if u.News != nil {
		rs.News = *u.News
	}
	if u.Sentiment != nil {
		rs.Sentiment = *u.Sentiment
	}

	if len(u.Signals) > 0 {
		seen := make(map[string]bool, len(rs.Signals))
		for _, s := range rs.Signals {
			seen[s.ID] = true
		}
		for _, s := range u.Signals {
			if !seen[s.ID] {
				rs.Signals = append(rs.Signals, s)
				seen[s.ID] = true
			}
		}
	}

	if len(u.Alerts) > 0 {
		seen := make(map[string]bool, len(rs.Alerts))
		for _, a := range rs.Alerts {
			seen[a.ID] = true
		}
		for _, a := range u.Alerts {
			if !seen[a.ID] {
				rs.Alerts = append(rs.Alerts, a)
				seen[a.ID] = true
			}
		}
	}

	rs.Errors = append(rs.Errors, u.Errors...)

	if u.Report != nil {
		rs.Report = u.Report
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
