package contracts

import (
	"fmt"
	"time"
)

// Direction is the closed set of signal directions.
// hawkish/dovish apply to policy signals, bullish/bearish/neutral to the rest.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
	DirectionHawkish Direction = "hawkish"
	DirectionDovish  Direction = "dovish"
)

// IsValid reports whether d is a member of the closed direction set
func (d Direction) IsValid() bool {
	switch d {
	case DirectionBullish, DirectionBearish, DirectionNeutral,
		DirectionHawkish, DirectionDovish:
		return true
	}
	return false
}

// Well-known signal names. Stages may emit additional lowercase names
// (e.g. "fed_neutral") but these are the ones downstream rules refer to.
const (
	// Macro signals
	SignalHawkishBias      = "hawkish_bias"
	SignalDovishBias       = "dovish_bias"
	SignalInflationRising  = "inflation_rising"
	SignalInflationCooling = "inflation_cooling"
	SignalLaborStrong      = "labor_strong"
	SignalLaborWeak        = "labor_weak"
	SignalYieldInversion   = "yield_curve_inversion"

	// Cross-asset signals
	SignalRiskOn         = "risk_on"
	SignalRiskOff        = "risk_off"
	SignalFlightToSafety = "flight_to_safety"
	SignalCryptoMomentum = "crypto_momentum"
	SignalVIXSpike       = "vix_spike"
	SignalVIXElevated    = "vix_elevated"
	SignalVIXCalm        = "vix_calm"

	// News/sentiment signals
	SignalSentimentBullish = "sentiment_bullish"
	SignalSentimentBearish = "sentiment_bearish"
	SignalSentimentMixed   = "sentiment_mixed"

	// Prediction-market signals
	SignalFedCutExpected  = "fed_cut_expected"
	SignalFedHikeExpected = "fed_hike_expected"
)

// Signal is a standardized directional observation produced by one stage.
// Immutable after creation; score and confidence are always in range
// because NewSignal clamps them.
type Signal struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Direction   Direction              `json:"direction"`
	Score       float64                `json:"score"`      // -1 to 1
	Confidence  float64                `json:"confidence"` // 0 to 1
	SourceStage Stage                  `json:"source_stage"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	RunID       string                 `json:"run_id"`
}

// NewSignal builds a Signal with a deterministic id. Out-of-range score or
// confidence values are clamped; the returned notes describe what was
// clamped so the caller can record a warning instead of passing bad values
// through silently.
func NewSignal(
	name string,
	direction Direction,
	score float64,
	confidence float64,
	sourceStage Stage,
	evidence map[string]interface{},
	runID string,
	asof time.Time,
) (Signal, []string) {
	var notes []string

	if score > 1 {
		notes = append(notes, fmt.Sprintf("signal %s: score %.4f clamped to 1", name, score))
		score = 1
	} else if score < -1 {
		notes = append(notes, fmt.Sprintf("signal %s: score %.4f clamped to -1", name, score))
		score = -1
	}

	if confidence > 1 {
		notes = append(notes, fmt.Sprintf("signal %s: confidence %.4f clamped to 1", name, confidence))
		confidence = 1
	} else if confidence < 0 {
		notes = append(notes, fmt.Sprintf("signal %s: confidence %.4f clamped to 0", name, confidence))
		confidence = 0
	}

	if !direction.IsValid() {
		notes = append(notes, fmt.Sprintf("signal %s: unknown direction %q coerced to neutral", name, direction))
		direction = DirectionNeutral
	}

	if evidence == nil {
		evidence = map[string]interface{}{}
	}

	return Signal{
		ID:          fmt.Sprintf("%s_%s_%s", sourceStage, name, runID),
		Name:        name,
		Direction:   direction,
		Score:       score,
		Confidence:  confidence,
		SourceStage: sourceStage,
		Evidence:    evidence,
		Timestamp:   asof,
		RunID:       runID,
	}, notes
}

// Significant reports whether the signal is strong enough to surface
// in summaries.
func (s Signal) Significant() bool {
	return abs(s.Score) >= 0.3 && s.Confidence >= 0.5
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// SignalsSummary is a confidence-weighted aggregation of a run's signals.
type SignalsSummary struct {
	OverallDirection Direction `json:"overall_direction"`
	OverallScore     float64   `json:"overall_score"`
	SignalCount      int       `json:"signal_count"`
	SignificantCount int       `json:"significant_count"`
	KeySignals       []Signal  `json:"key_signals,omitempty"`
}
