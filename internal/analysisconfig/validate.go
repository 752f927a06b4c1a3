package analysisconfig

import (
	"fmt"
	"time"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validOperators = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
}

// Needs that the pipeline resolves; every one must be bound in the config
var requiredNeeds = []string{
	"macro_snapshot",
	"equity_quotes",
	"crypto_quotes",
	"market_news",
	"prediction_markets",
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.AnalysisID == "" {
		return ValidationError{"meta.analysis_id", "required"}
	}
	if cfg.Meta.Schedule == "" {
		return ValidationError{"meta.schedule", "required"}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
		return ValidationError{"meta.timezone", err.Error()}
	}

	// === Cache ===
	for field, sec := range map[string]int{
		"cache.macro_snapshot_sec":     cfg.Cache.MacroSnapshotSec,
		"cache.quotes_sec":             cfg.Cache.QuotesSec,
		"cache.news_sec":               cfg.Cache.NewsSec,
		"cache.prediction_markets_sec": cfg.Cache.PredictionMarketsSec,
	} {
		if sec < 0 {
			return ValidationError{field, "must be >= 0"}
		}
	}

	// === Providers ===
	for _, need := range requiredNeeds {
		spec, ok := cfg.Providers[need]
		if !ok {
			return ValidationError{"providers." + need, "required"}
		}
		if len(spec.Adapters) == 0 {
			return ValidationError{"providers." + need + ".adapters", "must not be empty"}
		}
		if spec.Attempts < 1 {
			return ValidationError{"providers." + need + ".attempts", "must be >= 1"}
		}
	}
	for need := range cfg.Providers {
		known := false
		for _, r := range requiredNeeds {
			if need == r {
				known = true
				break
			}
		}
		if !known {
			return ValidationError{"providers." + need, "unknown need"}
		}
	}

	// === Signals ===
	s := cfg.Signals
	if s.HawkishWeight <= 0 || s.HawkishWeight > 1 {
		return ValidationError{"signals.hawkish_weight", "must be in (0, 1]"}
	}
	if s.SentimentBullishMin <= 0 {
		return ValidationError{"signals.sentiment_bullish_min", "must be > 0"}
	}
	if s.SentimentBearishMax >= 0 {
		return ValidationError{"signals.sentiment_bearish_max", "must be < 0"}
	}
	if !(s.VIXCalmMax < s.VIXElevatedLow && s.VIXElevatedLow < s.VIXElevatedHigh && s.VIXElevatedHigh < s.VIXSpikeMin) {
		return ValidationError{"signals", "vix bands must satisfy calm_max < elevated_low < elevated_high < spike_min"}
	}
	if s.YieldInversionSpread >= 0 {
		return ValidationError{"signals.yield_inversion_spread", "must be < 0"}
	}
	if s.FedCutProbMin <= 0 || s.FedCutProbMin >= 1 {
		return ValidationError{"signals.fed_cut_prob_min", "must be in (0, 1)"}
	}

	// === Rules ===
	seen := make(map[string]bool, len(cfg.Rules))
	for i, r := range cfg.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if r.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[r.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate rule name %q", r.Name)}
		}
		seen[r.Name] = true
		if r.Metric == "" {
			return ValidationError{field + ".metric", "required"}
		}
		if !validOperators[r.Operator] {
			return ValidationError{field + ".operator", fmt.Sprintf("unknown operator %q", r.Operator)}
		}
		if !contracts.Severity(r.Severity).IsValid() {
			return ValidationError{field + ".severity", fmt.Sprintf("unknown severity %q", r.Severity)}
		}
	}

	return nil
}
