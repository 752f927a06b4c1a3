package analysisconfig

import "time"

// Config는 탑다운 분석 파이프라인의 전체 설정
type Config struct {
	Meta      Meta                `yaml:"meta" json:"meta"`
	Cache     CacheTTLs           `yaml:"cache" json:"cache"`
	Providers map[string]NeedSpec `yaml:"providers" json:"providers"`
	Signals   SignalParams        `yaml:"signals" json:"signals"`
	Rules     []Rule              `yaml:"rules" json:"rules"`
}

// Meta 메타 정보
type Meta struct {
	AnalysisID string `yaml:"analysis_id" json:"analysis_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
	Schedule   string `yaml:"schedule" json:"schedule"` // cron expression
}

// CacheTTLs holds per-category cache lifetimes in seconds.
// Zero disables caching for that category.
type CacheTTLs struct {
	MacroSnapshotSec     int `yaml:"macro_snapshot_sec" json:"macro_snapshot_sec"`
	QuotesSec            int `yaml:"quotes_sec" json:"quotes_sec"`
	NewsSec              int `yaml:"news_sec" json:"news_sec"`
	PredictionMarketsSec int `yaml:"prediction_markets_sec" json:"prediction_markets_sec"`
}

// TTL returns the cache lifetime for a logical need
func (c CacheTTLs) TTL(need string) time.Duration {
	switch need {
	case "macro_snapshot":
		return time.Duration(c.MacroSnapshotSec) * time.Second
	case "equity_quotes", "crypto_quotes":
		return time.Duration(c.QuotesSec) * time.Second
	case "market_news":
		return time.Duration(c.NewsSec) * time.Second
	case "prediction_markets":
		return time.Duration(c.PredictionMarketsSec) * time.Second
	}
	return 0
}

// NeedSpec binds a logical data need to an ordered adapter chain
type NeedSpec struct {
	Adapters []string `yaml:"adapters" json:"adapters"` // priority order, first is primary
	Optional bool     `yaml:"optional" json:"optional"` // optional needs degrade silently
	Attempts int      `yaml:"attempts" json:"attempts"` // per-adapter attempts for transient failures
}

// SignalParams 시그널 산출 파라미터
type SignalParams struct {
	HawkishWeight        float64 `yaml:"hawkish_weight" json:"hawkish_weight"`                 // stance score scaling
	SentimentBullishMin  float64 `yaml:"sentiment_bullish_min" json:"sentiment_bullish_min"`   // avg sentiment above -> bullish
	SentimentBearishMax  float64 `yaml:"sentiment_bearish_max" json:"sentiment_bearish_max"`   // avg sentiment below -> bearish
	VIXCalmMax           float64 `yaml:"vix_calm_max" json:"vix_calm_max"`
	VIXElevatedLow       float64 `yaml:"vix_elevated_low" json:"vix_elevated_low"`
	VIXElevatedHigh      float64 `yaml:"vix_elevated_high" json:"vix_elevated_high"`
	VIXSpikeMin          float64 `yaml:"vix_spike_min" json:"vix_spike_min"`
	YieldInversionSpread float64 `yaml:"yield_inversion_spread" json:"yield_inversion_spread"` // 2s10s below this -> inversion
	FedCutProbMin        float64 `yaml:"fed_cut_prob_min" json:"fed_cut_prob_min"`             // cut-expected signal threshold
}

// Rule is one declarative alert rule. Rules are evaluated in file order
// against the run's derived metrics.
type Rule struct {
	Name            string  `yaml:"name" json:"name"`
	Metric          string  `yaml:"metric" json:"metric"`
	Operator        string  `yaml:"operator" json:"operator"` // < <= > >= == !=
	Threshold       float64 `yaml:"threshold" json:"threshold"`
	Severity        string  `yaml:"severity" json:"severity"`
	Title           string  `yaml:"title" json:"title"`
	MessageTemplate string  `yaml:"message_template" json:"message_template"` // {value} and {threshold} placeholders
}

// Snapshot 설정 스냅샷 (재현성용)
type Snapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	AnalysisID string    `json:"analysis_id"`
	CreatedAt  time.Time `json:"created_at"`
}
