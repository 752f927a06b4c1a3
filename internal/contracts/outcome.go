package contracts

import "time"

// ErrorClass classifies a provider failure for retry/propagation decisions
type ErrorClass string

const (
	ClassTimeout     ErrorClass = "timeout"
	ClassRateLimited ErrorClass = "rate_limited"
	ClassMalformed   ErrorClass = "malformed"
	ClassUnavailable ErrorClass = "unavailable"
	ClassAuth        ErrorClass = "auth"
	ClassNotFound    ErrorClass = "not_found"
)

// Transient reports whether a failure of this class is worth retrying
func (c ErrorClass) Transient() bool {
	switch c {
	case ClassTimeout, ClassRateLimited, ClassUnavailable:
		return true
	}
	return false
}

// Observation is one dated point of a time series
type Observation struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Value float64 `json:"value"`
}

// Quote is a single asset quote with 24h change
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"` // fraction, e.g. -0.015
}

// Article is a news article, optionally with a provider sentiment score
type Article struct {
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	URL         string   `json:"url,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Sentiment   *float64 `json:"sentiment,omitempty"` // -1..1 when the source scores it
	PublishedAt string   `json:"published_at,omitempty"`
}

// PredictionMarket is one prediction-market contract snapshot
type PredictionMarket struct {
	Question    string  `json:"question"`
	Probability float64 `json:"probability"` // price of YES, 0..1
	Volume      float64 `json:"volume,omitempty"`
}

// ProviderPayload carries whatever a provider fetched. Only the fields
// relevant to the logical need are populated; stages fold them into the
// matching raw-data bucket.
type ProviderPayload struct {
	Metrics  map[string]float64       `json:"metrics,omitempty"`
	Series   map[string][]Observation `json:"series,omitempty"`
	Quotes   map[string]Quote         `json:"quotes,omitempty"`
	Articles []Article                `json:"articles,omitempty"`
	Markets  []PredictionMarket       `json:"markets,omitempty"`
}

// Outcome is the typed result of one provider fetch. Adapters never raise
// past their boundary: every failure is folded into an Outcome and the
// caller decides severity.
type Outcome struct {
	Success      bool
	Payload      *ProviderPayload // present iff Success
	Class        ErrorClass       // set iff !Success
	Err          string           // human-readable failure, iff !Success
	Elapsed      time.Duration
	Adapter      string
	FromFallback bool
	FromCache    bool
}

// OK builds a successful outcome
func OK(adapter string, payload *ProviderPayload, elapsed time.Duration) Outcome {
	return Outcome{
		Success: true,
		Payload: payload,
		Elapsed: elapsed,
		Adapter: adapter,
	}
}

// Fail builds a failed outcome
func Fail(adapter string, class ErrorClass, err string, elapsed time.Duration) Outcome {
	return Outcome{
		Success: false,
		Class:   class,
		Err:     err,
		Elapsed: elapsed,
		Adapter: adapter,
	}
}
