package signals

import (
	"math"
	"time"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

// News derives a sentiment signal from the news bucket. Confidence grows
// with the number of scored articles and collapses when the serving source
// carries no sentiment at all.
func (b *Builder) News(news contracts.NewsData, runID string, asof time.Time) ([]contracts.Signal, []string) {
	if len(news.Articles) == 0 {
		return nil, nil
	}

	summary := news.Summary

	// Fallback sources deliver headlines without scores; all we can say
	// is that news exists.
	if summary.ScoredCount == 0 {
		evidence := map[string]interface{}{
			"source":        news.Source,
			"article_count": summary.ArticleCount,
			"note":          "no sentiment data from serving source",
		}
		sig, n := contracts.NewSignal(contracts.SignalSentimentMixed, contracts.DirectionNeutral,
			0, 0.3, contracts.StageNewsIngest, evidence, runID, asof)
		return []contracts.Signal{sig}, n
	}

	avg := summary.AvgSentiment
	evidence := map[string]interface{}{
		"source":        news.Source,
		"avg_sentiment": avg,
		"article_count": summary.ArticleCount,
		"scored_count":  summary.ScoredCount,
	}

	confidence := math.Min(0.5+float64(summary.ArticleCount)/100, 0.9)

	var sig contracts.Signal
	var n []string
	switch {
	case avg >= b.params.SentimentBullishMin:
		sig, n = contracts.NewSignal(contracts.SignalSentimentBullish, contracts.DirectionBullish,
			clampMax(avg*2, 1.0), confidence, contracts.StageNewsIngest, evidence, runID, asof)
	case avg <= b.params.SentimentBearishMax:
		sig, n = contracts.NewSignal(contracts.SignalSentimentBearish, contracts.DirectionBearish,
			clampMin(avg*2, -1.0), confidence, contracts.StageNewsIngest, evidence, runID, asof)
	default:
		sig, n = contracts.NewSignal(contracts.SignalSentimentMixed, contracts.DirectionNeutral,
			avg, confidence*0.8, contracts.StageNewsIngest, evidence, runID, asof)
	}
	return []contracts.Signal{sig}, n
}

// Sentiment derives policy-expectation signals from prediction markets.
// The bucket is optional; absence simply yields no signals.
func (b *Builder) Sentiment(s contracts.SentimentData, runID string, asof time.Time) ([]contracts.Signal, []string) {
	if !s.Available || s.FedCutProbability == nil {
		return nil, nil
	}

	p := *s.FedCutProbability
	evidence := map[string]interface{}{
		"fed_cut_probability": p,
		"market_count":        len(s.Markets),
	}

	switch {
	case p >= b.params.FedCutProbMin:
		sig, n := contracts.NewSignal(contracts.SignalFedCutExpected, contracts.DirectionDovish,
			clampMax((p-0.5)*2, 1.0), 0.6, contracts.StageNewsIngest, evidence, runID, asof)
		return []contracts.Signal{sig}, n
	case p <= 1-b.params.FedCutProbMin:
		sig, n := contracts.NewSignal(contracts.SignalFedHikeExpected, contracts.DirectionHawkish,
			clampMax((0.5-p)*2, 1.0), 0.6, contracts.StageNewsIngest, evidence, runID, asof)
		return []contracts.Signal{sig}, n
	}
	return nil, nil
}

// Aggregate folds a run's signals into a confidence-weighted summary
func Aggregate(sigs []contracts.Signal) contracts.SignalsSummary {
	if len(sigs) == 0 {
		return contracts.SignalsSummary{OverallDirection: contracts.DirectionNeutral}
	}

	var totalWeight, weighted float64
	for _, s := range sigs {
		totalWeight += s.Confidence
		weighted += s.Score * s.Confidence
	}

	var avg float64
	if totalWeight > 0 {
		avg = weighted / totalWeight
	}

	direction := contracts.DirectionNeutral
	if avg > 0.2 {
		direction = contracts.DirectionBullish
	} else if avg < -0.2 {
		direction = contracts.DirectionBearish
	}

	var significant []contracts.Signal
	for _, s := range sigs {
		if s.Significant() {
			significant = append(significant, s)
		}
	}

	key := append([]contracts.Signal(nil), significant...)
	// strongest weighted signals first
	for i := 1; i < len(key); i++ {
		for j := i; j > 0 && rank(key[j]) > rank(key[j-1]); j-- {
			key[j], key[j-1] = key[j-1], key[j]
		}
	}
	if len(key) > 5 {
		key = key[:5]
	}

	return contracts.SignalsSummary{
		OverallDirection: direction,
		OverallScore:     math.Round(avg*1000) / 1000,
		SignalCount:      len(sigs),
		SignificantCount: len(significant),
		KeySignals:       key,
	}
}

func rank(s contracts.Signal) float64 {
	return math.Abs(s.Score) * s.Confidence
}
