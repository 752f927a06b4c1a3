package signals

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/contracts"
)

var testAsOf = time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)

func testParams() analysisconfig.SignalParams {
	return analysisconfig.SignalParams{
		HawkishWeight:        0.3,
		SentimentBullishMin:  0.15,
		SentimentBearishMax:  -0.15,
		VIXCalmMax:           15,
		VIXElevatedLow:       20,
		VIXElevatedHigh:      25,
		VIXSpikeMin:          30,
		YieldInversionSpread: -0.2,
		FedCutProbMin:        0.7,
	}
}

func findSignal(t *testing.T, sigs []contracts.Signal, name string) contracts.Signal {
	t.Helper()
	for _, s := range sigs {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("signal %q not found in %d signals", name, len(sigs))
	return contracts.Signal{}
}

func hasSignal(sigs []contracts.Signal, name string) bool {
	for _, s := range sigs {
		if s.Name == name {
			return true
		}
	}
	return false
}

func macroData(rate, cpi float64) contracts.MacroData {
	return contracts.MacroData{
		Indicators: map[string]contracts.Observation{
			"FEDFUNDS": {Date: "2025-06-01", Value: rate},
		},
		Inflation: map[string]float64{"cpi_yoy": cpi},
	}
}

func TestHawkishBiasHighRateAndInflation(t *testing.T) {
	b := NewBuilder(testParams())

	// policy rate 5.25 and CPI 3.2: stance score 1.5 + 1.0 = 2.5
	sigs, notes := b.Macro(macroData(5.25, 3.2), "run1", testAsOf)
	require.Empty(t, notes)

	sig := findSignal(t, sigs, contracts.SignalHawkishBias)
	assert.Equal(t, contracts.DirectionHawkish, sig.Direction)
	assert.InDelta(t, 0.75, sig.Score, 1e-9)
	assert.InDelta(t, 0.8, sig.Confidence, 0.06)
	assert.Equal(t, 5.25, sig.Evidence["fed_funds_rate"])
	assert.Equal(t, testAsOf, sig.Timestamp)
}

func TestDovishBiasLowRateAndInflation(t *testing.T) {
	b := NewBuilder(testParams())

	// rate 1.0 (-1.5) and CPI 1.2 (-1.0): stance score -2.5
	sigs, _ := b.Macro(macroData(1.0, 1.2), "run1", testAsOf)

	sig := findSignal(t, sigs, contracts.SignalDovishBias)
	assert.Equal(t, contracts.DirectionDovish, sig.Direction)
	assert.InDelta(t, -0.75, sig.Score, 1e-9)
}

func TestFedNeutralWhenStanceUnclear(t *testing.T) {
	b := NewBuilder(testParams())

	// rate 2.75 (0) and CPI 2.2 (0)
	sigs, _ := b.Macro(macroData(2.75, 2.2), "run1", testAsOf)

	sig := findSignal(t, sigs, "fed_neutral")
	assert.Equal(t, contracts.DirectionNeutral, sig.Direction)
	assert.Equal(t, 0.4, sig.Confidence)
}

func TestInflationBands(t *testing.T) {
	b := NewBuilder(testParams())

	hot, _ := b.Macro(macroData(3.0, 4.5), "r", testAsOf)
	sig := findSignal(t, hot, contracts.SignalInflationRising)
	assert.Equal(t, contracts.DirectionBearish, sig.Direction)
	assert.InDelta(t, (4.5-2.0)/3.0, sig.Score, 1e-9)
	assert.Equal(t, 0.8, sig.Confidence)

	cool, _ := b.Macro(macroData(3.0, 1.1), "r", testAsOf)
	sig = findSignal(t, cool, contracts.SignalInflationCooling)
	assert.Equal(t, contracts.DirectionBullish, sig.Direction)

	stable, _ := b.Macro(macroData(3.0, 2.2), "r", testAsOf)
	assert.True(t, hasSignal(stable, "inflation_stable"))
}

func TestYieldInversion(t *testing.T) {
	b := NewBuilder(testParams())

	spread := -0.45
	macro := macroData(3.0, 2.2)
	macro.YieldSpread = &spread

	sigs, _ := b.Macro(macro, "run1", testAsOf)
	sig := findSignal(t, sigs, contracts.SignalYieldInversion)
	assert.Equal(t, contracts.DirectionBearish, sig.Direction)
	assert.InDelta(t, 0.9, sig.Score, 1e-9)
	assert.Equal(t, 0.9, sig.Confidence)

	// a mildly negative spread above the threshold is not an inversion
	shallow := -0.1
	macro.YieldSpread = &shallow
	sigs, _ = b.Macro(macro, "run1", testAsOf)
	assert.False(t, hasSignal(sigs, contracts.SignalYieldInversion))
}

func TestLaborBands(t *testing.T) {
	b := NewBuilder(testParams())

	mk := func(u float64) contracts.MacroData {
		return contracts.MacroData{
			Indicators: map[string]contracts.Observation{
				"UNRATE": {Date: "2025-06-01", Value: u},
			},
		}
	}

	tight, _ := b.Macro(mk(3.6), "r", testAsOf)
	assert.True(t, hasSignal(tight, contracts.SignalLaborStrong))

	weak, _ := b.Macro(mk(6.0), "r", testAsOf)
	sig := findSignal(t, weak, contracts.SignalLaborWeak)
	assert.Equal(t, contracts.DirectionBearish, sig.Direction)

	normal, _ := b.Macro(mk(4.7), "r", testAsOf)
	assert.True(t, hasSignal(normal, "labor_neutral"))
}

func marketData(changes map[string]float64, vix *float64) contracts.MarketData {
	assets := make(map[string]contracts.Quote, len(changes))
	for sym, ch := range changes {
		assets[sym] = contracts.Quote{Symbol: sym, Price: 100, Change24h: ch}
	}
	return contracts.MarketData{Assets: assets, VIXLevel: vix}
}

func TestRiskOffSignal(t *testing.T) {
	b := NewBuilder(testParams())

	sigs, _ := b.CrossAsset(marketData(map[string]float64{
		"SPY":      -0.02, // -1.5
		"BTC-USDT": -0.04, // -1.5
		"GLD":      0.015, // -0.5
	}, nil), "run1", testAsOf)

	sig := findSignal(t, sigs, contracts.SignalRiskOff)
	assert.Equal(t, contracts.DirectionBearish, sig.Direction)
	assert.InDelta(t, -1.0, sig.Score, 1e-9, "-3.5/3 clamps to -1")
}

func TestVIXBands(t *testing.T) {
	b := NewBuilder(testParams())

	mk := func(v float64) []contracts.Signal {
		sigs, _ := b.CrossAsset(marketData(nil, &v), "r", testAsOf)
		return sigs
	}

	spike := findSignal(t, mk(35), contracts.SignalVIXSpike)
	assert.InDelta(t, 0.75, spike.Score, 1e-9)
	assert.Equal(t, 0.9, spike.Confidence)

	high := findSignal(t, mk(26), contracts.SignalVIXElevated)
	assert.Equal(t, 0.5, high.Score)

	low := findSignal(t, mk(21), contracts.SignalVIXElevated)
	assert.Equal(t, 0.3, low.Score)

	calm := findSignal(t, mk(12), contracts.SignalVIXCalm)
	assert.Equal(t, contracts.DirectionBullish, calm.Direction)

	assert.True(t, hasSignal(mk(17), "vix_normal"))
}

func TestFlightToSafety(t *testing.T) {
	b := NewBuilder(testParams())

	sigs, _ := b.CrossAsset(marketData(map[string]float64{
		"SPY": -0.02,
		"GLD": 0.01,
		"TLT": 0.008,
	}, nil), "run1", testAsOf)

	sig := findSignal(t, sigs, contracts.SignalFlightToSafety)
	assert.InDelta(t, 0.8, sig.Score, 1e-9, "two safe havens up")

	// equities down but nothing bid: no safety signal
	sigs, _ = b.CrossAsset(marketData(map[string]float64{
		"SPY": -0.02,
		"GLD": -0.002,
	}, nil), "run1", testAsOf)
	assert.False(t, hasSignal(sigs, contracts.SignalFlightToSafety))
}

func TestCryptoMomentum(t *testing.T) {
	b := NewBuilder(testParams())

	sigs, _ := b.CrossAsset(marketData(map[string]float64{
		"BTC-USDT": 0.08,
		"ETH-USDT": 0.06,
	}, nil), "run1", testAsOf)

	sig := findSignal(t, sigs, contracts.SignalCryptoMomentum)
	assert.Equal(t, contracts.DirectionBullish, sig.Direction)
	assert.InDelta(t, 0.7, sig.Score, 1e-9, "avg 7% over 10% scale")

	sigs, _ = b.CrossAsset(marketData(map[string]float64{"BTC-USDT": 0.005}, nil), "r", testAsOf)
	assert.True(t, hasSignal(sigs, "crypto_sideways"))
}

func newsData(source string, count, scored int, avg float64) contracts.NewsData {
	articles := make([]contracts.Article, count)
	for i := range articles {
		articles[i] = contracts.Article{Title: "t"}
	}
	return contracts.NewsData{
		Articles: articles,
		Source:   source,
		Summary: contracts.NewsSummary{
			ArticleCount: count,
			ScoredCount:  scored,
			AvgSentiment: avg,
		},
	}
}

func TestNewsSentimentSignals(t *testing.T) {
	b := NewBuilder(testParams())

	bull, _ := b.News(newsData("alphavantage", 40, 40, 0.25), "r", testAsOf)
	sig := findSignal(t, bull, contracts.SignalSentimentBullish)
	assert.InDelta(t, 0.5, sig.Score, 1e-9)
	assert.InDelta(t, 0.9, sig.Confidence, 1e-9)

	bear, _ := b.News(newsData("alphavantage", 20, 20, -0.3), "r", testAsOf)
	sig = findSignal(t, bear, contracts.SignalSentimentBearish)
	assert.InDelta(t, -0.6, sig.Score, 1e-9)

	mixed, _ := b.News(newsData("alphavantage", 20, 20, 0.05), "r", testAsOf)
	sig = findSignal(t, mixed, contracts.SignalSentimentMixed)
	assert.Equal(t, contracts.DirectionNeutral, sig.Direction)
}

func TestNewsWithoutScoresIsLowConfidenceNeutral(t *testing.T) {
	b := NewBuilder(testParams())

	sigs, _ := b.News(newsData("finnhub", 10, 0, 0), "r", testAsOf)
	sig := findSignal(t, sigs, contracts.SignalSentimentMixed)
	assert.Equal(t, 0.0, sig.Score)
	assert.Equal(t, 0.3, sig.Confidence)
}

func TestNewsEmptyBucketYieldsNothing(t *testing.T) {
	b := NewBuilder(testParams())
	sigs, notes := b.News(contracts.NewsData{}, "r", testAsOf)
	assert.Empty(t, sigs)
	assert.Empty(t, notes)
}

func TestFedCutExpectation(t *testing.T) {
	b := NewBuilder(testParams())

	p := 0.82
	sigs, _ := b.Sentiment(contracts.SentimentData{Available: true, FedCutProbability: &p}, "r", testAsOf)
	sig := findSignal(t, sigs, contracts.SignalFedCutExpected)
	assert.Equal(t, contracts.DirectionDovish, sig.Direction)
	assert.InDelta(t, 0.64, sig.Score, 1e-9)

	hike := 0.2
	sigs, _ = b.Sentiment(contracts.SentimentData{Available: true, FedCutProbability: &hike}, "r", testAsOf)
	assert.True(t, hasSignal(sigs, contracts.SignalFedHikeExpected))

	mid := 0.5
	sigs, _ = b.Sentiment(contracts.SentimentData{Available: true, FedCutProbability: &mid}, "r", testAsOf)
	assert.Empty(t, sigs)

	sigs, _ = b.Sentiment(contracts.SentimentData{Available: false}, "r", testAsOf)
	assert.Empty(t, sigs)
}

// Randomized and boundary inputs must never escape the score/confidence ranges
func TestBuilderOutputsAlwaysInRange(t *testing.T) {
	b := NewBuilder(testParams())
	rng := rand.New(rand.NewSource(42))

	check := func(sigs []contracts.Signal) {
		for _, s := range sigs {
			assert.GreaterOrEqual(t, s.Score, -1.0, "signal %s", s.Name)
			assert.LessOrEqual(t, s.Score, 1.0, "signal %s", s.Name)
			assert.GreaterOrEqual(t, s.Confidence, 0.0, "signal %s", s.Name)
			assert.LessOrEqual(t, s.Confidence, 1.0, "signal %s", s.Name)
		}
	}

	boundary := []float64{-1, 0, 1, 1.5, -1.5, 100, -100}
	for _, rate := range boundary {
		for _, cpi := range boundary {
			sigs, _ := b.Macro(macroData(rate, cpi), "r", testAsOf)
			check(sigs)
		}
	}

	for i := 0; i < 500; i++ {
		vix := rng.Float64()*80 - 10
		sigs, _ := b.CrossAsset(marketData(map[string]float64{
			"SPY":      rng.Float64()*0.4 - 0.2,
			"BTC-USDT": rng.Float64()*0.8 - 0.4,
			"ETH-USDT": rng.Float64()*0.8 - 0.4,
			"GLD":      rng.Float64()*0.1 - 0.05,
			"TLT":      rng.Float64()*0.1 - 0.05,
		}, &vix), "r", testAsOf)
		check(sigs)

		sigs, _ = b.News(newsData("alphavantage", rng.Intn(200), 1+rng.Intn(100), rng.Float64()*4-2), "r", testAsOf)
		check(sigs)
	}
}

func TestAggregate(t *testing.T) {
	mk := func(name string, score, conf float64) contracts.Signal {
		s, _ := contracts.NewSignal(name, contracts.DirectionNeutral, score, conf,
			contracts.StageMacroIngest, nil, "r", testAsOf)
		return s
	}

	summary := Aggregate([]contracts.Signal{
		mk("a", 0.8, 1.0),
		mk("b", 0.4, 0.5),
		mk("c", -0.1, 0.5),
	})

	// (0.8 + 0.2 - 0.05) / 2.0 = 0.475
	assert.InDelta(t, 0.475, summary.OverallScore, 1e-3)
	assert.Equal(t, contracts.DirectionBullish, summary.OverallDirection)
	assert.Equal(t, 3, summary.SignalCount)
	assert.Equal(t, 2, summary.SignificantCount)
	require.NotEmpty(t, summary.KeySignals)
	assert.Equal(t, "a", summary.KeySignals[0].Name, "strongest signal first")

	empty := Aggregate(nil)
	assert.Equal(t, contracts.DirectionNeutral, empty.OverallDirection)
	assert.Zero(t, empty.SignalCount)
}

func TestAggregateSignificanceNeedsConfidence(t *testing.T) {
	mk := func(name string, score, conf float64) contracts.Signal {
		s, _ := contracts.NewSignal(name, contracts.DirectionNeutral, score, conf,
			contracts.StageMacroIngest, nil, "r", testAsOf)
		return s
	}

	summary := Aggregate([]contracts.Signal{
		mk("strong", 0.8, 0.9),
		mk("noisy", 0.9, 0.3), // strong score, low confidence
	})

	assert.Equal(t, 2, summary.SignalCount)
	assert.Equal(t, 1, summary.SignificantCount)
	require.Len(t, summary.KeySignals, 1)
	assert.Equal(t, "strong", summary.KeySignals[0].Name)
}
