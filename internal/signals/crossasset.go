package signals

import (
	"math"
	"time"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

// CrossAsset derives risk-sentiment signals from equity, safe-haven,
// crypto and volatility data.
func (b *Builder) CrossAsset(market contracts.MarketData, runID string, asof time.Time) ([]contracts.Signal, []string) {
	var out []contracts.Signal
	var notes []string

	add := func(sig contracts.Signal, n []string) {
		out = append(out, sig)
		notes = append(notes, n...)
	}

	if sig, n, ok := b.riskSentiment(market, runID, asof); ok {
		add(sig, n)
	}
	if sig, n, ok := b.vix(market, runID, asof); ok {
		add(sig, n)
	}
	if sig, n, ok := b.flightToSafety(market, runID, asof); ok {
		add(sig, n)
	}
	if sig, n, ok := b.cryptoMomentum(market, runID, asof); ok {
		add(sig, n)
	}

	return out, notes
}

func change(market contracts.MarketData, symbol string) (float64, bool) {
	q, ok := market.Assets[symbol]
	if !ok {
		return 0, false
	}
	return q.Change24h, true
}

// riskSentiment scores overall risk appetite from SPY, BTC and gold moves
func (b *Builder) riskSentiment(market contracts.MarketData, runID string, asof time.Time) (contracts.Signal, []string, bool) {
	var risk float64
	evidence := map[string]interface{}{}
	haveInput := false

	if spy, ok := change(market, "SPY"); ok {
		evidence["spy_24h"] = round2(spy * 100)
		haveInput = true
		switch {
		case spy > 0.015:
			risk += 1.5
		case spy > 0.005:
			risk += 1
		case spy > 0:
			risk += 0.5
		case spy < -0.015:
			risk -= 1.5
		case spy < -0.005:
			risk -= 1
		case spy < 0:
			risk -= 0.5
		}
	}

	if btc, ok := change(market, "BTC-USDT"); ok {
		evidence["btc_24h"] = round2(btc * 100)
		haveInput = true
		switch {
		case btc > 0.03:
			risk += 1.5
		case btc > 0.01:
			risk += 1
		case btc > 0:
			risk += 0.3
		case btc < -0.03:
			risk -= 1.5
		case btc < -0.01:
			risk -= 1
		case btc < 0:
			risk -= 0.3
		}
	}

	// Gold moves against risk appetite
	if gld, ok := change(market, "GLD"); ok {
		evidence["gold_24h"] = round2(gld * 100)
		haveInput = true
		if gld > 0.01 {
			risk -= 0.5
		} else if gld < -0.01 {
			risk += 0.5
		}
	}

	if !haveInput {
		return contracts.Signal{}, nil, false
	}

	confidence := 0.4 + math.Min(math.Abs(risk)*0.1, 0.4)

	var sig contracts.Signal
	var n []string
	switch {
	case risk >= 1.0:
		sig, n = contracts.NewSignal(contracts.SignalRiskOn, contracts.DirectionBullish,
			clampMax(risk/3, 1.0), confidence, contracts.StageCrossAssetIngest, evidence, runID, asof)
	case risk <= -1.0:
		sig, n = contracts.NewSignal(contracts.SignalRiskOff, contracts.DirectionBearish,
			clampMin(risk/3, -1.0), confidence, contracts.StageCrossAssetIngest, evidence, runID, asof)
	default:
		sig, n = contracts.NewSignal("market_neutral", contracts.DirectionNeutral,
			risk/3, 0.4, contracts.StageCrossAssetIngest, evidence, runID, asof)
	}
	return sig, n, true
}

// vix buckets the volatility level into spike/elevated/calm bands
func (b *Builder) vix(market contracts.MarketData, runID string, asof time.Time) (contracts.Signal, []string, bool) {
	if market.VIXLevel == nil {
		return contracts.Signal{}, nil, false
	}
	v := *market.VIXLevel
	evidence := map[string]interface{}{"vix_level": round2(v)}

	var sig contracts.Signal
	var n []string
	switch {
	case v >= b.params.VIXSpikeMin:
		sig, n = contracts.NewSignal(contracts.SignalVIXSpike, contracts.DirectionBearish,
			clampMax((v-20)/20, 1.0), 0.9, contracts.StageCrossAssetIngest, evidence, runID, asof)
	case v >= b.params.VIXElevatedHigh:
		sig, n = contracts.NewSignal(contracts.SignalVIXElevated, contracts.DirectionBearish,
			0.5, 0.8, contracts.StageCrossAssetIngest, evidence, runID, asof)
	case v >= b.params.VIXElevatedLow:
		sig, n = contracts.NewSignal(contracts.SignalVIXElevated, contracts.DirectionBearish,
			0.3, 0.6, contracts.StageCrossAssetIngest, evidence, runID, asof)
	case v < b.params.VIXCalmMax:
		sig, n = contracts.NewSignal(contracts.SignalVIXCalm, contracts.DirectionBullish,
			0.4, 0.7, contracts.StageCrossAssetIngest, evidence, runID, asof)
	default:
		sig, n = contracts.NewSignal("vix_normal", contracts.DirectionNeutral,
			0, 0.5, contracts.StageCrossAssetIngest, evidence, runID, asof)
	}
	return sig, n, true
}

// flightToSafety fires when equities fall while gold or long bonds rise
func (b *Builder) flightToSafety(market contracts.MarketData, runID string, asof time.Time) (contracts.Signal, []string, bool) {
	spy, ok := change(market, "SPY")
	if !ok || spy >= -0.01 {
		return contracts.Signal{}, nil, false
	}

	evidence := map[string]interface{}{"spy_24h": spy}
	var safety float64

	if gld, ok := change(market, "GLD"); ok && gld > 0.005 {
		safety++
		evidence["gold_24h"] = gld
	}
	if tlt, ok := change(market, "TLT"); ok && tlt > 0.005 {
		safety++
		evidence["tlt_24h"] = tlt
	}

	if safety < 1 {
		return contracts.Signal{}, nil, false
	}

	sig, n := contracts.NewSignal(contracts.SignalFlightToSafety, contracts.DirectionBearish,
		clampMax(safety*0.4, 1.0), 0.7, contracts.StageCrossAssetIngest, evidence, runID, asof)
	return sig, n, true
}

// cryptoMomentum scores the average BTC/ETH move
func (b *Builder) cryptoMomentum(market contracts.MarketData, runID string, asof time.Time) (contracts.Signal, []string, bool) {
	btc, ok := change(market, "BTC-USDT")
	if !ok {
		return contracts.Signal{}, nil, false
	}

	evidence := map[string]interface{}{"btc_24h": round2(btc * 100)}
	avg := btc
	if eth, ok := change(market, "ETH-USDT"); ok {
		evidence["eth_24h"] = round2(eth * 100)
		avg = (btc + eth) / 2
	}

	var sig contracts.Signal
	var n []string
	switch {
	case avg > 0.05:
		sig, n = contracts.NewSignal(contracts.SignalCryptoMomentum, contracts.DirectionBullish,
			clampMax(avg/0.1, 1.0), 0.7, contracts.StageCrossAssetIngest, evidence, runID, asof)
	case avg > 0.02:
		sig, n = contracts.NewSignal(contracts.SignalCryptoMomentum, contracts.DirectionBullish,
			avg/0.1, 0.5, contracts.StageCrossAssetIngest, evidence, runID, asof)
	case avg < -0.05:
		sig, n = contracts.NewSignal(contracts.SignalCryptoMomentum, contracts.DirectionBearish,
			clampMin(avg/0.1, -1.0), 0.7, contracts.StageCrossAssetIngest, evidence, runID, asof)
	case avg < -0.02:
		sig, n = contracts.NewSignal(contracts.SignalCryptoMomentum, contracts.DirectionBearish,
			avg/0.1, 0.5, contracts.StageCrossAssetIngest, evidence, runID, asof)
	default:
		sig, n = contracts.NewSignal("crypto_sideways", contracts.DirectionNeutral,
			avg/0.1, 0.4, contracts.StageCrossAssetIngest, evidence, runID, asof)
	}
	return sig, n, true
}
