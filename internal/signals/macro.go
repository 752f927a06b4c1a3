package signals

import (
	"math"
	"time"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

// Macro derives policy-stance, inflation, yield-curve and labor signals
// from the macro bucket.
func (b *Builder) Macro(macro contracts.MacroData, runID string, asof time.Time) ([]contracts.Signal, []string) {
	var out []contracts.Signal
	var notes []string

	add := func(sig contracts.Signal, n []string) {
		out = append(out, sig)
		notes = append(notes, n...)
	}

	if sig, n, ok := b.fedStance(macro, runID, asof); ok {
		add(sig, n)
	}
	if sig, n, ok := b.inflationTrend(macro, runID, asof); ok {
		add(sig, n)
	}
	if sig, n, ok := b.yieldCurve(macro, runID, asof); ok {
		add(sig, n)
	}
	if sig, n, ok := b.labor(macro, runID, asof); ok {
		add(sig, n)
	}

	return out, notes
}

// fedStance scores the policy stance from the funds rate and CPI YoY.
// The stance score is additive over both inputs, then scaled into range.
func (b *Builder) fedStance(macro contracts.MacroData, runID string, asof time.Time) (contracts.Signal, []string, bool) {
	var hawkish float64
	evidence := map[string]interface{}{}
	haveInput := false

	if obs, ok := macro.Indicators["FEDFUNDS"]; ok {
		rate := obs.Value
		evidence["fed_funds_rate"] = rate
		haveInput = true

		switch {
		case rate >= 5.0:
			hawkish += 1.5
		case rate >= 4.0:
			hawkish += 1
		case rate >= 3.0:
			hawkish += 0.5
		case rate <= 1.5:
			hawkish -= 1.5
		case rate <= 2.5:
			hawkish -= 0.5
		}
	}

	if cpi, ok := macro.Inflation["cpi_yoy"]; ok {
		evidence["cpi_yoy"] = cpi
		haveInput = true

		switch {
		case cpi > 4.0:
			hawkish += 1.5
		case cpi > 3.0:
			hawkish += 1
		case cpi > 2.5:
			hawkish += 0.5
		case cpi < 1.5:
			hawkish -= 1
		case cpi < 2.0:
			hawkish -= 0.5
		}
	}

	if !haveInput {
		return contracts.Signal{}, nil, false
	}

	evidence["hawkish_score"] = hawkish
	confidence := 0.5 + math.Min(math.Abs(hawkish)*0.1, 0.3)

	var sig contracts.Signal
	var n []string
	switch {
	case hawkish >= 0.5:
		sig, n = contracts.NewSignal(contracts.SignalHawkishBias, contracts.DirectionHawkish,
			clampMax(hawkish*b.params.HawkishWeight, 1.0), confidence,
			contracts.StageMacroIngest, evidence, runID, asof)
	case hawkish <= -0.5:
		sig, n = contracts.NewSignal(contracts.SignalDovishBias, contracts.DirectionDovish,
			clampMin(hawkish*b.params.HawkishWeight, -1.0), confidence,
			contracts.StageMacroIngest, evidence, runID, asof)
	default:
		// stance unclear, still worth reporting
		sig, n = contracts.NewSignal("fed_neutral", contracts.DirectionNeutral,
			hawkish*0.2, 0.4, contracts.StageMacroIngest, evidence, runID, asof)
	}
	return sig, n, true
}

// inflationTrend scores the distance from the 2% target
func (b *Builder) inflationTrend(macro contracts.MacroData, runID string, asof time.Time) (contracts.Signal, []string, bool) {
	cpi, ok := macro.Inflation["cpi_yoy"]
	if !ok {
		return contracts.Signal{}, nil, false
	}

	evidence := map[string]interface{}{"cpi_yoy": cpi}
	if core, ok := macro.Inflation["core_cpi_yoy"]; ok {
		evidence["core_cpi_yoy"] = core
	}

	const target = 2.0
	deviation := cpi - target

	var sig contracts.Signal
	var n []string
	switch {
	case cpi > 3.5:
		sig, n = contracts.NewSignal(contracts.SignalInflationRising, contracts.DirectionBearish,
			clampMax((cpi-target)/3.0, 1.0), 0.8, contracts.StageMacroIngest, evidence, runID, asof)
	case cpi > 2.5:
		sig, n = contracts.NewSignal(contracts.SignalInflationRising, contracts.DirectionBearish,
			clampMax(deviation/2.0, 0.5), 0.6, contracts.StageMacroIngest, evidence, runID, asof)
	case cpi < 1.5:
		sig, n = contracts.NewSignal(contracts.SignalInflationCooling, contracts.DirectionBullish,
			clampMin((target-cpi)/2.0, 0.3), 0.8, contracts.StageMacroIngest, evidence, runID, asof)
	case cpi < 2.0:
		sig, n = contracts.NewSignal(contracts.SignalInflationCooling, contracts.DirectionBullish,
			clampMin(math.Abs(deviation), 0.2), 0.5, contracts.StageMacroIngest, evidence, runID, asof)
	default:
		sig, n = contracts.NewSignal("inflation_stable", contracts.DirectionNeutral,
			deviation*0.2, 0.6, contracts.StageMacroIngest, evidence, runID, asof)
	}
	return sig, n, true
}

// yieldCurve flags an inverted 2s10s curve
func (b *Builder) yieldCurve(macro contracts.MacroData, runID string, asof time.Time) (contracts.Signal, []string, bool) {
	if macro.YieldSpread == nil {
		return contracts.Signal{}, nil, false
	}
	spread := *macro.YieldSpread

	if spread >= b.params.YieldInversionSpread {
		return contracts.Signal{}, nil, false
	}

	evidence := map[string]interface{}{"yield_spread_2y10y": spread}
	sig, n := contracts.NewSignal(contracts.SignalYieldInversion, contracts.DirectionBearish,
		clampMax(math.Abs(spread)/0.5, 1.0), 0.9, contracts.StageMacroIngest, evidence, runID, asof)
	return sig, n, true
}

// labor scores the unemployment rate against the ~4-5% natural range
func (b *Builder) labor(macro contracts.MacroData, runID string, asof time.Time) (contracts.Signal, []string, bool) {
	obs, ok := macro.Indicators["UNRATE"]
	if !ok {
		return contracts.Signal{}, nil, false
	}
	u := obs.Value
	evidence := map[string]interface{}{"unemployment_rate": u}

	var sig contracts.Signal
	var n []string
	switch {
	case u < 4.0:
		sig, n = contracts.NewSignal(contracts.SignalLaborStrong, contracts.DirectionBullish,
			clampMin((4.0-u)/2.0, 0.3), 0.7, contracts.StageMacroIngest, evidence, runID, asof)
	case u < 4.5:
		sig, n = contracts.NewSignal(contracts.SignalLaborStrong, contracts.DirectionBullish,
			0.3, 0.6, contracts.StageMacroIngest, evidence, runID, asof)
	case u > 5.5:
		sig, n = contracts.NewSignal(contracts.SignalLaborWeak, contracts.DirectionBearish,
			clampMax((u-4.0)/3.0, 1.0), 0.7, contracts.StageMacroIngest, evidence, runID, asof)
	case u > 5.0:
		sig, n = contracts.NewSignal(contracts.SignalLaborWeak, contracts.DirectionBearish,
			0.3, 0.5, contracts.StageMacroIngest, evidence, runID, asof)
	default:
		sig, n = contracts.NewSignal("labor_neutral", contracts.DirectionNeutral,
			0, 0.5, contracts.StageMacroIngest, evidence, runID, asof)
	}
	return sig, n, true
}
