// Package signals turns raw run-state buckets into standardized directional
// signals. Builders are pure: same inputs give same outputs, timestamps come
// from the run's as-of time, and range violations surface as notes instead
// of log calls so callers can fold them into the run's error trail.
package signals

import (
	"math"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
)

// Builder derives signals using configured thresholds
// ⭐ SSOT: 시그널 산출 공식은 이 패키지에서만
type Builder struct {
	params analysisconfig.SignalParams
}

// NewBuilder creates a signal builder with the given parameters
func NewBuilder(params analysisconfig.SignalParams) *Builder {
	return &Builder{params: params}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func clampMax(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}
