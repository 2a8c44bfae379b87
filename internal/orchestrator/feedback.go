package orchestrator

import (
	"math"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/records"
)

// AdjustBias applies the feedback rule for one experiment status and returns
// the new complexity bias. Failures lower it by the failure step, floored at
// the minimum; successes raise it by the success step, capped at the maximum.
// Anything else leaves it alone.
func AdjustBias(p config.Params, status records.Status) float64 {
	switch {
	case status.Failed():
		return math.Max(p.MinComplexityBias, p.ComplexityBias-p.BiasFailureStep)
	case status == records.StatusSuccess:
		return math.Min(p.MaxComplexityBias, p.ComplexityBias+p.BiasSuccessStep)
	default:
		return p.ComplexityBias
	}
}

// Scale derives the chaos, deletion and obscurity chances and the decay
// window from the current bias. Chances rise with the bias and the decay
// window shrinks, each interpolated between its configured bounds.
func Scale(p config.Params) config.Params {
	t := normalizedBias(p)
	p.ChaosIntensity = lerp(p.MinChaosIntensity, p.MaxChaosIntensity, t)
	p.DeletionChance = lerp(p.MinDeletionChance, p.MaxDeletionChance, t)
	p.ObscurityChance = lerp(p.MinObscurityChance, p.MaxObscurityChance, t)
	p.DecayWindowSeconds = lerp(p.MaxDecayWindowSeconds, p.MinDecayWindowSeconds, t)
	return p
}

func normalizedBias(p config.Params) float64 {
	span := p.MaxComplexityBias - p.MinComplexityBias
	if span <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, (p.ComplexityBias-p.MinComplexityBias)/span))
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}
