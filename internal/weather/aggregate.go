package weather

import (
	"math"
)

// ComfortWeights maps each condition to its share of the comfort penalty.
// Conditions without a weight use Residual.
type ComfortWeights struct {
	Weights  map[Condition]float64
	Residual float64
}

// DefaultComfortWeights weights heat and cold 0.3, rain 0.25 and wind 0.15.
func DefaultComfortWeights() ComfortWeights {
	return ComfortWeights{
		Weights: map[Condition]float64{
			ConditionVeryHot:    0.3,
			ConditionVeryCold:   0.3,
			ConditionHeavyRain:  0.25,
			ConditionStrongWind: 0.15,
		},
		Residual: 0.1,
	}
}

func (w ComfortWeights) weight(c Condition) float64 {
	if v, ok := w.Weights[c]; ok {
		return v
	}
	return w.Residual
}

// Aggregate combines per-condition probabilities into a 0-100 comfort index.
// Higher probabilities of adverse weather lower the index.
func (w ComfortWeights) Aggregate(results []ProbabilityResult) int {
	penalty := 0.0
	for _, r := range results {
		penalty += w.weight(r.Condition) * r.Probability / 100
	}
	idx := math.Round(100 * (1 - penalty))
	return int(math.Max(0, math.Min(100, idx)))
}
