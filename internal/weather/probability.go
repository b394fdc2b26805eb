package weather

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/i474232898/weather-risk-analysis/internal/common"
)

// ConfidenceModel controls how sample size and synthetic data affect confidence.
type ConfidenceModel struct {
	// Floor is the confidence of a single valid year before the synthetic penalty.
	Floor float64
	// SyntheticPenalty scales confidence down by the synthetic share of observations.
	SyntheticPenalty float64
}

// DefaultConfidenceModel returns floor 0.2 and synthetic penalty 0.5.
func DefaultConfidenceModel() ConfidenceModel {
	return ConfidenceModel{Floor: 0.2, SyntheticPenalty: 0.5}
}

// Confidence scores n valid years out of yearsBack requested.
func (m ConfidenceModel) Confidence(n, yearsBack int, syntheticFraction float64) float64 {
	if n <= 0 || yearsBack <= 0 {
		return 0
	}
	coverage := math.Min(1, float64(n)/float64(yearsBack))
	c := m.Floor + (1-m.Floor)*coverage
	c *= 1 - m.SyntheticPenalty*common.Clamp(syntheticFraction, 0, 1)
	return common.RoundTo(common.Clamp(c, 0, 1), 3)
}

// YearlyValue is the per-year aggregate of one condition's metric.
type YearlyValue struct {
	Year  int
	Value float64
}

// YearlyAggregates reduces each non-gap year of w to the metric that drives
// condition c: hottest day for heat, coldest night for cold, window total for
// rain and strongest wind for wind.
func YearlyAggregates(w *HistoricalWindow, c Condition) []YearlyValue {
	out := make([]YearlyValue, 0, len(w.Years))
	for _, y := range w.Years {
		if y.Gap || len(y.Observations) == 0 {
			continue
		}
		out = append(out, YearlyValue{Year: y.Year, Value: aggregate(y.Observations, c)})
	}
	return out
}

// aggregate reduces a non-empty window year to one value.
func aggregate(obs []ClimateObservation, c Condition) float64 {
	series := make([]float64, len(obs))
	for i, o := range obs {
		switch c {
		case ConditionVeryCold:
			series[i] = o.MinTempC
		case ConditionHeavyRain:
			series[i] = o.PrecipMM
		case ConditionStrongWind:
			series[i] = o.WindSpeedMS
		default:
			series[i] = o.MaxTempC
		}
	}

	switch c {
	case ConditionVeryCold:
		return floats.Min(series)
	case ConditionHeavyRain:
		return floats.Sum(series)
	default:
		return floats.Max(series)
	}
}

// ComputeProbability returns the share of valid years whose aggregate crosses t.
// The trend fields are left for DetectTrend to fill in.
func ComputeProbability(w *HistoricalWindow, t ConditionThreshold, model ConfidenceModel) ProbabilityResult {
	res := ProbabilityResult{
		Condition: t.Condition,
		Threshold: t.Label(),
		Trend:     TrendStable,
		PValue:    1,
	}

	values := YearlyAggregates(w, t.Condition)
	if len(values) == 0 {
		return res
	}

	crossing := 0
	series := make([]float64, len(values))
	for i, v := range values {
		series[i] = v.Value
		if t.Comparison.Crosses(v.Value, t.Value) {
			crossing++
		}
	}

	n := len(values)
	res.SampleSize = n
	res.Probability = common.RoundTo(common.Clamp(float64(crossing)/float64(n)*100, 0, 100), 1)
	res.HistoricalMean = common.RoundTo(stat.Mean(series, nil), 2)
	res.Confidence = model.Confidence(n, w.YearsBack, w.SyntheticFraction())
	return res
}
