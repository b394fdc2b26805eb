package weather

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/i474232898/weather-risk-analysis/internal/common"
)

// TrendConfig holds the significance rules for trend labelling.
type TrendConfig struct {
	Significance float64
	MinYears     int
}

// DefaultTrendConfig uses p < 0.1 and at least 5 years.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{Significance: 0.1, MinYears: 5}
}

// TrendResult is the regression outcome for one condition.
type TrendResult struct {
	Slope  float64
	PValue float64
	Label  TrendLabel
}

// DetectTrend regresses the yearly aggregates of condition c against year.
func DetectTrend(w *HistoricalWindow, c Condition, cfg TrendConfig) TrendResult {
	values := YearlyAggregates(w, c)
	x := make([]float64, len(values))
	y := make([]float64, len(values))
	for i, v := range values {
		x[i] = float64(v.Year)
		y[i] = v.Value
	}
	return Trend(x, y, cfg)
}

// Trend runs an ordinary least squares fit of y on x and a two-sided t-test on
// the slope with n-2 degrees of freedom.
func Trend(x, y []float64, cfg TrendConfig) TrendResult {
	stable := TrendResult{PValue: 1, Label: TrendStable}

	minYears := cfg.MinYears
	if minYears < 3 {
		minYears = 3
	}
	n := len(x)
	if n < minYears || n != len(y) {
		return stable
	}

	_, slope := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return stable
	}

	p := slopePValue(x, y, slope)
	res := TrendResult{
		Slope:  common.RoundTo(slope, 4),
		PValue: common.RoundTo(p, 4),
		Label:  TrendStable,
	}
	if p < cfg.Significance {
		switch {
		case slope > 0:
			res.Label = TrendIncreasing
		case slope < 0:
			res.Label = TrendDecreasing
		}
	}
	return res
}

func slopePValue(x, y []float64, slope float64) float64 {
	n := float64(len(x))
	meanX := stat.Mean(x, nil)
	meanY := stat.Mean(y, nil)
	intercept := meanY - slope*meanX

	var sxx, sse float64
	for i := range x {
		dx := x[i] - meanX
		sxx += dx * dx
		r := y[i] - (intercept + slope*x[i])
		sse += r * r
	}
	if sxx == 0 {
		return 1
	}

	se := math.Sqrt(sse / (n - 2) / sxx)
	if se == 0 || math.IsNaN(se) {
		// Perfect fit.
		if slope != 0 {
			return 0
		}
		return 1
	}

	t := math.Abs(slope / se)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
	return common.Clamp(2*(1-dist.CDF(t)), 0, 1)
}
