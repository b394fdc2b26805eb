package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrendStableBelowMinimumYears(t *testing.T) {
	x := []float64{2020, 2021, 2022, 2023}
	y := []float64{10, 20, 30, 40}

	res := Trend(x, y, DefaultTrendConfig())
	assert.Equal(t, TrendStable, res.Label)
	assert.Equal(t, 1.0, res.PValue)
}

func TestTrendDetectsSignificantIncrease(t *testing.T) {
	x := make([]float64, 20)
	y := make([]float64, 20)
	for i := range x {
		x[i] = float64(2000 + i)
		noise := 0.3
		if i%2 == 0 {
			noise = -0.3
		}
		y[i] = 30 + 0.2*float64(i) + noise
	}

	res := Trend(x, y, DefaultTrendConfig())
	assert.Equal(t, TrendIncreasing, res.Label)
	assert.InDelta(t, 0.2, res.Slope, 0.05)
	assert.Less(t, res.PValue, 0.01)
}

func TestTrendPerfectDecreaseIsSignificant(t *testing.T) {
	x := []float64{2001, 2002, 2003, 2004, 2005, 2006}
	y := []float64{12, 10, 8, 6, 4, 2}

	res := Trend(x, y, DefaultTrendConfig())
	assert.Equal(t, TrendDecreasing, res.Label)
	assert.InDelta(t, -2.0, res.Slope, 1e-9)
	assert.Equal(t, 0.0, res.PValue)
}

func TestTrendNoisyFlatSeriesIsStable(t *testing.T) {
	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = float64(2010 + i)
		y[i] = 1
		if i%2 == 1 {
			y[i] = -1
		}
	}

	res := Trend(x, y, DefaultTrendConfig())
	assert.Equal(t, TrendStable, res.Label)
	assert.Greater(t, res.PValue, 0.1)
}

func TestTrendConstantSeriesIsStable(t *testing.T) {
	x := []float64{2001, 2002, 2003, 2004, 2005, 2006}
	y := []float64{5, 5, 5, 5, 5, 5}

	res := Trend(x, y, DefaultTrendConfig())
	assert.Equal(t, TrendStable, res.Label)
	assert.Equal(t, 1.0, res.PValue)
}

func TestDetectTrendSkipsGapYears(t *testing.T) {
	years := seq(2001, 2008)
	w := yearWindow(8, years, func(y int) []ClimateObservation {
		if y > 2004 {
			return nil
		}
		return []ClimateObservation{dayObs(y, float64(y-1970), 0, 0, 0)}
	})

	res := DetectTrend(w, ConditionVeryHot, DefaultTrendConfig())
	assert.Equal(t, TrendStable, res.Label, "only four valid years")
	assert.Equal(t, 1.0, res.PValue)
}

func TestTrendSignificanceIsConfigurable(t *testing.T) {
	x := make([]float64, 12)
	y := make([]float64, 12)
	for i := range x {
		x[i] = float64(2000 + i)
		noise := 2.0
		if i%3 == 0 {
			noise = -2.5
		}
		y[i] = 0.15*float64(i) + noise
	}

	loose := Trend(x, y, TrendConfig{Significance: 0.99, MinYears: 5})
	strict := Trend(x, y, TrendConfig{Significance: 1e-9, MinYears: 5})
	assert.Equal(t, TrendIncreasing, loose.Label)
	assert.Equal(t, TrendStable, strict.Label)
	assert.Equal(t, loose.PValue, strict.PValue)
}
