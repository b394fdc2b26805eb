package weather

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to int) []int {
	var out []int
	for y := from; y <= to; y++ {
		out = append(out, y)
	}
	return out
}

func dayObs(year int, maxT, minT, precip, wind float64) ClimateObservation {
	return ClimateObservation{
		Date:        date("2000-07-04").AddDate(year-2000, 0, 0),
		MaxTempC:    maxT,
		MinTempC:    minT,
		PrecipMM:    precip,
		WindSpeedMS: wind,
		Tier:        SourceReal,
		Source:      "test",
	}
}

func TestProbabilityCountsCrossingYears(t *testing.T) {
	hot := map[int]bool{2001: true, 2004: true, 2008: true}
	w := yearWindow(10, seq(2001, 2010), func(y int) []ClimateObservation {
		peak := 30.0
		if hot[y] {
			peak = 34
		}
		return []ClimateObservation{dayObs(y, 25, 15, 0, 3), dayObs(y, peak, 18, 0, 4)}
	})

	th := DefaultThresholds().Conditions()[0]
	res := ComputeProbability(w, th, DefaultConfidenceModel())

	assert.Equal(t, ConditionVeryHot, res.Condition)
	assert.Equal(t, ">32°C", res.Threshold)
	assert.Equal(t, 30.0, res.Probability)
	assert.Equal(t, 10, res.SampleSize)
	assert.InDelta(t, 31.2, res.HistoricalMean, 1e-9)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestProbabilityAggregatesPerCondition(t *testing.T) {
	w := yearWindow(2, []int{2020, 2021}, func(y int) []ClimateObservation {
		return []ClimateObservation{
			dayObs(y, 20, -2, 3, 10),
			dayObs(y, 22, 1, 3, 16),
		}
	})
	conds := DefaultThresholds().Conditions()

	cold := ComputeProbability(w, conds[1], DefaultConfidenceModel())
	assert.Equal(t, 100.0, cold.Probability, "min of the daily minimums is below 0")
	assert.Equal(t, -2.0, cold.HistoricalMean)

	rain := ComputeProbability(w, conds[2], DefaultConfidenceModel())
	assert.Equal(t, 100.0, rain.Probability, "window total 6mm exceeds 5mm though no day does")
	assert.Equal(t, 6.0, rain.HistoricalMean)

	wind := ComputeProbability(w, conds[3], DefaultConfidenceModel())
	assert.Equal(t, 100.0, wind.Probability)
	assert.Equal(t, 16.0, wind.HistoricalMean)
}

func TestProbabilityComparisonIsStrict(t *testing.T) {
	w := yearWindow(1, []int{2020}, func(y int) []ClimateObservation {
		return []ClimateObservation{dayObs(y, 32, 0, 5, 15)}
	})
	for _, th := range DefaultThresholds().Conditions() {
		res := ComputeProbability(w, th, DefaultConfidenceModel())
		assert.Zero(t, res.Probability, th.Condition)
	}
}

func TestProbabilityZeroValidYears(t *testing.T) {
	w := yearWindow(10, seq(2015, 2020), func(int) []ClimateObservation { return nil })

	res := ComputeProbability(w, DefaultThresholds().Conditions()[0], DefaultConfidenceModel())
	assert.Zero(t, res.Probability)
	assert.Zero(t, res.Confidence)
	assert.Zero(t, res.SampleSize)
	assert.Equal(t, TrendStable, res.Trend)
}

func TestConfidenceScalesWithCoverageAndSynthetic(t *testing.T) {
	m := DefaultConfidenceModel()

	assert.InDelta(t, 0.2+0.8*0.5, m.Confidence(5, 10, 0), 1e-9)
	assert.InDelta(t, 1.0, m.Confidence(12, 10, 0), 1e-9)
	assert.InDelta(t, 0.5, m.Confidence(10, 10, 1), 1e-9)
	assert.Zero(t, m.Confidence(0, 10, 0))
	assert.Less(t, m.Confidence(3, 10, 0), m.Confidence(6, 10, 0))
}

func TestProbabilitySyntheticWindowHasReducedConfidence(t *testing.T) {
	w := yearWindow(5, seq(2016, 2020), func(y int) []ClimateObservation {
		o := dayObs(y, 30, 10, 0, 3)
		o.Tier = SourceSynthetic
		return []ClimateObservation{o}
	})
	res := ComputeProbability(w, DefaultThresholds().Conditions()[0], DefaultConfidenceModel())
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
}

func TestProbabilityAndConfidenceStayInBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	model := DefaultConfidenceModel()

	for i := 0; i < 200; i++ {
		yearsBack := 1 + r.IntN(40)
		years := seq(1990, 1990+r.IntN(40))
		w := yearWindow(yearsBack, years, func(y int) []ClimateObservation {
			if r.Float64() < 0.2 {
				return nil
			}
			o := dayObs(y, -20+r.Float64()*60, -40+r.Float64()*20, r.Float64()*50, r.Float64()*30)
			if r.Float64() < 0.3 {
				o.Tier = SourceSynthetic
			}
			return []ClimateObservation{o}
		})

		th := Thresholds{HotTemp: r.Float64() * 40, ColdTemp: -r.Float64() * 20, Precipitation: r.Float64() * 30, WindSpeed: r.Float64() * 20}
		for _, c := range th.Conditions() {
			res := ComputeProbability(w, c, model)
			require.GreaterOrEqual(t, res.Probability, 0.0)
			require.LessOrEqual(t, res.Probability, 100.0)
			require.GreaterOrEqual(t, res.Confidence, 0.0)
			require.LessOrEqual(t, res.Confidence, 1.0)
		}
	}
}
