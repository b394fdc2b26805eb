package weather

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

// SyntheticSourceName tags observations produced by the fallback generator.
const SyntheticSourceName = "synthetic-climatology"

// SyntheticDataset is the attribution shown when the fallback generator was used.
const SyntheticDataset = "Synthetic climatology (fallback)"

// climateBand groups latitudes with similar seasonal behaviour.
type climateBand int

const (
	bandTropical climateBand = iota
	bandTemperate
	bandPolar
)

func bandFor(lat float64) climateBand {
	switch a := math.Abs(lat); {
	case a < 23.5:
		return bandTropical
	case a < 66.5:
		return bandTemperate
	default:
		return bandPolar
	}
}

// bandParams are the seasonal-model knobs per band.
type bandParams struct {
	seasonalAmplitude float64 // °C, half peak-to-trough of the daily mean
	diurnalRange      float64 // °C, typical max-min spread
	humidity          float64 // % relative humidity baseline
	humiditySwing     float64 // % seasonal humidity swing
	wetDayMeanMM      float64 // mean precipitation on a wet day
	windBaseMS        float64
}

var bands = map[climateBand]bandParams{
	bandTropical:  {seasonalAmplitude: 3, diurnalRange: 9, humidity: 75, humiditySwing: 15, wetDayMeanMM: 9, windBaseMS: 3.5},
	bandTemperate: {seasonalAmplitude: 12, diurnalRange: 10, humidity: 65, humiditySwing: 8, wetDayMeanMM: 6, windBaseMS: 4.5},
	bandPolar:     {seasonalAmplitude: 18, diurnalRange: 7, humidity: 70, humiditySwing: 5, wetDayMeanMM: 2.5, windBaseMS: 6},
}

// SyntheticGenerator produces believable daily observations when every real
// provider fails. Values depend only on (location, day), so any range that
// covers a day yields the same record for it.
type SyntheticGenerator struct{}

// NewSyntheticGenerator returns the fallback generator.
func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{}
}

func (g *SyntheticGenerator) Name() string       { return SyntheticSourceName }
func (g *SyntheticGenerator) Tier() ProviderTier { return TierSynthetic }
func (g *SyntheticGenerator) Dataset() string    { return SyntheticDataset }

// FetchHistory generates one observation per day of rng. It never fails.
func (g *SyntheticGenerator) FetchHistory(_ context.Context, loc Location, rng DateRange) ([]ClimateObservation, error) {
	return g.Generate(loc, rng), nil
}

// Generate returns one synthetic observation per day of rng.
func (g *SyntheticGenerator) Generate(loc Location, rng DateRange) []ClimateObservation {
	if rng.Empty() {
		return nil
	}
	out := make([]ClimateObservation, 0, rng.Days())
	for d := rng.From; !d.After(rng.To); d = d.AddDate(0, 0, 1) {
		out = append(out, g.day(loc, d))
	}
	return out
}

func (g *SyntheticGenerator) day(loc Location, date time.Time) ClimateObservation {
	rng := rand.New(rand.NewPCG(seedFor(loc, date)))
	p := bands[bandFor(loc.Latitude)]

	latFactor := math.Abs(loc.Latitude) / 90
	doy := float64(date.YearDay())

	// Northern-hemisphere peak around day 200 (mid July); southern shifted by half a year.
	phase := doy - 109
	if loc.Latitude < 0 {
		phase -= 182.5
	}
	season := math.Sin(2 * math.Pi * phase / 365.25)

	baseline := 27 - 32*latFactor
	mean := baseline + p.seasonalAmplitude*season + boundedNormal(rng, 3, 2.5)
	spread := p.diurnalRange * (0.8 + 0.4*rng.Float64())

	humidity := p.humidity + p.humiditySwing*season + boundedNormal(rng, 5, 2)
	if bandFor(loc.Latitude) == bandTropical {
		// Monsoon-like wet season follows the warm phase.
		humidity += 10 * math.Max(0, season)
	}
	humidity = math.Max(10, math.Min(100, humidity))

	wetChance := math.Max(0.02, math.Min(0.85, (humidity-40)/70))
	precip := 0.0
	if rng.Float64() < wetChance {
		precip = math.Min(150, rng.ExpFloat64()*p.wetDayMeanMM)
	}

	winter := -season
	wind := p.windBaseMS*(1+0.3*winter) + math.Abs(boundedNormal(rng, 2, 2.5))
	wind = math.Max(0, math.Min(40, wind))

	return ClimateObservation{
		Date:        date,
		MaxTempC:    round1(mean + spread/2),
		MinTempC:    round1(mean - spread/2),
		PrecipMM:    round1(precip),
		WindSpeedMS: round1(wind),
		Tier:        SourceSynthetic,
		Source:      SyntheticSourceName,
	}
}

// boundedNormal draws N(0, sd) clipped to ±limit standard deviations.
func boundedNormal(rng *rand.Rand, sd, limit float64) float64 {
	z := math.Max(-limit, math.Min(limit, rng.NormFloat64()))
	return z * sd
}

func seedFor(loc Location, date time.Time) (uint64, uint64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(loc.Key()))
	_, _ = h.Write([]byte(date.Format(DateLayout)))
	s := h.Sum64()
	return s, s ^ 0x9e3779b97f4a7c15
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
