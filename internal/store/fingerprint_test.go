package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

func TestFingerprintSharesGridCell(t *testing.T) {
	day := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	th := weather.DefaultThresholds()

	a := Fingerprint(weather.Location{Latitude: 40.7128, Longitude: -74.0060}, day, th, DefaultGridResolution)
	b := Fingerprint(weather.Location{Latitude: 40.6800, Longitude: -73.9800, City: "Brooklyn"}, day, th, DefaultGridResolution)
	c := Fingerprint(weather.Location{Latitude: 40.9000, Longitude: -74.0060}, day, th, DefaultGridResolution)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestFingerprintVariesWithDateAndThresholds(t *testing.T) {
	loc := weather.Location{Latitude: 51.5, Longitude: -0.12}
	day := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	th := weather.DefaultThresholds()

	base := Fingerprint(loc, day, th, DefaultGridResolution)
	assert.Equal(t, base, Fingerprint(loc, day.Add(15*time.Hour), th, DefaultGridResolution), "time of day is ignored")
	assert.NotEqual(t, base, Fingerprint(loc, day.AddDate(0, 0, 1), th, DefaultGridResolution))

	hotter := th
	hotter.HotTemp = 35
	assert.NotEqual(t, base, Fingerprint(loc, day, hotter, DefaultGridResolution))
}

func TestFingerprinterDefaultsResolution(t *testing.T) {
	req := weather.AnalysisRequest{
		Location:   weather.Location{Latitude: 35.6762, Longitude: 139.6503},
		EventDate:  time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Thresholds: weather.DefaultThresholds(),
	}
	assert.Equal(t, Fingerprinter(DefaultGridResolution)(req), Fingerprinter(0)(req))
}
