package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// DefaultGridResolution snaps locations to a 0.1° grid.
const DefaultGridResolution = 0.1

// Fingerprint keys an analysis by grid cell, calendar date and threshold set.
// Nearby points in the same cell share a fingerprint.
func Fingerprint(loc weather.Location, date time.Time, t weather.Thresholds, resolution float64) string {
	cell := loc.Snap(resolution)

	conds := t.Conditions()
	sort.Slice(conds, func(i, j int) bool { return conds[i].Condition < conds[j].Condition })

	h := sha256.New()
	fmt.Fprintf(h, "cell=%.4f,%.4f|date=%s", cell.Latitude, cell.Longitude, weather.Day(date).Format(weather.DateLayout))
	for _, c := range conds {
		fmt.Fprintf(h, "|%s:%s:%g", c.Condition, c.Comparison, c.Value)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprinter adapts Fingerprint to the engine's key function.
func Fingerprinter(resolution float64) weather.FingerprintFunc {
	if resolution <= 0 {
		resolution = DefaultGridResolution
	}
	return func(req weather.AnalysisRequest) string {
		return Fingerprint(req.Location, req.EventDate, req.Thresholds, resolution)
	}
}
