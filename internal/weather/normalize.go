package weather

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/i474232898/weather-risk-analysis/internal/common"
)

// Physical bounds for canonical units. Values outside are treated as malformed.
const (
	MinTemperatureC = -90.0
	MaxTemperatureC = 60.0
	MaxPrecipMM     = 1000.0
	MaxWindSpeedMS  = 120.0
)

// missingSentinel is the fill value several archives use for absent data.
const missingSentinel = -999.0

// Units describes the units a provider reports in.
type Units struct {
	Temperature   string // C, F, K
	Precipitation string // mm, cm, in
	WindSpeed     string // m/s, km/h, kph, mph, kn
}

// MetricUnits is what most archives report.
var MetricUnits = Units{Temperature: "C", Precipitation: "mm", WindSpeed: "m/s"}

// RawRecord is a provider's daily record before unit conversion and validation.
// Nil values are missing in the upstream payload.
type RawRecord struct {
	Date          string
	MaxTemp       *float64
	MinTemp       *float64
	Precipitation *float64
	WindSpeed     *float64
	Units         Units
}

// Normalize converts raw provider records into canonical observations.
// Records that cannot be parsed or fall outside physical bounds are dropped and
// reported as *MalformedRecordError; the remaining records are returned sorted by date.
func Normalize(source string, tier SourceTier, records []RawRecord) ([]ClimateObservation, []error) {
	out := make([]ClimateObservation, 0, len(records))
	var errs []error

	for _, rec := range records {
		obs, err := normalizeRecord(source, tier, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, obs)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, errs
}

func normalizeRecord(source string, tier SourceTier, rec RawRecord) (ClimateObservation, error) {
	malformed := func(field, reason string) error {
		return &MalformedRecordError{Source: source, Date: rec.Date, Field: field, Reason: reason}
	}

	date, err := parseRecordDate(rec.Date)
	if err != nil {
		return ClimateObservation{}, malformed("date", err.Error())
	}

	maxT, err := convertTemperature(rec.MaxTemp, rec.Units.Temperature)
	if err != nil {
		return ClimateObservation{}, malformed("max_temperature", err.Error())
	}
	minT, err := convertTemperature(rec.MinTemp, rec.Units.Temperature)
	if err != nil {
		return ClimateObservation{}, malformed("min_temperature", err.Error())
	}
	if minT > maxT {
		return ClimateObservation{}, malformed("min_temperature", "exceeds max temperature")
	}

	precip, err := convertPrecipitation(rec.Precipitation, rec.Units.Precipitation)
	if err != nil {
		return ClimateObservation{}, malformed("precipitation_amount", err.Error())
	}

	wind, err := convertWindSpeed(rec.WindSpeed, rec.Units.WindSpeed)
	if err != nil {
		return ClimateObservation{}, malformed("wind_speed", err.Error())
	}

	return ClimateObservation{
		Date:        date,
		MaxTempC:    maxT,
		MinTempC:    minT,
		PrecipMM:    precip,
		WindSpeedMS: wind,
		Tier:        tier,
		Source:      source,
	}, nil
}

// parseRecordDate accepts ISO dates, compact YYYYMMDD and RFC3339 timestamps.
func parseRecordDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "20060102", time.RFC3339, "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date")
}

func present(v *float64) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("missing value")
	}
	if *v <= missingSentinel {
		return 0, fmt.Errorf("missing value sentinel %v", *v)
	}
	return *v, nil
}

func convertTemperature(v *float64, unit string) (float64, error) {
	raw, err := present(v)
	if err != nil {
		return 0, err
	}

	var c float64
	switch u := strings.TrimSpace(strings.TrimPrefix(unit, "°")); {
	case u == "" || strings.EqualFold(u, "c") || common.HasAny(u, "celsius"):
		c = raw
	case strings.EqualFold(u, "f") || common.HasAny(u, "fahrenheit"):
		c = (raw - 32) * 5 / 9
	case strings.EqualFold(u, "k") || common.HasAny(u, "kelvin"):
		c = raw - 273.15
	default:
		return 0, fmt.Errorf("unknown temperature unit %q", unit)
	}

	if c < MinTemperatureC || c > MaxTemperatureC {
		return 0, fmt.Errorf("temperature %.1f°C out of range", c)
	}
	return c, nil
}

func convertPrecipitation(v *float64, unit string) (float64, error) {
	raw, err := present(v)
	if err != nil {
		return 0, err
	}

	var mm float64
	switch u := strings.ToLower(strings.TrimSpace(unit)); {
	case u == "" || u == "mm" || common.HasAny(u, "millimet"):
		mm = raw
	case u == "cm" || common.HasAny(u, "centimet"):
		mm = raw * 10
	case u == "in" || common.HasAny(u, "inch"):
		mm = raw * 25.4
	default:
		return 0, fmt.Errorf("unknown precipitation unit %q", unit)
	}

	if mm < 0 || mm > MaxPrecipMM {
		return 0, fmt.Errorf("precipitation %.1fmm out of range", mm)
	}
	return mm, nil
}

func convertWindSpeed(v *float64, unit string) (float64, error) {
	raw, err := present(v)
	if err != nil {
		return 0, err
	}

	var ms float64
	switch u := strings.ToLower(strings.TrimSpace(unit)); {
	case u == "" || u == "m/s" || u == "ms" || u == "mps":
		ms = raw
	case common.HasAny(u, "km/h", "kph", "kmh"):
		ms = raw / 3.6
	case common.HasAny(u, "mph"):
		ms = raw * 0.44704
	case u == "kn" || common.HasAny(u, "knot", "kt"):
		ms = raw * 0.514444
	default:
		return 0, fmt.Errorf("unknown wind speed unit %q", unit)
	}

	if ms < 0 || ms > MaxWindSpeedMS {
		return 0, fmt.Errorf("wind speed %.1fm/s out of range", ms)
	}
	return ms, nil
}
