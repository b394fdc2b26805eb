package weather

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestNormalizeConvertsUnits(t *testing.T) {
	records := []RawRecord{{
		Date:          "2024-07-04",
		MaxTemp:       f(95),
		MinTemp:       f(68),
		Precipitation: f(0.5),
		WindSpeed:     f(36),
		Units:         Units{Temperature: "°F", Precipitation: "in", WindSpeed: "km/h"},
	}}

	obs, errs := Normalize("test", SourceReal, records)
	require.Empty(t, errs)
	require.Len(t, obs, 1)

	o := obs[0]
	assert.Equal(t, date("2024-07-04"), o.Date)
	assert.InDelta(t, 35.0, o.MaxTempC, 1e-9)
	assert.InDelta(t, 20.0, o.MinTempC, 1e-9)
	assert.InDelta(t, 12.7, o.PrecipMM, 1e-9)
	assert.InDelta(t, 10.0, o.WindSpeedMS, 1e-9)
	assert.Equal(t, SourceReal, o.Tier)
	assert.Equal(t, "test", o.Source)
}

func TestNormalizeKelvinKnotsAndCompactDates(t *testing.T) {
	obs, errs := Normalize("nasa", SourceReal, []RawRecord{{
		Date:          "19950315",
		MaxTemp:       f(283.15),
		MinTemp:       f(273.15),
		Precipitation: f(1.2),
		WindSpeed:     f(10),
		Units:         Units{Temperature: "K", Precipitation: "cm", WindSpeed: "kn"},
	}})
	require.Empty(t, errs)
	require.Len(t, obs, 1)
	assert.Equal(t, date("1995-03-15"), obs[0].Date)
	assert.InDelta(t, 10.0, obs[0].MaxTempC, 1e-9)
	assert.InDelta(t, 0.0, obs[0].MinTempC, 1e-9)
	assert.InDelta(t, 12.0, obs[0].PrecipMM, 1e-9)
	assert.InDelta(t, 5.14444, obs[0].WindSpeedMS, 1e-9)
}

func TestNormalizeDropsMalformedRecordsAndKeepsTheRest(t *testing.T) {
	good := func(d string) RawRecord {
		return RawRecord{Date: d, MaxTemp: f(20), MinTemp: f(10), Precipitation: f(0), WindSpeed: f(3), Units: MetricUnits}
	}

	missing := good("2024-01-03")
	missing.Precipitation = nil

	sentinel := good("2024-01-04")
	sentinel.MaxTemp = f(-999)

	tooHot := good("2024-01-05")
	tooHot.MaxTemp = f(75)

	inverted := good("2024-01-06")
	inverted.MinTemp = f(25)

	badUnit := good("2024-01-07")
	badUnit.Units.WindSpeed = "furlongs/fortnight"

	badDate := good("03/01/2024")

	records := []RawRecord{good("2024-01-02"), missing, sentinel, tooHot, inverted, badUnit, badDate, good("2024-01-01")}
	obs, errs := Normalize("mixed", SourceReal, records)

	require.Len(t, obs, 2)
	assert.Equal(t, date("2024-01-01"), obs[0].Date, "output is sorted by date")
	assert.Equal(t, date("2024-01-02"), obs[1].Date)

	require.Len(t, errs, 6)
	for _, err := range errs {
		var mre *MalformedRecordError
		require.True(t, errors.As(err, &mre), "got %T", err)
		assert.Equal(t, "mixed", mre.Source)
	}
}

func TestNormalizeEmptyBatch(t *testing.T) {
	obs, errs := Normalize("empty", SourceReal, nil)
	assert.Empty(t, obs)
	assert.Empty(t, errs)
}
