package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// OpenMeteoProvider reads ERA5 reanalysis from the Open-Meteo historical archive.
type OpenMeteoProvider struct {
	base
}

func NewOpenMeteoProvider(client *http.Client, opts ...Option) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		base: newBase(
			"openmeteo",
			"Open-Meteo Archive (ERA5)",
			"https://archive-api.open-meteo.com/v1/archive",
			weather.TierReanalysis,
			client,
			opts,
		),
	}
}

type openMeteoResponse struct {
	Daily struct {
		Time             []string   `json:"time"`
		TemperatureMax   []*float64 `json:"temperature_2m_max"`
		TemperatureMin   []*float64 `json:"temperature_2m_min"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
		WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
	DailyUnits struct {
		TemperatureMax   string `json:"temperature_2m_max"`
		PrecipitationSum string `json:"precipitation_sum"`
		WindSpeedMax     string `json:"wind_speed_10m_max"`
	} `json:"daily_units"`
}

// FetchHistory fetches the whole range in a single request.
func (p *OpenMeteoProvider) FetchHistory(ctx context.Context, loc weather.Location, rng weather.DateRange) ([]weather.ClimateObservation, error) {
	if rng.Empty() {
		return nil, nil
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
		values.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
		values.Set("start_date", rng.From.Format(weather.DateLayout))
		values.Set("end_date", rng.To.Format(weather.DateLayout))
		values.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max")
		values.Set("wind_speed_unit", "ms")
		values.Set("timezone", "GMT")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload openMeteoResponse
	if err := p.getJSON(ctx, buildRequest, &payload); err != nil {
		return nil, err
	}

	units := weather.Units{
		Temperature:   orDefault(payload.DailyUnits.TemperatureMax, "C"),
		Precipitation: orDefault(payload.DailyUnits.PrecipitationSum, "mm"),
		WindSpeed:     orDefault(payload.DailyUnits.WindSpeedMax, "m/s"),
	}

	d := payload.Daily
	records := make([]weather.RawRecord, 0, len(d.Time))
	for i, day := range d.Time {
		records = append(records, weather.RawRecord{
			Date:          day,
			MaxTemp:       at(d.TemperatureMax, i),
			MinTemp:       at(d.TemperatureMin, i),
			Precipitation: at(d.PrecipitationSum, i),
			WindSpeed:     at(d.WindSpeedMax, i),
			Units:         units,
		})
	}
	return p.normalize(records), nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
