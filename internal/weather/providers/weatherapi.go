package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// weatherAPIEarliest is the first day WeatherAPI.com serves history for.
var weatherAPIEarliest = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)

// weatherAPIChunkDays is the longest dt..end_dt span one history call accepts.
const weatherAPIChunkDays = 30

// WeatherAPIProvider reads daily history from WeatherAPI.com.
type WeatherAPIProvider struct {
	base
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts ...Option) *WeatherAPIProvider {
	p := &WeatherAPIProvider{
		base: newBase(
			"weatherapi",
			"WeatherAPI.com History",
			"https://api.weatherapi.com/v1/history.json",
			weather.TierLiveConditions,
			client,
			opts,
		),
	}
	p.apiKey = apiKey
	return p
}

type weatherAPIResponse struct {
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC     *float64 `json:"maxtemp_c"`
				MinTempC     *float64 `json:"mintemp_c"`
				TotalPrecipM *float64 `json:"totalprecip_mm"`
				MaxWindKPH   *float64 `json:"maxwind_kph"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// FetchHistory walks the range in 30-day requests. Days before 2010 are not
// available and are skipped. A failed chunk fails the whole call.
func (p *WeatherAPIProvider) FetchHistory(ctx context.Context, loc weather.Location, rng weather.DateRange) ([]weather.ClimateObservation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi: %w", errNoAPIKey)
	}
	rng = clipFrom(rng, weatherAPIEarliest)
	if rng.Empty() {
		return nil, nil
	}

	var records []weather.RawRecord
	for _, part := range chunk(rng, weatherAPIChunkDays) {
		buildRequest := func() (*http.Request, error) {
			values := url.Values{}
			values.Set("key", p.apiKey)
			values.Set("q", fmt.Sprintf("%.4f,%.4f", loc.Latitude, loc.Longitude))
			values.Set("dt", part.From.Format(weather.DateLayout))
			values.Set("end_dt", part.To.Format(weather.DateLayout))

			u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
			return http.NewRequest(http.MethodGet, u, nil)
		}

		var payload weatherAPIResponse
		if err := p.getJSON(ctx, buildRequest, &payload); err != nil {
			return nil, err
		}

		for _, fd := range payload.Forecast.ForecastDay {
			records = append(records, weather.RawRecord{
				Date:          fd.Date,
				MaxTemp:       fd.Day.MaxTempC,
				MinTemp:       fd.Day.MinTempC,
				Precipitation: fd.Day.TotalPrecipM,
				WindSpeed:     fd.Day.MaxWindKPH,
				Units:         weather.Units{Temperature: "C", Precipitation: "mm", WindSpeed: "kph"},
			})
		}
	}
	return p.normalize(records), nil
}
