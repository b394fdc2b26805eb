package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// openWeatherEarliest is the first day the One Call day summary covers.
var openWeatherEarliest = time.Date(1979, time.January, 2, 0, 0, 0, 0, time.UTC)

const (
	// openWeatherMaxDays caps how many of the most recent days are requested;
	// the API is billed per call and has no range endpoint.
	openWeatherMaxDays     = 400
	openWeatherConcurrency = 8
)

// OpenWeatherProvider reads daily aggregates from the OpenWeather One Call 3.0
// day_summary endpoint, one request per day.
type OpenWeatherProvider struct {
	base
	maxDays int
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	p := &OpenWeatherProvider{
		base: newBase(
			"openweathermap",
			"OpenWeather One Call Day Summary",
			"https://api.openweathermap.org/data/3.0/onecall/day_summary",
			weather.TierLiveConditions,
			client,
			opts,
		),
		maxDays: openWeatherMaxDays,
	}
	p.apiKey = apiKey
	return p
}

type openWeatherDaySummary struct {
	Date        string `json:"date"`
	Temperature struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	} `json:"temperature"`
	Precipitation struct {
		Total *float64 `json:"total"`
	} `json:"precipitation"`
	Wind struct {
		Max struct {
			Speed *float64 `json:"speed"`
		} `json:"max"`
	} `json:"wind"`
}

// FetchHistory requests the most recent days of rng concurrently. Individual
// day failures are dropped; the call fails only if every day failed.
func (p *OpenWeatherProvider) FetchHistory(ctx context.Context, loc weather.Location, rng weather.DateRange) ([]weather.ClimateObservation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweathermap: %w", errNoAPIKey)
	}
	rng = clipFrom(rng, openWeatherEarliest)
	if rng.Empty() {
		return nil, nil
	}
	if rng.Days() > p.maxDays {
		rng.From = rng.To.AddDate(0, 0, -(p.maxDays - 1))
	}

	var (
		mu       sync.Mutex
		records  []weather.RawRecord
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(openWeatherConcurrency)

	for d := rng.From; !d.After(rng.To); d = d.AddDate(0, 0, 1) {
		day := d
		g.Go(func() error {
			rec, err := p.fetchDay(gctx, loc, day)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			records = append(records, rec)
			return nil
		})
	}
	_ = g.Wait()

	if len(records) == 0 && firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil && len(records) == 0 {
		return nil, err
	}
	return p.normalize(records), nil
}

func (p *OpenWeatherProvider) fetchDay(ctx context.Context, loc weather.Location, day time.Time) (weather.RawRecord, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lat", fmt.Sprintf("%.4f", loc.Latitude))
		values.Set("lon", fmt.Sprintf("%.4f", loc.Longitude))
		values.Set("date", day.Format(weather.DateLayout))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload openWeatherDaySummary
	if err := p.getJSON(ctx, buildRequest, &payload); err != nil {
		return weather.RawRecord{}, err
	}

	date := payload.Date
	if date == "" {
		date = day.Format(weather.DateLayout)
	}
	return weather.RawRecord{
		Date:          date,
		MaxTemp:       payload.Temperature.Max,
		MinTemp:       payload.Temperature.Min,
		Precipitation: payload.Precipitation.Total,
		WindSpeed:     payload.Wind.Max.Speed,
		Units:         weather.MetricUnits,
	}, nil
}
