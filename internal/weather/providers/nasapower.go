package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

const nasaPowerDateLayout = "20060102"

// NASAPowerProvider reads MERRA-2 reanalysis daily point data from the NASA POWER API.
type NASAPowerProvider struct {
	base
}

func NewNASAPowerProvider(client *http.Client, opts ...Option) *NASAPowerProvider {
	return &NASAPowerProvider{
		base: newBase(
			"nasapower",
			"NASA POWER (MERRA-2)",
			"https://power.larc.nasa.gov/api/temporal/daily/point",
			weather.TierReanalysis,
			client,
			opts,
		),
	}
}

type nasaPowerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
	Messages []string `json:"messages"`
}

// FetchHistory fetches the whole range in a single request.
func (p *NASAPowerProvider) FetchHistory(ctx context.Context, loc weather.Location, rng weather.DateRange) ([]weather.ClimateObservation, error) {
	if rng.Empty() {
		return nil, nil
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("parameters", "T2M_MAX,T2M_MIN,PRECTOTCORR,WS10M_MAX")
		values.Set("community", "AG")
		values.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
		values.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
		values.Set("start", rng.From.Format(nasaPowerDateLayout))
		values.Set("end", rng.To.Format(nasaPowerDateLayout))
		values.Set("format", "JSON")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload nasaPowerResponse
	if err := p.getJSON(ctx, buildRequest, &payload); err != nil {
		return nil, err
	}

	params := payload.Properties.Parameter
	tmax := params["T2M_MAX"]
	if len(tmax) == 0 {
		return nil, fmt.Errorf("nasapower: response has no T2M_MAX series")
	}

	dates := make([]string, 0, len(tmax))
	for d := range tmax {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	records := make([]weather.RawRecord, 0, len(dates))
	for _, d := range dates {
		records = append(records, weather.RawRecord{
			Date:          d,
			MaxTemp:       lookup(params["T2M_MAX"], d),
			MinTemp:       lookup(params["T2M_MIN"], d),
			Precipitation: lookup(params["PRECTOTCORR"], d),
			WindSpeed:     lookup(params["WS10M_MAX"], d),
			Units:         weather.MetricUnits,
		})
	}
	return p.normalize(records), nil
}

func lookup(series map[string]float64, key string) *float64 {
	v, ok := series[key]
	if !ok {
		return nil
	}
	return &v
}
