package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/weather-risk-analysis/internal/store"
	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

type AppConfig struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`

	// Provider credentials. Providers without a key are not registered.
	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY"`
	WeatherAPIKey     string `envconfig:"WEATHERAPI_API_KEY"`
	GeocoderAPIKey    string `envconfig:"GEOCODER_API_KEY"`
	NASAPowerEnabled  bool   `envconfig:"NASA_POWER_ENABLED" default:"true"`
	OpenMeteoEnabled  bool   `envconfig:"OPEN_METEO_ENABLED" default:"true"`

	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"8s" validate:"gt=0"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"6s" validate:"gt=0"`
	RequestDeadline time.Duration `envconfig:"REQUEST_DEADLINE" default:"10s" validate:"gt=0"`
	MinSamples      int           `envconfig:"MIN_SAMPLES" default:"30" validate:"gte=1"`
	MinCoverage     float64       `envconfig:"MIN_COVERAGE" default:"0.25" validate:"gte=0,lte=1"`

	// Analysis.
	YearsBack            int     `envconfig:"YEARS_BACK" default:"35" validate:"gte=1,lte=60"`
	WindowRadiusDays     int     `envconfig:"WINDOW_RADIUS_DAYS" default:"7" validate:"gte=0,lte=30"`
	RecommendRadiusDays  int     `envconfig:"RECOMMEND_RADIUS_DAYS" default:"7" validate:"gte=1,lte=30"`
	MaxAlternatives      int     `envconfig:"MAX_ALTERNATIVES" default:"5" validate:"gte=1,lte=30"`
	RecommendConcurrency int     `envconfig:"RECOMMEND_CONCURRENCY" default:"4" validate:"gte=1,lte=32"`
	SignificanceLevel    float64 `envconfig:"SIGNIFICANCE_LEVEL" default:"0.1" validate:"gt=0,lt=1"`
	MinTrendYears        int     `envconfig:"MIN_TREND_YEARS" default:"5" validate:"gte=3"`

	// Result cache.
	CacheTTL         time.Duration `envconfig:"CACHE_TTL" default:"6h" validate:"gt=0"`
	CacheMaxEntries  int           `envconfig:"CACHE_MAX_ENTRIES" default:"512" validate:"gte=1"`
	CacheWaitTimeout time.Duration `envconfig:"CACHE_WAIT_TIMEOUT" default:"15s" validate:"gt=0"`
	GridResolution   float64       `envconfig:"GRID_RESOLUTION" default:"0.1" validate:"gt=0,lte=5"`

	// Scheduled cache warm-up and purge.
	WarmInterval  time.Duration `envconfig:"WARM_INTERVAL" default:"1h" validate:"gt=0"`
	WarmLocations LocationList  `envconfig:"WARM_LOCATIONS"`
	WarmLeadDays  int           `envconfig:"WARM_LEAD_DAYS" default:"30" validate:"gte=0,lte=365"`

	// TuningFile is an optional YAML file overriding engine weights and margins.
	TuningFile string `envconfig:"TUNING_FILE"`
}

// Load reads configuration from a .env file (if present) and the environment,
// then validates it.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv populates and validates the config from the process environment only.
func FromEnv() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Engine returns the analysis parameters, with the tuning file applied when set.
func (c *AppConfig) Engine() (weather.EngineConfig, error) {
	ec := weather.DefaultEngineConfig()
	ec.YearsBack = c.YearsBack
	ec.WindowRadiusDays = c.WindowRadiusDays
	ec.RequestDeadline = c.RequestDeadline
	ec.Trend = weather.TrendConfig{Significance: c.SignificanceLevel, MinYears: c.MinTrendYears}
	ec.Recommender.RadiusDays = c.RecommendRadiusDays
	ec.Recommender.MaxAlternatives = c.MaxAlternatives
	ec.Recommender.Concurrency = c.RecommendConcurrency

	if c.TuningFile == "" {
		return ec, nil
	}
	t, err := LoadTuning(c.TuningFile)
	if err != nil {
		return ec, err
	}
	if err := t.Apply(&ec); err != nil {
		return ec, fmt.Errorf("apply tuning file %s: %w", c.TuningFile, err)
	}
	return ec, nil
}

// Gateway returns the provider fan-out settings.
func (c *AppConfig) Gateway() weather.GatewayConfig {
	return weather.GatewayConfig{ProviderTimeout: c.ProviderTimeout, MinSamples: c.MinSamples, MinCoverage: c.MinCoverage}
}

// Cache returns the result cache settings.
func (c *AppConfig) Cache() store.CacheConfig {
	return store.CacheConfig{TTL: c.CacheTTL, MaxEntries: c.CacheMaxEntries, WaitTimeout: c.CacheWaitTimeout}
}

// LocationList decodes "lat,lon;lat,lon" from the environment.
type LocationList []weather.Location

// Decode implements envconfig.Decoder.
func (l *LocationList) Decode(value string) error {
	var out LocationList
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lat, lon, ok := strings.Cut(part, ",")
		if !ok {
			return fmt.Errorf("location %q: want lat,lon", part)
		}
		la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil || la < -90 || la > 90 {
			return fmt.Errorf("location %q: invalid latitude", part)
		}
		lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err != nil || lo < -180 || lo > 180 {
			return fmt.Errorf("location %q: invalid longitude", part)
		}
		out = append(out, weather.Location{Latitude: la, Longitude: lo})
	}
	*l = out
	return nil
}
