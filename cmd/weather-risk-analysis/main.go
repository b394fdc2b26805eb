package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-risk-analysis/internal/api/http"
	"github.com/i474232898/weather-risk-analysis/internal/config"
	"github.com/i474232898/weather-risk-analysis/internal/geo"
	"github.com/i474232898/weather-risk-analysis/internal/observability"
	"github.com/i474232898/weather-risk-analysis/internal/scheduler"
	"github.com/i474232898/weather-risk-analysis/internal/store"
	"github.com/i474232898/weather-risk-analysis/internal/weather"
	"github.com/i474232898/weather-risk-analysis/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	engineCfg, err := cfg.Engine()
	if err != nil {
		logger.Fatal("invalid engine tuning", zap.Error(err))
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (backoff + circuit breaker), in registration order
	// within each tier.
	var provs []weather.Provider
	provOpts := []providers.Option{providers.WithLogger(logger), providers.WithClock(clock)}
	if cfg.NASAPowerEnabled {
		provs = append(provs, providers.NewNASAPowerProvider(httpClient, provOpts...))
	}
	if cfg.OpenMeteoEnabled {
		provs = append(provs, providers.NewOpenMeteoProvider(httpClient, provOpts...))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, provOpts...))
	}
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, provOpts...))
	}
	if len(provs) == 0 {
		logger.Warn("no historical providers enabled; every analysis will use synthetic data")
	}

	gateway := weather.NewGateway(provs, cfg.Gateway(), clock, logger, metrics)

	cache, err := store.NewResultCache(cfg.Cache(), clock, logger, metrics)
	if err != nil {
		logger.Fatal("failed to create result cache", zap.Error(err))
	}

	service := weather.NewService(gateway, cache, store.Fingerprinter(cfg.GridResolution), engineCfg, clock, logger, metrics)

	var resolver geo.Resolver
	if cfg.GeocoderAPIKey != "" {
		resolver, err = geo.NewCachedResolver(geo.NewGoogleResolver(cfg.GeocoderAPIKey), 1024)
		if err != nil {
			logger.Fatal("failed to create geocoder", zap.Error(err))
		}
	}

	// Scheduler that purges expired entries and keeps configured locations warm.
	sched := scheduler.New(cfg.WarmLocations, scheduler.Config{
		Interval:   cfg.WarmInterval,
		LeadDays:   cfg.WarmLeadDays,
		JobTimeout: cfg.RequestDeadline + cfg.ProviderTimeout,
	}, service, cache, clock, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, resolver, logger)

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port), zap.Int("providers", len(provs)))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}
