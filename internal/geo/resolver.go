package geo

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// Resolver turns a city and country into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, city, country string) (weather.Location, error)
}

// LookupFunc is the geocoding call a GoogleResolver makes.
type LookupFunc func(geocoder.Address) (geocoder.Location, error)

// GoogleResolver resolves places with the Google Geocoding API.
type GoogleResolver struct {
	lookup LookupFunc
}

// NewGoogleResolver configures the geocoder package with apiKey.
func NewGoogleResolver(apiKey string) *GoogleResolver {
	geocoder.ApiKey = apiKey
	return &GoogleResolver{lookup: geocoder.Geocoding}
}

// NewResolverWithLookup builds a resolver around a custom lookup.
func NewResolverWithLookup(lookup LookupFunc) *GoogleResolver {
	return &GoogleResolver{lookup: lookup}
}

// Resolve geocodes city/country. The geocoder client has no context support, so
// ctx only bounds how long the caller waits.
func (r *GoogleResolver) Resolve(ctx context.Context, city, country string) (weather.Location, error) {
	city, country = strings.TrimSpace(city), strings.TrimSpace(country)
	if city == "" {
		return weather.Location{}, weather.NewAppError(weather.ErrCodeValidationRequest, "city is required", nil)
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := r.lookup(geocoder.Address{City: city, Country: country})
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Location{}, weather.NewAppError(weather.ErrCodeTimeout, "geocoding timed out", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return weather.Location{}, weather.NewAppError(weather.ErrCodeLocationUnresolved,
				fmt.Sprintf("could not resolve %q", place(city, country)), res.err)
		}
		if res.loc.Latitude == 0 && res.loc.Longitude == 0 {
			return weather.Location{}, weather.NewAppError(weather.ErrCodeLocationUnresolved,
				fmt.Sprintf("no match for %q", place(city, country)), nil)
		}
		return weather.Location{
			Latitude:  res.loc.Latitude,
			Longitude: res.loc.Longitude,
			City:      city,
			Country:   country,
		}, nil
	}
}

func place(city, country string) string {
	if country == "" {
		return city
	}
	return city + ", " + country
}

// CachedResolver wraps a Resolver with an in-memory LRU cache. Failures are not cached.
type CachedResolver struct {
	inner Resolver
	cache *lru.Cache[string, weather.Location]
}

// NewCachedResolver creates a cache decorator around a resolver.
func NewCachedResolver(inner Resolver, maxEntries int) (*CachedResolver, error) {
	cache, err := lru.New[string, weather.Location](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedResolver{inner: inner, cache: cache}, nil
}

func (c *CachedResolver) Resolve(ctx context.Context, city, country string) (weather.Location, error) {
	key := strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(country))
	if loc, ok := c.cache.Get(key); ok {
		return loc, nil
	}
	loc, err := c.inner.Resolve(ctx, city, country)
	if err != nil {
		return loc, err
	}
	c.cache.Add(key, loc)
	return loc, nil
}
