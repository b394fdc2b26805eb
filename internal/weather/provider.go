package weather

import (
	"context"
	"time"
)

// Provider abstracts a historical daily-data source (e.g. NASA POWER, Open-Meteo archive).
type Provider interface {
	Name() string
	Tier() ProviderTier
	FetchHistory(ctx context.Context, loc Location, rng DateRange) ([]ClimateObservation, error)
}

// DatasetDescriber is implemented by providers that can name the dataset behind
// their data for attribution, e.g. "NASA POWER (MERRA-2)".
type DatasetDescriber interface {
	Dataset() string
}

// HistorySource is anything that can serve daily observations for a range:
// the Gateway itself, or an in-memory snapshot of what it already returned.
type HistorySource interface {
	FetchHistory(ctx context.Context, loc Location, rng DateRange) ([]ClimateObservation, error)
}

// ProviderResult is the outcome of one provider call within a gateway fan-out.
type ProviderResult struct {
	Provider     string
	Tier         ProviderTier
	Observations []ClimateObservation
	Err          error
	Elapsed      time.Duration
}

// Usable reports whether the result succeeded with at least required observations.
func (r ProviderResult) Usable(required int) bool {
	return r.Err == nil && len(r.Observations) >= required && len(r.Observations) > 0
}

// ComputeFunc produces an encoded payload for the cache. Returning cacheable=false
// hands the payload to the caller without storing it.
type ComputeFunc func(ctx context.Context) (payload []byte, cacheable bool, err error)

// ResultCache is the contract the result cache must satisfy.
type ResultCache interface {
	GetOrCompute(ctx context.Context, fingerprint string, compute ComputeFunc) ([]byte, error)
}
