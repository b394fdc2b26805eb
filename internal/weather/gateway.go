package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/i474232898/weather-risk-analysis/internal/observability"
)

// GatewayConfig tunes the Data Source Gateway.
type GatewayConfig struct {
	// ProviderTimeout bounds each provider call.
	ProviderTimeout time.Duration
	// MinSamples is the minimum number of observations a provider must return to win.
	MinSamples int
	// MinCoverage is the fraction of the requested days a provider must cover to win.
	MinCoverage float64
}

// DefaultGatewayConfig mirrors the service defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{ProviderTimeout: 6 * time.Second, MinSamples: 30, MinCoverage: 0.25}
}

// ProviderHealth is a point-in-time view of one provider's counters.
type ProviderHealth struct {
	Name         string    `json:"name"`
	Tier         string    `json:"tier"`
	Dataset      string    `json:"dataset"`
	Successes    int64     `json:"successes"`
	Failures     int64     `json:"failures"`
	Insufficient int64     `json:"insufficient"`
	LastError    string    `json:"last_error,omitempty"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
}

type providerHealth struct {
	successes    *atomic.Int64
	failures     *atomic.Int64
	insufficient *atomic.Int64
	lastError    *atomic.String
	lastSuccess  *atomic.Time
}

func newProviderHealth() *providerHealth {
	return &providerHealth{
		successes:    atomic.NewInt64(0),
		failures:     atomic.NewInt64(0),
		insufficient: atomic.NewInt64(0),
		lastError:    atomic.NewString(""),
		lastSuccess:  atomic.NewTime(time.Time{}),
	}
}

// Gateway queries historical providers concurrently and falls back to
// synthetic generation when none of them delivers enough data.
type Gateway struct {
	providers []Provider
	health    map[string]*providerHealth
	datasets  map[string]string
	synth     *SyntheticGenerator
	cfg       GatewayConfig
	clock     clockwork.Clock
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewGateway creates a Gateway. Providers are ordered by tier; providers of the
// same tier keep the order they were passed in.
func NewGateway(providers []Provider, cfg GatewayConfig, clock clockwork.Clock, logger *zap.Logger, metrics *observability.Metrics) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultGatewayConfig().ProviderTimeout
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 1
	}
	if cfg.MinCoverage < 0 || cfg.MinCoverage > 1 {
		cfg.MinCoverage = DefaultGatewayConfig().MinCoverage
	}

	ordered := make([]Provider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Tier() < ordered[j].Tier() })

	health := make(map[string]*providerHealth, len(ordered))
	datasets := map[string]string{SyntheticSourceName: SyntheticDataset}
	for _, p := range ordered {
		health[p.Name()] = newProviderHealth()
		if d, ok := p.(DatasetDescriber); ok {
			datasets[p.Name()] = d.Dataset()
		}
	}

	return &Gateway{
		providers: ordered,
		health:    health,
		datasets:  datasets,
		synth:     NewSyntheticGenerator(),
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// FetchHistory returns observations for loc over rng from the best available
// provider, or synthetic observations when every provider fails. The range end
// is clamped to today. It only returns an error for an invalid range.
func (g *Gateway) FetchHistory(ctx context.Context, loc Location, rng DateRange) ([]ClimateObservation, error) {
	rng = NewDateRange(rng.From, rng.To)
	if today := Day(g.clock.Now()); rng.To.After(today) {
		rng.To = today
	}
	if rng.Empty() {
		return nil, nil
	}

	if winner, ok := g.fanOut(ctx, loc, rng); ok {
		g.logger.Debug("gateway selected provider",
			zap.String("provider", winner.Provider),
			zap.String("tier", winner.Tier.String()),
			zap.Int("observations", len(winner.Observations)),
			zap.String("range", rng.String()),
		)
		return winner.Observations, nil
	}

	g.logger.Warn("all historical providers failed; using synthetic fallback",
		zap.String("location", loc.Key()),
		zap.String("range", rng.String()),
		zap.Int("providers", len(g.providers)),
	)
	g.metrics.SyntheticFallback()
	return g.synth.Generate(loc, rng), nil
}

// fanOut calls every provider concurrently. The winner is the first provider in
// priority order with a usable result, decided once all higher-priority providers
// have resolved. Providers still running after the decision finish in the
// background; their results are counted but ignored.
func (g *Gateway) fanOut(ctx context.Context, loc Location, rng DateRange) (ProviderResult, bool) {
	n := len(g.providers)
	if n == 0 {
		return ProviderResult{}, false
	}
	required := g.required(rng)

	type indexed struct {
		idx int
		res ProviderResult
	}

	// Buffered so late providers never block after a decision is made.
	results := make(chan indexed, n)

	for i, p := range g.providers {
		go func(i int, p Provider) {
			res := g.call(ctx, p, loc, rng, required)
			results <- indexed{idx: i, res: res}
		}(i, p)
	}

	resolved := make([]*ProviderResult, n)
	next := 0
	for received := 0; received < n; received++ {
		select {
		case r := <-results:
			res := r.res
			resolved[r.idx] = &res
		case <-ctx.Done():
			return ProviderResult{}, false
		}

		for next < n && resolved[next] != nil {
			if resolved[next].Usable(required) {
				return *resolved[next], true
			}
			next++
		}
	}
	return ProviderResult{}, false
}

// required is the number of observations a provider must return for rng.
func (g *Gateway) required(rng DateRange) int {
	n := int(math.Ceil(g.cfg.MinCoverage * float64(rng.Days())))
	if n < g.cfg.MinSamples {
		n = g.cfg.MinSamples
	}
	return n
}

// providerContext keeps the caller's deadline but not its cancellation, so a
// provider that loses the race still finishes and reports its own outcome.
func (g *Gateway) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := g.cfg.ProviderTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// call runs one provider under its own timeout and records its outcome.
func (g *Gateway) call(ctx context.Context, p Provider, loc Location, rng DateRange, required int) ProviderResult {
	pctx, cancel := g.providerContext(ctx)
	defer cancel()

	start := g.clock.Now()
	obs, err := p.FetchHistory(pctx, loc, rng)
	res := ProviderResult{
		Provider:     p.Name(),
		Tier:         p.Tier(),
		Observations: filterRange(obs, rng),
		Elapsed:      g.clock.Since(start),
	}
	if err != nil {
		res.Err = NewAppError(ErrCodeProviderUnavailable, fmt.Sprintf("provider %s failed", p.Name()), err)
	}

	h := g.health[p.Name()]
	switch {
	case errors.Is(err, context.Canceled):
		// Not the upstream's fault; leave its counters alone.
		g.metrics.ProviderOutcome(p.Name(), "cancelled", res.Elapsed)
		g.logger.Debug("historical provider call cancelled",
			zap.String("provider", p.Name()),
			zap.String("location", loc.Key()),
			zap.Duration("elapsed", res.Elapsed),
		)
	case res.Err != nil:
		h.failures.Inc()
		h.lastError.Store(err.Error())
		g.metrics.ProviderOutcome(p.Name(), "failure", res.Elapsed)
		g.logger.Warn("historical provider failed",
			zap.String("provider", p.Name()),
			zap.String("location", loc.Key()),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(err),
		)
	case !res.Usable(required):
		h.insufficient.Inc()
		g.metrics.ProviderOutcome(p.Name(), "insufficient", res.Elapsed)
		g.logger.Info("historical provider returned too few observations",
			zap.String("provider", p.Name()),
			zap.Int("observations", len(res.Observations)),
			zap.Int("required", required),
			zap.Int("requested_days", rng.Days()),
		)
	default:
		h.successes.Inc()
		h.lastSuccess.Store(g.clock.Now())
		g.metrics.ProviderOutcome(p.Name(), "success", res.Elapsed)
	}

	return res
}

// Dataset returns the attribution label for a source name, or the name itself.
func (g *Gateway) Dataset(source string) string {
	if d, ok := g.datasets[source]; ok {
		return d
	}
	return source
}

// Health returns the per-provider counters in priority order.
func (g *Gateway) Health() []ProviderHealth {
	out := make([]ProviderHealth, 0, len(g.providers))
	for _, p := range g.providers {
		h := g.health[p.Name()]
		out = append(out, ProviderHealth{
			Name:         p.Name(),
			Tier:         p.Tier().String(),
			Dataset:      g.Dataset(p.Name()),
			Successes:    h.successes.Load(),
			Failures:     h.failures.Load(),
			Insufficient: h.insufficient.Load(),
			LastError:    h.lastError.Load(),
			LastSuccess:  h.lastSuccess.Load(),
		})
	}
	return out
}

func filterRange(obs []ClimateObservation, rng DateRange) []ClimateObservation {
	out := obs[:0:0]
	for _, o := range obs {
		if rng.Contains(o.Date) {
			out = append(out, o)
		}
	}
	return out
}
