package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/weather-risk-analysis/internal/observability"
)

const (
	maxEventYearsAhead     = 10
	defaultRequestDeadline = 10 * time.Second
)

// HistoryGateway is the data source the engine analyzes.
type HistoryGateway interface {
	HistorySource
	Health() []ProviderHealth
	Dataset(source string) string
}

// FingerprintFunc derives the cache key of a request.
type FingerprintFunc func(req AnalysisRequest) string

// EngineConfig holds the analysis parameters.
type EngineConfig struct {
	YearsBack        int
	WindowRadiusDays int
	MinYear          int
	RequestDeadline  time.Duration
	Confidence       ConfidenceModel
	Trend            TrendConfig
	Weights          ComfortWeights
	Recommender      RecommenderConfig
}

// DefaultEngineConfig analyzes 35 years with a ±7 day window.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		YearsBack:        35,
		WindowRadiusDays: 7,
		MinYear:          DefaultMinYear,
		RequestDeadline:  defaultRequestDeadline,
		Confidence:       DefaultConfidenceModel(),
		Trend:            DefaultTrendConfig(),
		Weights:          DefaultComfortWeights(),
		Recommender:      DefaultRecommenderConfig(),
	}
}

// Service is the risk engine entry point.
type Service struct {
	gateway     HistoryGateway
	cache       ResultCache
	fingerprint FingerprintFunc
	extractor   *WindowExtractor
	recommender *Recommender
	cfg         EngineConfig
	clock       clockwork.Clock
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewService creates a Service. cache may be nil, in which case AnalyzeCached
// computes every request.
func NewService(gateway HistoryGateway, cache ResultCache, fingerprint FingerprintFunc, cfg EngineConfig, clock clockwork.Clock, logger *zap.Logger, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultEngineConfig()
	if cfg.YearsBack <= 0 {
		cfg.YearsBack = def.YearsBack
	}
	if cfg.WindowRadiusDays < 0 {
		cfg.WindowRadiusDays = def.WindowRadiusDays
	}
	if cfg.RequestDeadline <= 0 {
		cfg.RequestDeadline = def.RequestDeadline
	}
	if cfg.Weights.Weights == nil {
		cfg.Weights = def.Weights
	}

	s := &Service{
		gateway:     gateway,
		cache:       cache,
		fingerprint: fingerprint,
		extractor:   NewWindowExtractor(cfg.MinYear, clock, logger),
		cfg:         cfg,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
	s.recommender = NewRecommender(cfg.Recommender, s.score, logger)
	s.cfg.Recommender = s.recommender.cfg
	return s
}

// Validate rejects requests that cannot be analyzed. No work is done for them.
func (s *Service) Validate(req AnalysisRequest) error {
	loc := req.Location
	if math.IsNaN(loc.Latitude) || loc.Latitude < -90 || loc.Latitude > 90 {
		return NewAppError(ErrCodeValidationLatitude, "latitude must be between -90 and 90", nil)
	}
	if math.IsNaN(loc.Longitude) || loc.Longitude < -180 || loc.Longitude > 180 {
		return NewAppError(ErrCodeValidationLongitude, "longitude must be between -180 and 180", nil)
	}

	if req.EventDate.IsZero() {
		return NewAppError(ErrCodeValidationDate, "event date is required", nil)
	}
	minYear := s.extractor.minYear
	maxYear := s.clock.Now().UTC().Year() + maxEventYearsAhead
	if y := req.EventDate.Year(); y < minYear || y > maxYear {
		return NewAppError(ErrCodeValidationDate, fmt.Sprintf("event date year must be between %d and %d", minYear, maxYear), nil)
	}

	t := req.Thresholds
	switch {
	case !within(t.HotTemp, MinTemperatureC, MaxTemperatureC):
		return NewAppError(ErrCodeValidationThreshold, fmt.Sprintf("hot_temp must be between %.0f and %.0f °C", MinTemperatureC, MaxTemperatureC), nil)
	case !within(t.ColdTemp, MinTemperatureC, MaxTemperatureC):
		return NewAppError(ErrCodeValidationThreshold, fmt.Sprintf("cold_temp must be between %.0f and %.0f °C", MinTemperatureC, MaxTemperatureC), nil)
	case !within(t.Precipitation, 0, MaxPrecipMM):
		return NewAppError(ErrCodeValidationThreshold, fmt.Sprintf("precipitation must be between 0 and %.0f mm", MaxPrecipMM), nil)
	case !within(t.WindSpeed, 0, MaxWindSpeedMS):
		return NewAppError(ErrCodeValidationThreshold, fmt.Sprintf("wind_speed must be between 0 and %.0f m/s", MaxWindSpeedMS), nil)
	}
	return nil
}

func within(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// Analyze runs the full uncached analysis for req.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestDeadline)
	defer cancel()

	target := Day(req.EventDate)
	loc := req.Location

	span := s.extractor.Span(target, s.cfg.WindowRadiusDays, s.cfg.Recommender.RadiusDays, s.cfg.YearsBack)
	history, err := s.gateway.FetchHistory(ctx, loc, span)
	if err != nil {
		return nil, NewAppError(ErrCodeInternalUnexpected, "fetch historical observations", err)
	}
	snapshot := NewSnapshotSource(history)

	var warnings []Warning
	degraded := false
	if ctx.Err() != nil {
		degraded = true
		warnings = append(warnings, Warning{Code: ErrCodeTimeout, Message: "request deadline reached while fetching history"})
	}

	// The base window is served from memory and must complete even past the deadline.
	window, probs, err := s.evaluate(context.WithoutCancel(ctx), snapshot, loc, target, req.Thresholds)
	if err != nil {
		return nil, NewAppError(ErrCodeInternalUnexpected, "build historical window", err)
	}
	comfort := s.cfg.Weights.Aggregate(probs)

	alternatives, partial := s.recommender.Recommend(ctx, snapshot, loc, target, req.Thresholds, comfort)
	if partial && !degraded {
		degraded = true
		warnings = append(warnings, Warning{Code: ErrCodeTimeout, Message: "request deadline reached; alternative dates are partial"})
	}

	fallback := window.SyntheticFraction() > 0
	if fallback {
		warnings = append(warnings, Warning{
			Code:    ErrCodeSyntheticFallback,
			Message: "historical providers unavailable; synthetic climatology used with reduced confidence",
		})
	}
	if window.ValidYears() == 0 {
		warnings = append(warnings, Warning{Code: ErrCodeInsufficientData, Message: "no usable historical years for this location and date"})
	}

	first, last := s.extractor.YearSpan(s.cfg.YearsBack)
	analysis := &Analysis{
		Location:         loc,
		EventDate:        target.Format(DateLayout),
		ComfortIndex:     comfort,
		Probabilities:    probs,
		AlternativeDates: alternatives,
		Metadata: AnalysisMetadata{
			AnalysisID:      uuid.NewString(),
			DatasetsUsed:    s.datasets(window),
			YearsAnalyzed:   fmt.Sprintf("%d-%d", first, last),
			AnalysisDate:    s.clock.Now().UTC().Format(time.RFC3339),
			ConfidenceLevel: confidenceLevel(probs),
			DataWindow:      fmt.Sprintf("±%d days", s.cfg.WindowRadiusDays),
			Fallback:        fallback,
			Degraded:        degraded,
			Warnings:        warnings,
		},
	}

	elapsed := s.clock.Since(start)
	s.metrics.Analysis(elapsed, degraded)
	s.logger.Info("analysis complete",
		zap.String("analysis_id", analysis.Metadata.AnalysisID),
		zap.String("location", loc.Key()),
		zap.String("event_date", analysis.EventDate),
		zap.Int("comfort_index", comfort),
		zap.Int("valid_years", window.ValidYears()),
		zap.Bool("fallback", fallback),
		zap.Bool("degraded", degraded),
		zap.Duration("elapsed", elapsed),
	)
	return analysis, nil
}

// AnalyzeCached returns the JSON-encoded analysis for req, computing it at most
// once per fingerprint among concurrent callers. Degraded analyses are returned
// but not cached.
func (s *Service) AnalyzeCached(ctx context.Context, req AnalysisRequest) ([]byte, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	compute := func(ctx context.Context) ([]byte, bool, error) {
		a, err := s.Analyze(ctx, req)
		if err != nil {
			return nil, false, err
		}
		payload, err := json.Marshal(a)
		if err != nil {
			return nil, false, NewAppError(ErrCodeInternalEncoding, "encode analysis", err)
		}
		return payload, !a.Metadata.Degraded, nil
	}

	if s.cache == nil || s.fingerprint == nil {
		payload, _, err := compute(ctx)
		return payload, err
	}

	payload, err := s.cache.GetOrCompute(ctx, s.fingerprint(req), compute)
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewAppError(ErrCodeTimeout, "analysis did not complete in time", err)
		}
		return nil, NewAppError(ErrCodeInternalUnexpected, "analysis failed", err)
	}
	return payload, nil
}

// Sources reports the configured providers and their health counters.
func (s *Service) Sources() []ProviderHealth {
	return s.gateway.Health()
}

// Config returns the effective engine configuration.
func (s *Service) Config() EngineConfig {
	return s.cfg
}

// evaluate builds the window for date and computes probability and trend per condition.
func (s *Service) evaluate(ctx context.Context, src HistorySource, loc Location, date time.Time, t Thresholds) (*HistoricalWindow, []ProbabilityResult, error) {
	w, err := s.extractor.Build(ctx, src, loc, date, s.cfg.WindowRadiusDays, s.cfg.YearsBack)
	if err != nil {
		return w, nil, err
	}

	conditions := t.Conditions()
	results := make([]ProbabilityResult, 0, len(conditions))
	for _, ct := range conditions {
		r := ComputeProbability(w, ct, s.cfg.Confidence)
		tr := DetectTrend(w, ct.Condition, s.cfg.Trend)
		r.Trend, r.TrendSlope, r.PValue = tr.Label, tr.Slope, tr.PValue
		results = append(results, r)
	}
	return w, results, nil
}

func (s *Service) score(ctx context.Context, src HistorySource, loc Location, date time.Time, t Thresholds) (int, error) {
	_, results, err := s.evaluate(ctx, src, loc, date, t)
	if err != nil {
		return 0, err
	}
	return s.cfg.Weights.Aggregate(results), nil
}

func (s *Service) datasets(w *HistoricalWindow) []string {
	sources := w.Sources()
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		out = append(out, s.gateway.Dataset(src))
	}
	return out
}

// confidenceLevel renders the mean confidence as a percentage, e.g. "85%".
func confidenceLevel(results []ProbabilityResult) string {
	if len(results) == 0 {
		return "0%"
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Confidence
	}
	return fmt.Sprintf("%.0f%%", 100*sum/float64(len(results)))
}
