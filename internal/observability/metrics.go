package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_risk"

// Metrics holds the Prometheus collectors for the risk engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,failure,insufficient,cancelled}
	ProviderDuration *prometheus.HistogramVec // labels: provider
	SyntheticFetches prometheus.Counter
	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss,shared,expired}
	CacheEntries     prometheus.Gauge
	AnalysisDuration prometheus.Histogram
	DegradedAnalyses prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Historical provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Historical provider call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		SyntheticFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthetic_fallbacks_total",
			Help:      "Gateway calls answered by the synthetic generator.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently held by the result cache.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a full uncached analysis.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		DegradedAnalyses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_analyses_total",
			Help:      "Analyses returned partial because the request deadline expired.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.SyntheticFetches,
		m.CacheLookups,
		m.CacheEntries,
		m.AnalysisDuration,
		m.DegradedAnalyses,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build many.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) ProviderOutcome(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) SyntheticFallback() {
	if m == nil {
		return
	}
	m.SyntheticFetches.Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheSize(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

func (m *Metrics) Analysis(elapsed time.Duration, degraded bool) {
	if m == nil {
		return
	}
	m.AnalysisDuration.Observe(elapsed.Seconds())
	if degraded {
		m.DegradedAnalyses.Inc()
	}
}
