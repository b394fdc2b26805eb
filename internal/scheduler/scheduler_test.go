package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

type recordingAnalyzer struct {
	mu       sync.Mutex
	requests []weather.AnalysisRequest
	fail     bool
}

func (a *recordingAnalyzer) AnalyzeCached(ctx context.Context, req weather.AnalysisRequest) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.fail {
		return nil, errors.New("upstream down")
	}
	return []byte("{}"), nil
}

type countingPurger struct {
	calls *atomic.Int64
}

func (p countingPurger) PurgeExpired() int {
	p.calls.Inc()
	return 2
}

func TestRunOncePurgesAndWarmsEveryLocation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 13, 45, 0, 0, time.UTC))
	locations := []weather.Location{
		{Latitude: 40.7128, Longitude: -74.0060},
		{Latitude: 51.5074, Longitude: -0.1278},
	}
	analyzer := &recordingAnalyzer{}
	purger := countingPurger{calls: atomic.NewInt64(0)}

	s := New(locations, Config{LeadDays: 30}, analyzer, purger, clock, nil)
	s.RunOnce(context.Background())

	assert.EqualValues(t, 1, purger.calls.Load())
	require.Len(t, analyzer.requests, 2)
	for _, req := range analyzer.requests {
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), req.EventDate)
		assert.Equal(t, weather.DefaultThresholds(), req.Thresholds)
	}
	assert.ElementsMatch(t, locations, []weather.Location{analyzer.requests[0].Location, analyzer.requests[1].Location})
}

func TestRunOnceToleratesFailures(t *testing.T) {
	analyzer := &recordingAnalyzer{fail: true}
	s := New([]weather.Location{{Latitude: 1, Longitude: 1}}, Config{}, analyzer, nil, clockwork.NewFakeClock(), nil)

	assert.NotPanics(t, func() { s.RunOnce(context.Background()) })
	assert.Len(t, analyzer.requests, 1)
}

func TestRunOnceWithoutLocationsOnlyPurges(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	purger := countingPurger{calls: atomic.NewInt64(0)}
	s := New(nil, Config{}, analyzer, purger, clockwork.NewFakeClock(), nil)

	s.RunOnce(context.Background())
	assert.EqualValues(t, 1, purger.calls.Load())
	assert.Empty(t, analyzer.requests)
}

func TestStartRunsImmediately(t *testing.T) {
	purger := countingPurger{calls: atomic.NewInt64(0)}
	s := New(nil, Config{Interval: time.Hour}, nil, purger, clockwork.NewFakeClock(), nil)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return purger.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
