package store

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-risk-analysis/internal/observability"
)

var errCompute = errors.New("compute failed")

func newTestCache(t *testing.T, cfg CacheConfig, clock clockwork.Clock) *ResultCache {
	t.Helper()
	c, err := NewResultCache(cfg, clock, nil, observability.NewMetricsForTesting())
	require.NoError(t, err)
	return c
}

func fixed(payload string, cacheable bool, calls *atomic.Int64) func(context.Context) ([]byte, bool, error) {
	return func(context.Context) ([]byte, bool, error) {
		calls.Inc()
		return []byte(payload), cacheable, nil
	}
}

func TestCacheConcurrentIdenticalRequestsComputeOnce(t *testing.T) {
	c := newTestCache(t, DefaultCacheConfig(), clockwork.NewRealClock())
	calls := atomic.NewInt64(0)
	release := make(chan struct{})
	payload := bytes.Repeat([]byte(`{"comfort_index":77}`), 50)

	compute := func(context.Context) ([]byte, bool, error) {
		calls.Inc()
		<-release
		return payload, true, nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), "fp", compute)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, payload, results[i])
	}
	assert.Equal(t, 1, c.Len())
}

func TestCacheHitSkipsCompute(t *testing.T) {
	c := newTestCache(t, DefaultCacheConfig(), clockwork.NewFakeClock())
	calls := atomic.NewInt64(0)

	first, err := c.GetOrCompute(context.Background(), "fp", fixed("a", true, calls))
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), "fp", fixed("b", true, calls))
	require.NoError(t, err)

	assert.Equal(t, "a", string(first))
	assert.Equal(t, "a", string(second))
	assert.EqualValues(t, 1, calls.Load())
}

func TestCacheEntryExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, CacheConfig{TTL: time.Hour}, clock)

	c.Set("fp", []byte("payload"))
	got, err := c.Get("fp")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	clock.Advance(59 * time.Minute)
	_, err = c.Get("fp")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = c.Get("fp")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, c.Len())
}

func TestCachePurgeExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, CacheConfig{TTL: time.Hour}, clock)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	clock.Advance(30 * time.Minute)
	c.Set("c", []byte("3"))
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 2, c.PurgeExpired())
	assert.Equal(t, 1, c.Len())
	_, err := c.Get("c")
	assert.NoError(t, err)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, CacheConfig{MaxEntries: 2}, clockwork.NewFakeClock())

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	_, err := c.Get("a")
	require.NoError(t, err)
	c.Set("c", []byte("3"))

	assert.Equal(t, 2, c.Len())
	_, err = c.Get("b")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get("a")
	assert.NoError(t, err)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	c := newTestCache(t, DefaultCacheConfig(), clockwork.NewFakeClock())
	calls := atomic.NewInt64(0)

	failing := func(context.Context) ([]byte, bool, error) {
		calls.Inc()
		return nil, false, errCompute
	}

	_, err := c.GetOrCompute(context.Background(), "fp", failing)
	assert.ErrorIs(t, err, errCompute)
	_, err = c.GetOrCompute(context.Background(), "fp", failing)
	assert.ErrorIs(t, err, errCompute)

	assert.EqualValues(t, 2, calls.Load())
	assert.Zero(t, c.Len())
}

func TestCacheDoesNotStoreNonCacheablePayloads(t *testing.T) {
	c := newTestCache(t, DefaultCacheConfig(), clockwork.NewFakeClock())
	calls := atomic.NewInt64(0)

	got, err := c.GetOrCompute(context.Background(), "fp", fixed("partial", false, calls))
	require.NoError(t, err)
	assert.Equal(t, "partial", string(got))
	assert.Zero(t, c.Len())

	_, err = c.GetOrCompute(context.Background(), "fp", fixed("partial", false, calls))
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

// startLeader runs a GetOrCompute whose compute blocks until release yields.
func startLeader(c *ResultCache, release <-chan error) (<-chan struct{}, <-chan error) {
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(context.Background(), "fp", func(context.Context) ([]byte, bool, error) {
			close(started)
			if err := <-release; err != nil {
				return nil, false, err
			}
			return []byte("leader"), true, nil
		})
		done <- err
	}()
	return started, done
}

func TestCacheWaiterRecomputesWhenLeaderFails(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, CacheConfig{WaitTimeout: time.Minute}, clock)

	release := make(chan error)
	started, leaderDone := startLeader(c, release)
	<-started

	waiterDone := make(chan []byte, 1)
	calls := atomic.NewInt64(0)
	go func() {
		got, err := c.GetOrCompute(context.Background(), "fp", fixed("waiter", true, calls))
		assert.NoError(t, err)
		waiterDone <- got
	}()

	// Both callers are waiting once both have armed their timers.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	release <- errCompute
	assert.ErrorIs(t, <-leaderDone, errCompute)
	assert.Equal(t, "waiter", string(<-waiterDone))
	assert.EqualValues(t, 1, calls.Load())
}

func TestCacheWaiterComputesIndependentlyAfterTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, CacheConfig{WaitTimeout: time.Minute}, clock)

	release := make(chan error)
	started, leaderDone := startLeader(c, release)
	<-started

	waiterDone := make(chan []byte, 1)
	calls := atomic.NewInt64(0)
	go func() {
		got, err := c.GetOrCompute(context.Background(), "fp", fixed("waiter", true, calls))
		assert.NoError(t, err)
		waiterDone <- got
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(time.Minute)

	assert.Equal(t, "waiter", string(<-waiterDone))
	assert.EqualValues(t, 1, calls.Load())

	// The leader keeps waiting for its own result.
	release <- nil
	require.NoError(t, <-leaderDone)
	got, err := c.Get("fp")
	require.NoError(t, err)
	assert.Equal(t, "leader", string(got))
}

func TestCacheCompressesPayloads(t *testing.T) {
	c := newTestCache(t, DefaultCacheConfig(), clockwork.NewFakeClock())
	payload := bytes.Repeat([]byte(`{"condition":"Very Hot","probability":12.5}`), 200)

	c.Set("fp", payload)
	e, ok := c.entries.Peek("fp")
	require.True(t, ok)
	assert.Less(t, len(e.Payload), len(payload))

	got, err := c.Get("fp")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
