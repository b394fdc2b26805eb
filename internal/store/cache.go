package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/weather-risk-analysis/internal/observability"
	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// ErrNotFound is returned when no live entry exists for a fingerprint.
var ErrNotFound = errors.New("no cached result for fingerprint")

// Entry is one cached analysis. Payload is zstd-compressed.
type Entry struct {
	Fingerprint string
	Payload     []byte
	CreatedAt   time.Time
	TTL         time.Duration
}

// Expired reports whether the entry is past its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && !now.Before(e.CreatedAt.Add(e.TTL))
}

// CacheConfig bounds the result cache.
type CacheConfig struct {
	TTL         time.Duration
	MaxEntries  int
	WaitTimeout time.Duration
}

// DefaultCacheConfig keeps 512 entries for six hours.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 6 * time.Hour, MaxEntries: 512, WaitTimeout: 15 * time.Second}
}

// ResultCache is a concurrency-safe in-memory cache of encoded analyses with
// per-fingerprint single-flight computation.
type ResultCache struct {
	entries *lru.Cache[string, Entry]
	group   singleflight.Group
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	cfg     CacheConfig
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

var _ weather.ResultCache = (*ResultCache)(nil)

// NewResultCache creates a cache. Zero config fields take their defaults.
func NewResultCache(cfg CacheConfig, clock clockwork.Clock, logger *zap.Logger, metrics *observability.Metrics) (*ResultCache, error) {
	def := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := lru.New[string, Entry](cfg.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &ResultCache{
		entries: entries,
		encoder: enc,
		decoder: dec,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Get returns the decoded payload for fingerprint if a live entry exists.
func (c *ResultCache) Get(fingerprint string) ([]byte, error) {
	e, ok := c.entries.Get(fingerprint)
	if !ok {
		return nil, ErrNotFound
	}
	if e.Expired(c.clock.Now()) {
		c.entries.Remove(fingerprint)
		c.metrics.CacheLookup("expired")
		c.metrics.CacheSize(c.entries.Len())
		return nil, ErrNotFound
	}

	payload, err := c.decoder.DecodeAll(e.Payload, nil)
	if err != nil {
		c.entries.Remove(fingerprint)
		return nil, fmt.Errorf("decode cached payload: %w", err)
	}
	return payload, nil
}

// Set stores payload under fingerprint with the configured TTL.
func (c *ResultCache) Set(fingerprint string, payload []byte) {
	c.entries.Add(fingerprint, Entry{
		Fingerprint: fingerprint,
		Payload:     c.encoder.EncodeAll(payload, nil),
		CreatedAt:   c.clock.Now(),
		TTL:         c.cfg.TTL,
	})
	c.metrics.CacheSize(c.entries.Len())
}

// Len returns the number of entries, expired ones included until purged.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}

// PurgeExpired removes every expired entry and returns how many were removed.
func (c *ResultCache) PurgeExpired() int {
	now := c.clock.Now()
	removed := 0
	for _, key := range c.entries.Keys() {
		if e, ok := c.entries.Peek(key); ok && e.Expired(now) {
			c.entries.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("purged expired cache entries", zap.Int("removed", removed), zap.Int("remaining", c.entries.Len()))
	}
	c.metrics.CacheSize(c.entries.Len())
	return removed
}

// GetOrCompute returns the cached payload for fingerprint or computes it. Among
// concurrent callers for one fingerprint only the first computes; the others
// wait up to WaitTimeout for its result. A waiter that times out, or whose
// leader failed, computes on its own. Errors are never cached.
func (c *ResultCache) GetOrCompute(ctx context.Context, fingerprint string, compute weather.ComputeFunc) ([]byte, error) {
	if payload, err := c.Get(fingerprint); err == nil {
		c.metrics.CacheLookup("hit")
		return payload, nil
	}

	leading := make(chan struct{})
	ch := c.group.DoChan(fingerprint, func() (any, error) {
		close(leading)
		// A previous flight may have stored the result after our lookup.
		if payload, err := c.Get(fingerprint); err == nil {
			return payload, nil
		}
		c.metrics.CacheLookup("miss")
		return c.computeAndStore(ctx, fingerprint, compute)
	})

	timer := c.clock.NewTimer(c.cfg.WaitTimeout)
	defer timer.Stop()

	for {
		select {
		case res := <-ch:
			if res.Err == nil {
				if res.Shared {
					c.metrics.CacheLookup("shared")
				}
				return res.Val.([]byte), nil
			}
			if !isLeader(leading) {
				c.logger.Debug("shared computation failed; recomputing",
					zap.String("fingerprint", fingerprint),
					zap.Error(res.Err),
				)
				return c.computeAndStore(ctx, fingerprint, compute)
			}
			return nil, res.Err

		case <-timer.Chan():
			if isLeader(leading) {
				// The leader waits for its own computation.
				continue
			}
			c.logger.Warn("timed out waiting for in-flight computation; computing independently",
				zap.String("fingerprint", fingerprint),
				zap.Duration("wait_timeout", c.cfg.WaitTimeout),
			)
			return c.computeAndStore(ctx, fingerprint, compute)

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *ResultCache) computeAndStore(ctx context.Context, fingerprint string, compute weather.ComputeFunc) ([]byte, error) {
	payload, cacheable, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.Set(fingerprint, payload)
	}
	return payload, nil
}

func isLeader(leading <-chan struct{}) bool {
	select {
	case <-leading:
		return true
	default:
		return false
	}
}
