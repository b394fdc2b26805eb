package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// Analyzer computes and caches an analysis.
type Analyzer interface {
	AnalyzeCached(ctx context.Context, req weather.AnalysisRequest) ([]byte, error)
}

// Purger drops expired cache entries.
type Purger interface {
	PurgeExpired() int
}

// Config controls the periodic jobs.
type Config struct {
	Interval   time.Duration
	LeadDays   int
	JobTimeout time.Duration
}

// Scheduler periodically warms the result cache for configured locations and
// purges expired entries.
type Scheduler struct {
	scheduler *gocron.Scheduler
	analyzer  Analyzer
	purger    Purger
	locations []weather.Location
	cfg       Config
	clock     clockwork.Clock
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(locations []weather.Location, cfg Config, analyzer Analyzer, purger Purger, clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		analyzer:  analyzer,
		purger:    purger,
		locations: locations,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.cfg.Interval).SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce purges expired entries, then warms every configured location for
// the date LeadDays ahead.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.purger != nil {
		if n := s.purger.PurgeExpired(); n > 0 {
			s.logger.Info("scheduler: purged expired cache entries", zap.Int("removed", n))
		}
	}

	if len(s.locations) == 0 || s.analyzer == nil {
		return
	}

	target := weather.Day(s.clock.Now()).AddDate(0, 0, s.cfg.LeadDays)
	s.logger.Info("scheduler: warming cache",
		zap.Int("locations", len(s.locations)),
		zap.String("event_date", target.Format(weather.DateLayout)),
	)

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			jctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
			defer cancel()

			req := weather.AnalysisRequest{
				Location:   loc,
				EventDate:  target,
				Thresholds: weather.DefaultThresholds(),
			}
			if _, err := s.analyzer.AnalyzeCached(jctx, req); err != nil {
				s.logger.Warn("scheduler: warm-up failed",
					zap.String("location", loc.Key()),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()
	s.logger.Info("scheduler: completed warm-up")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
