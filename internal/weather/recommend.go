package weather

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecommenderConfig tunes the alternative date search.
type RecommenderConfig struct {
	RadiusDays      int
	MaxAlternatives int
	Concurrency     int
	Margin          int
}

// DefaultRecommenderConfig searches ±7 days, four at a time, and keeps five.
func DefaultRecommenderConfig() RecommenderConfig {
	return RecommenderConfig{RadiusDays: 7, MaxAlternatives: 5, Concurrency: 4, Margin: 5}
}

// Scorer computes the comfort index of one date from a history source.
type Scorer func(ctx context.Context, src HistorySource, loc Location, date time.Time, t Thresholds) (int, error)

// Recommender ranks nearby dates by comfort.
type Recommender struct {
	cfg    RecommenderConfig
	score  Scorer
	logger *zap.Logger
}

// NewRecommender creates a Recommender that scores each candidate with score.
func NewRecommender(cfg RecommenderConfig, score Scorer, logger *zap.Logger) *Recommender {
	def := DefaultRecommenderConfig()
	if cfg.RadiusDays < 0 {
		cfg.RadiusDays = def.RadiusDays
	}
	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = def.MaxAlternatives
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Margin < 0 {
		cfg.Margin = def.Margin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{cfg: cfg, score: score, logger: logger}
}

// Label classifies idx against the base index.
func (r *Recommender) Label(idx, base int) Recommendation {
	switch {
	case idx >= base+r.cfg.Margin:
		return RecommendBetter
	case idx <= base-r.cfg.Margin:
		return RecommendRisky
	default:
		return RecommendMonitor
	}
}

// Recommend scores every offset in [-R, R] except 0 and returns the best
// candidates. The bool is true when ctx ended before every offset was scored;
// the candidates scored so far are still returned.
func (r *Recommender) Recommend(ctx context.Context, src HistorySource, loc Location, target time.Time, t Thresholds, base int) ([]AlternativeDateCandidate, bool) {
	target = Day(target)

	var (
		mu         sync.Mutex
		candidates []AlternativeDateCandidate
		partial    bool
	)

	g := &errgroup.Group{}
	g.SetLimit(r.cfg.Concurrency)

	for offset := -r.cfg.RadiusDays; offset <= r.cfg.RadiusDays; offset++ {
		if offset == 0 {
			continue
		}
		if ctx.Err() != nil {
			partial = true
			break
		}

		offset := offset
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				partial = true
				mu.Unlock()
				return nil
			}

			date := target.AddDate(0, 0, offset)
			idx, err := r.score(ctx, src, loc, date, t)
			if err != nil {
				mu.Lock()
				partial = true
				mu.Unlock()
				r.logger.Debug("alternative date skipped",
					zap.String("date", date.Format(DateLayout)),
					zap.Error(err),
				)
				return nil
			}

			mu.Lock()
			candidates = append(candidates, AlternativeDateCandidate{
				Date:           date.Format(DateLayout),
				ComfortIndex:   idx,
				OffsetDays:     offset,
				Recommendation: r.Label(idx, base),
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	SortCandidates(candidates)
	if len(candidates) > r.cfg.MaxAlternatives {
		candidates = candidates[:r.cfg.MaxAlternatives]
	}
	if candidates == nil {
		candidates = []AlternativeDateCandidate{}
	}
	return candidates, partial
}

// SortCandidates orders by comfort descending, then smaller |offset|, then earlier date.
func SortCandidates(c []AlternativeDateCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].ComfortIndex != c[j].ComfortIndex {
			return c[i].ComfortIndex > c[j].ComfortIndex
		}
		ai, aj := abs(c[i].OffsetDays), abs(c[j].OffsetDays)
		if ai != aj {
			return ai < aj
		}
		return c[i].Date < c[j].Date
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
