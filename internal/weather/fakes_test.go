package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var errUpstream = errors.New("upstream unavailable")

// fakeProvider serves generated observations, optionally after a delay or with an error.
type fakeProvider struct {
	name  string
	tier  ProviderTier
	delay time.Duration
	err   error
	gen   func(day time.Time) ClimateObservation
	// limit caps the number of observations returned; 0 means no cap.
	limit int

	calls *atomic.Int64
	mu    sync.Mutex
	seen  []DateRange
}

func newFakeProvider(name string, tier ProviderTier) *fakeProvider {
	return &fakeProvider{name: name, tier: tier, gen: steadyDay(name), calls: atomic.NewInt64(0)}
}

func (p *fakeProvider) Name() string       { return p.name }
func (p *fakeProvider) Tier() ProviderTier { return p.tier }

func (p *fakeProvider) FetchHistory(ctx context.Context, _ Location, rng DateRange) ([]ClimateObservation, error) {
	p.calls.Inc()
	p.mu.Lock()
	p.seen = append(p.seen, rng)
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}

	var out []ClimateObservation
	for d := rng.From; !d.After(rng.To); d = d.AddDate(0, 0, 1) {
		if p.limit > 0 && len(out) >= p.limit {
			break
		}
		out = append(out, p.gen(d))
	}
	return out, nil
}

func (p *fakeProvider) ranges() []DateRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DateRange(nil), p.seen...)
}

// steadyDay produces a mild day whose hottest value varies with the year.
func steadyDay(source string) func(time.Time) ClimateObservation {
	return func(d time.Time) ClimateObservation {
		maxT := 26 + float64(d.Year()%5) + float64(d.Day()%3)
		precip := 0.0
		if d.Day()%7 == 0 {
			precip = 4
		}
		return ClimateObservation{
			Date:        d,
			MaxTempC:    maxT,
			MinTempC:    maxT - 9,
			PrecipMM:    precip,
			WindSpeedMS: 5 + float64(d.Year()%3),
			Tier:        SourceReal,
			Source:      source,
		}
	}
}

// yearWindow builds a window with one observation per year using obs(year).
func yearWindow(yearsBack int, years []int, obs func(year int) []ClimateObservation) *HistoricalWindow {
	w := &HistoricalWindow{YearsBack: yearsBack, RadiusDays: 7}
	for _, y := range years {
		o := obs(y)
		w.Years = append(w.Years, YearSample{Year: y, Observations: o, Gap: len(o) == 0})
	}
	return w
}

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
