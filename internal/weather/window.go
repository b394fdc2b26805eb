package weather

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultMinYear is the first year of the supported historical period.
const DefaultMinYear = 1990

// YearSample holds the observations of one anniversary window.
// Gap is set when the window returned no observations.
type YearSample struct {
	Year         int
	From         time.Time
	To           time.Time
	Observations []ClimateObservation
	Gap          bool
}

// HistoricalWindow is the multi-year sample set for one target date.
type HistoricalWindow struct {
	Location   Location
	TargetDate time.Time
	RadiusDays int
	YearsBack  int
	Years      []YearSample
}

// YearsCovered returns every year in the window, gaps included.
func (w *HistoricalWindow) YearsCovered() []int {
	years := make([]int, 0, len(w.Years))
	for _, y := range w.Years {
		years = append(years, y.Year)
	}
	return years
}

// ValidYears counts years with at least one observation.
func (w *HistoricalWindow) ValidYears() int {
	n := 0
	for _, y := range w.Years {
		if !y.Gap {
			n++
		}
	}
	return n
}

// SyntheticFraction is the share of observations produced by the fallback generator.
func (w *HistoricalWindow) SyntheticFraction() float64 {
	total, synthetic := 0, 0
	for _, y := range w.Years {
		for _, o := range y.Observations {
			total++
			if o.Tier == SourceSynthetic {
				synthetic++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(synthetic) / float64(total)
}

// Sources returns the distinct source names in the window, sorted.
func (w *HistoricalWindow) Sources() []string {
	seen := make(map[string]struct{})
	for _, y := range w.Years {
		for _, o := range y.Observations {
			seen[o.Source] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Anniversary returns the calendar anniversary of target in year.
// February 29 maps to February 28 in non-leap years.
func Anniversary(target time.Time, year int) time.Time {
	m, d := target.Month(), target.Day()
	if m == time.February && d == 29 && !isLeap(year) {
		d = 28
	}
	return time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// AnniversaryRange is the ±radius window around the anniversary of target in year.
// A window that crosses December 31 stays attached to the anniversary year.
func AnniversaryRange(target time.Time, year, radius int) DateRange {
	a := Anniversary(target, year)
	return DateRange{From: a.AddDate(0, 0, -radius), To: a.AddDate(0, 0, radius)}
}

// WindowExtractor builds historical windows.
type WindowExtractor struct {
	minYear int
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewWindowExtractor creates an extractor. minYear <= 0 uses DefaultMinYear.
func NewWindowExtractor(minYear int, clock clockwork.Clock, logger *zap.Logger) *WindowExtractor {
	if minYear <= 0 {
		minYear = DefaultMinYear
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowExtractor{minYear: minYear, clock: clock, logger: logger}
}

// YearSpan returns the first and last year sampled for yearsBack.
func (e *WindowExtractor) YearSpan(yearsBack int) (int, int) {
	last := e.clock.Now().UTC().Year()
	first := last - yearsBack
	if first < e.minYear {
		first = e.minYear
	}
	return first, last
}

// Span is the single date range covering every anniversary window of target and
// of each date up to extra days either side of it. Dates across December 31
// anchor to a different anniversary year, so each one is checked.
func (e *WindowExtractor) Span(target time.Time, radius, extra, yearsBack int) DateRange {
	first, last := e.YearSpan(yearsBack)
	target = Day(target)

	span := DateRange{From: AnniversaryRange(target, first, radius).From, To: AnniversaryRange(target, last, radius).To}
	for k := -extra; k <= extra; k++ {
		d := target.AddDate(0, 0, k)
		if lo := AnniversaryRange(d, first, radius).From; lo.Before(span.From) {
			span.From = lo
		}
		if hi := AnniversaryRange(d, last, radius).To; hi.After(span.To) {
			span.To = hi
		}
	}
	return span
}

// Build samples src for each year of the span. Years with no observations are
// kept as gaps. If ctx ends mid-way the partial window is returned with ctx.Err().
func (e *WindowExtractor) Build(ctx context.Context, src HistorySource, loc Location, target time.Time, radius, yearsBack int) (*HistoricalWindow, error) {
	if radius < 0 {
		return nil, fmt.Errorf("radius must not be negative")
	}
	if yearsBack < 1 {
		return nil, fmt.Errorf("years back must be at least 1")
	}

	target = Day(target)
	first, last := e.YearSpan(yearsBack)

	w := &HistoricalWindow{
		Location:   loc,
		TargetDate: target,
		RadiusDays: radius,
		YearsBack:  yearsBack,
		Years:      make([]YearSample, 0, last-first+1),
	}

	var gaps []int
	for year := first; year <= last; year++ {
		if err := ctx.Err(); err != nil {
			return w, err
		}

		rng := AnniversaryRange(target, year, radius)
		obs, err := src.FetchHistory(ctx, loc, rng)
		if err != nil {
			e.logger.Warn("window source failed for year",
				zap.Int("year", year),
				zap.String("range", rng.String()),
				zap.Error(err),
			)
			obs = nil
		}

		sample := YearSample{Year: year, From: rng.From, To: rng.To, Observations: filterRange(obs, rng)}
		if len(sample.Observations) == 0 {
			sample.Gap = true
			gaps = append(gaps, year)
		}
		w.Years = append(w.Years, sample)
	}

	if len(gaps) > 0 {
		e.logger.Debug("historical window has gaps",
			zap.String("location", loc.Key()),
			zap.String("target", target.Format(DateLayout)),
			zap.Ints("gap_years", gaps),
		)
	}
	return w, nil
}

// SnapshotSource serves observations already fetched from the gateway, so one
// network fetch can back many windows.
type SnapshotSource struct {
	byDay map[time.Time]ClimateObservation
}

// NewSnapshotSource indexes obs by day. Later duplicates win.
func NewSnapshotSource(obs []ClimateObservation) *SnapshotSource {
	byDay := make(map[time.Time]ClimateObservation, len(obs))
	for _, o := range obs {
		byDay[Day(o.Date)] = o
	}
	return &SnapshotSource{byDay: byDay}
}

// FetchHistory returns the stored observations within rng in date order.
func (s *SnapshotSource) FetchHistory(_ context.Context, _ Location, rng DateRange) ([]ClimateObservation, error) {
	var out []ClimateObservation
	for d := rng.From; !d.After(rng.To); d = d.AddDate(0, 0, 1) {
		if o, ok := s.byDay[d]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}
