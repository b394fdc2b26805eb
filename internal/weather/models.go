package weather

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire and in fingerprints.
const DateLayout = "2006-01-02"

// SourceTier marks whether an observation came from a real archive or the synthetic fallback.
type SourceTier string

const (
	SourceReal      SourceTier = "real"
	SourceSynthetic SourceTier = "synthetic"
)

// ProviderTier is the trust ranking of a historical-data provider. Lower ranks are preferred.
type ProviderTier int

const (
	TierReanalysis ProviderTier = iota + 1
	TierPrecipitationArchive
	TierLiveConditions
	TierSynthetic
)

func (t ProviderTier) String() string {
	switch t {
	case TierReanalysis:
		return "reanalysis"
	case TierPrecipitationArchive:
		return "precipitation_archive"
	case TierLiveConditions:
		return "live_conditions"
	case TierSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// Location is a point on the globe. City/Country are optional and only used
// for display and geocoding.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// Key returns a canonical string key for logging and synthetic seeding.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// Snap rounds the coordinates to a grid of the given resolution in degrees.
func (l Location) Snap(resolution float64) Location {
	if resolution <= 0 {
		return l
	}
	snap := func(v float64) float64 {
		s := math.Round(v/resolution) * resolution
		// Avoid "-0.0" leaking into keys.
		if s == 0 {
			return 0
		}
		return math.Round(s*1e6) / 1e6
	}
	return Location{Latitude: snap(l.Latitude), Longitude: snap(l.Longitude)}
}

// DateRange is an inclusive range of calendar days (UTC midnight).
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange normalizes both ends to UTC midnight.
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: Day(from), To: Day(to)}
}

// Empty reports whether the range contains no days.
func (r DateRange) Empty() bool {
	return r.To.Before(r.From)
}

// Contains reports whether d falls within the range.
func (r DateRange) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns the number of days in the range.
func (r DateRange) Days() int {
	if r.Empty() {
		return 0
	}
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.From.Format(DateLayout) + ".." + r.To.Format(DateLayout)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClimateObservation is the canonical per-day historical record.
type ClimateObservation struct {
	Date        time.Time  `json:"date"`
	MaxTempC    float64    `json:"max_temperature"`
	MinTempC    float64    `json:"min_temperature"`
	PrecipMM    float64    `json:"precipitation_amount"`
	WindSpeedMS float64    `json:"wind_speed"`
	Tier        SourceTier `json:"source_tier"`
	Source      string     `json:"source_name"`
}

// Condition names an adverse weather condition.
type Condition string

const (
	ConditionVeryHot    Condition = "Very Hot"
	ConditionVeryCold   Condition = "Very Cold"
	ConditionHeavyRain  Condition = "Heavy Rain"
	ConditionStrongWind Condition = "Strong Wind"
)

// Comparison is the direction in which a threshold is crossed.
type Comparison string

const (
	GreaterThan Comparison = "greater_than"
	LessThan    Comparison = "less_than"
)

// Crosses reports whether v crosses the threshold in the given direction.
func (c Comparison) Crosses(v, threshold float64) bool {
	if c == LessThan {
		return v < threshold
	}
	return v > threshold
}

// ConditionThreshold is a user-supplied limit for one condition.
type ConditionThreshold struct {
	Condition  Condition  `json:"condition"`
	Comparison Comparison `json:"comparison"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
}

// Label renders the threshold the way the response shows it, e.g. ">32°C".
func (t ConditionThreshold) Label() string {
	op := ">"
	if t.Comparison == LessThan {
		op = "<"
	}
	return fmt.Sprintf("%s%s%s", op, formatNumber(t.Value), t.Unit)
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

// Thresholds is the request-level threshold set.
type Thresholds struct {
	HotTemp       float64 `json:"hot_temp"`
	ColdTemp      float64 `json:"cold_temp"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"wind_speed"`
}

// DefaultThresholds are used when a request omits thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{HotTemp: 32, ColdTemp: 0, Precipitation: 5, WindSpeed: 15}
}

// Conditions expands the request thresholds into the four condition thresholds
// in their canonical order.
func (t Thresholds) Conditions() []ConditionThreshold {
	return []ConditionThreshold{
		{Condition: ConditionVeryHot, Comparison: GreaterThan, Value: t.HotTemp, Unit: "°C"},
		{Condition: ConditionVeryCold, Comparison: LessThan, Value: t.ColdTemp, Unit: "°C"},
		{Condition: ConditionHeavyRain, Comparison: GreaterThan, Value: t.Precipitation, Unit: "mm"},
		{Condition: ConditionStrongWind, Comparison: GreaterThan, Value: t.WindSpeed, Unit: "m/s"},
	}
}

// TrendLabel classifies a climate trend.
type TrendLabel string

const (
	TrendIncreasing TrendLabel = "increasing"
	TrendDecreasing TrendLabel = "decreasing"
	TrendStable     TrendLabel = "stable"
)

// ProbabilityResult is the per-condition outcome of an analysis.
type ProbabilityResult struct {
	Condition      Condition  `json:"condition"`
	Probability    float64    `json:"probability"`
	Threshold      string     `json:"threshold"`
	Trend          TrendLabel `json:"trend"`
	Confidence     float64    `json:"confidence"`
	HistoricalMean float64    `json:"historical_mean"`
	TrendSlope     float64    `json:"trend_slope"`
	PValue         float64    `json:"p_value"`
	SampleSize     int        `json:"sample_size"`
}

// Recommendation labels an alternative date relative to the requested one.
type Recommendation string

const (
	RecommendBetter  Recommendation = "Better"
	RecommendMonitor Recommendation = "Monitor"
	RecommendRisky   Recommendation = "Risky"
)

// AlternativeDateCandidate is one ranked nearby date.
type AlternativeDateCandidate struct {
	Date           string         `json:"date"`
	ComfortIndex   int            `json:"comfort_index"`
	OffsetDays     int            `json:"offset_days"`
	Recommendation Recommendation `json:"recommendation"`
}

// AnalysisRequest is the engine's input.
type AnalysisRequest struct {
	Location   Location
	EventDate  time.Time
	Thresholds Thresholds
}

// AnalysisMetadata describes provenance and degradation of an analysis.
type AnalysisMetadata struct {
	AnalysisID      string    `json:"analysis_id"`
	DatasetsUsed    []string  `json:"datasets_used"`
	YearsAnalyzed   string    `json:"years_analyzed"`
	AnalysisDate    string    `json:"analysis_date"`
	ConfidenceLevel string    `json:"confidence_level"`
	DataWindow      string    `json:"data_window"`
	Fallback        bool      `json:"fallback"`
	Degraded        bool      `json:"degraded"`
	Warnings        []Warning `json:"warnings,omitempty"`
}

// Warning is an advisory attached to a response.
type Warning struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Analysis is the full response for one request.
type Analysis struct {
	Location         Location                   `json:"location"`
	EventDate        string                     `json:"event_date"`
	ComfortIndex     int                        `json:"comfort_index"`
	Probabilities    []ProbabilityResult        `json:"probabilities"`
	AlternativeDates []AlternativeDateCandidate `json:"alternative_dates"`
	Metadata         AnalysisMetadata           `json:"metadata"`
}
