package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// Tuning holds optional overrides for engine constants that have no physical
// derivation. Unset fields keep their defaults.
//
//	comfort_weights:
//	  Very Hot: 0.35
//	  Very Cold: 0.25
//	  Heavy Rain: 0.25
//	  Strong Wind: 0.15
//	residual_weight: 0.1
//	recommendation_margin: 5
//	confidence_floor: 0.2
//	synthetic_penalty: 0.5
//	significance_level: 0.05
type Tuning struct {
	ComfortWeights       map[string]float64 `yaml:"comfort_weights"`
	ResidualWeight       *float64           `yaml:"residual_weight"`
	RecommendationMargin *int               `yaml:"recommendation_margin"`
	ConfidenceFloor      *float64           `yaml:"confidence_floor"`
	SyntheticPenalty     *float64           `yaml:"synthetic_penalty"`
	SignificanceLevel    *float64           `yaml:"significance_level"`
}

// LoadTuning reads a tuning file.
func LoadTuning(path string) (*Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}
	return ParseTuning(raw)
}

// ParseTuning decodes tuning YAML. Unknown keys are rejected.
func ParseTuning(raw []byte) (*Tuning, error) {
	var t Tuning
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse tuning yaml: %w", err)
	}
	return &t, nil
}

// Apply validates the overrides and writes them into ec.
func (t *Tuning) Apply(ec *weather.EngineConfig) error {
	if len(t.ComfortWeights) > 0 {
		weights := make(map[weather.Condition]float64, len(t.ComfortWeights))
		sum := 0.0
		for name, w := range t.ComfortWeights {
			if w < 0 {
				return fmt.Errorf("comfort weight for %q is negative", name)
			}
			weights[weather.Condition(name)] = w
			sum += w
		}
		if math.Abs(sum-1) > 1e-6 {
			return fmt.Errorf("comfort weights sum to %.3f, want 1", sum)
		}
		ec.Weights.Weights = weights
	}
	if t.ResidualWeight != nil {
		if *t.ResidualWeight < 0 || *t.ResidualWeight > 1 {
			return fmt.Errorf("residual_weight must be in [0, 1]")
		}
		ec.Weights.Residual = *t.ResidualWeight
	}
	if t.RecommendationMargin != nil {
		if *t.RecommendationMargin < 0 || *t.RecommendationMargin > 100 {
			return fmt.Errorf("recommendation_margin must be in [0, 100]")
		}
		ec.Recommender.Margin = *t.RecommendationMargin
	}
	if t.ConfidenceFloor != nil {
		if *t.ConfidenceFloor < 0 || *t.ConfidenceFloor > 1 {
			return fmt.Errorf("confidence_floor must be in [0, 1]")
		}
		ec.Confidence.Floor = *t.ConfidenceFloor
	}
	if t.SyntheticPenalty != nil {
		if *t.SyntheticPenalty < 0 || *t.SyntheticPenalty > 1 {
			return fmt.Errorf("synthetic_penalty must be in [0, 1]")
		}
		ec.Confidence.SyntheticPenalty = *t.SyntheticPenalty
	}
	if t.SignificanceLevel != nil {
		if *t.SignificanceLevel <= 0 || *t.SignificanceLevel >= 1 {
			return fmt.Errorf("significance_level must be in (0, 1)")
		}
		ec.Trend.Significance = *t.SignificanceLevel
	}
	return nil
}
