package scoring

import (
	"fmt"
	"math"

	"github.com/okian/comps/internal/domain/zoning"
)

// Default factor parameters. They encode domain judgment and are exposed so
// callers can override them.
const (
	DefaultMaxDistanceMiles    = 50.0
	DefaultCountyMatchScore    = 1.0
	DefaultCountyMismatchScore = 0.3
	DefaultAgeHorizonYears     = 50.0
	DefaultNeutralScore        = 0.5
)

// DefaultSizeHorizon and DefaultValueHorizon make a 4x ratio score zero.
var (
	DefaultSizeHorizon  = math.Log(4)
	DefaultValueHorizon = math.Log(4)
)

// Params are the per-factor constants.
type Params struct {
	// MaxDistanceMiles is the distance at which location similarity reaches 0.
	MaxDistanceMiles float64 `json:"max_distance_miles"`
	// CountyMatchScore and CountyMismatchScore replace the distance score
	// when either record lacks coordinates.
	CountyMatchScore    float64 `json:"county_match_score"`
	CountyMismatchScore float64 `json:"county_mismatch_score"`
	// SizeHorizon is the |ln(areaA/areaB)| at which size similarity reaches 0.
	SizeHorizon float64 `json:"size_horizon"`
	// AgeHorizonYears is the year gap at which age similarity reaches 0.
	AgeHorizonYears float64 `json:"age_horizon_years"`
	// ValueHorizon is the |ln(ppsfA/ppsfB)| at which value similarity reaches 0.
	ValueHorizon float64 `json:"value_horizon"`
	// NeutralScore is used when a factor cannot be computed.
	NeutralScore float64 `json:"neutral_score"`
	// Zoning holds the group distance table.
	Zoning zoning.Table `json:"zoning"`
}

// DefaultParams returns the default factor parameters.
func DefaultParams() Params {
	return Params{
		MaxDistanceMiles:    DefaultMaxDistanceMiles,
		CountyMatchScore:    DefaultCountyMatchScore,
		CountyMismatchScore: DefaultCountyMismatchScore,
		SizeHorizon:         DefaultSizeHorizon,
		AgeHorizonYears:     DefaultAgeHorizonYears,
		ValueHorizon:        DefaultValueHorizon,
		NeutralScore:        DefaultNeutralScore,
		Zoning:              zoning.DefaultTable(),
	}
}

// Validate checks that horizons are positive and scores lie in [0,1].
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"max_distance_miles": p.MaxDistanceMiles,
		"size_horizon":       p.SizeHorizon,
		"age_horizon_years":  p.AgeHorizonYears,
		"value_horizon":      p.ValueHorizon,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidParams, name, v)
		}
	}
	for name, v := range map[string]float64{
		"county_match_score":    p.CountyMatchScore,
		"county_mismatch_score": p.CountyMismatchScore,
		"neutral_score":         p.NeutralScore,
	} {
		if !inUnit(v) {
			return fmt.Errorf("%w: %s must be in [0,1], got %v", ErrInvalidParams, name, v)
		}
	}
	if !p.Zoning.Valid() {
		return fmt.Errorf("%w: zoning distances must be in [0,1]", ErrInvalidParams)
	}
	return nil
}

// WeightTolerance is how far the weight sum may drift from 1.
const WeightTolerance = 1e-3

// Weights are the convex-combination coefficients of the five factors.
type Weights struct {
	Location float64 `json:"location" koanf:"location"`
	Size     float64 `json:"size" koanf:"size"`
	Zoning   float64 `json:"zoning" koanf:"zoning"`
	Value    float64 `json:"value" koanf:"value"`
	Age      float64 `json:"age" koanf:"age"`
}

// DefaultWeights favours size and zoning, the most discriminating factors
// for industrial comparables.
func DefaultWeights() Weights {
	return Weights{
		Location: 0.25,
		Size:     0.30,
		Zoning:   0.25,
		Value:    0.15,
		Age:      0.05,
	}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Location + w.Size + w.Zoning + w.Value + w.Age
}

// Validate checks that weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Location, w.Size, w.Zoning, w.Value, w.Age} {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: negative or NaN weight %v", ErrInvalidWeights, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("%w: weights sum to %.4f, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// Default confidence parameters.
const (
	DefaultCompletenessWeight = 0.6
	DefaultQualityWeight      = 0.4
	DefaultQuality            = 0.5
	DefaultExactMatchBonus    = 0.1
	DefaultVerifiedBonus      = 0.05
	DefaultNoSourcePenalty    = 0.05
)

// ConfidenceParams weigh the trust signals of a match.
type ConfidenceParams struct {
	// CompletenessWeight scales the fraction of factors computed from data.
	CompletenessWeight float64 `json:"completeness_weight"`
	// QualityWeight scales the candidate's upstream quality score.
	QualityWeight float64 `json:"quality_weight"`
	// DefaultQuality stands in for a missing quality score.
	DefaultQuality float64 `json:"default_quality"`
	// ExactMatchBonus is added when zoning code and county match exactly.
	ExactMatchBonus float64 `json:"exact_match_bonus"`
	// VerifiedBonus is added for verified candidates.
	VerifiedBonus float64 `json:"verified_bonus"`
	// NoSourcePenalty is subtracted when the candidate has no provenance tag.
	NoSourcePenalty float64 `json:"no_source_penalty"`
}

// DefaultConfidenceParams returns the default confidence parameters.
func DefaultConfidenceParams() ConfidenceParams {
	return ConfidenceParams{
		CompletenessWeight: DefaultCompletenessWeight,
		QualityWeight:      DefaultQualityWeight,
		DefaultQuality:     DefaultQuality,
		ExactMatchBonus:    DefaultExactMatchBonus,
		VerifiedBonus:      DefaultVerifiedBonus,
		NoSourcePenalty:    DefaultNoSourcePenalty,
	}
}

// Validate checks that every confidence parameter lies in [0,1].
func (c ConfidenceParams) Validate() error {
	for _, v := range []float64{c.CompletenessWeight, c.QualityWeight, c.DefaultQuality, c.ExactMatchBonus, c.VerifiedBonus, c.NoSourcePenalty} {
		if !inUnit(v) {
			return fmt.Errorf("%w: confidence parameter %v outside [0,1]", ErrInvalidParams, v)
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
