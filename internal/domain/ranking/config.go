package ranking

import (
	"encoding/json"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/comps/internal/domain/outlier"
	"github.com/okian/comps/internal/domain/scoring"
)

// DefaultTopK is the truncation limit when none is configured.
const DefaultTopK = 10

// Config is everything a ranking pass can be tuned with.
type Config struct {
	Weights             scoring.Weights          `json:"weights"`
	Params              scoring.Params           `json:"params"`
	Confidence          scoring.ConfidenceParams `json:"confidence"`
	TopK                int                      `json:"top_k"`
	MinSimilarity       float64                  `json:"min_similarity"`
	OutlierK            float64                  `json:"outlier_k"`
	OutlierMinPartition int                      `json:"outlier_min_partition"`
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() Config {
	return Config{
		Weights:             scoring.DefaultWeights(),
		Params:              scoring.DefaultParams(),
		Confidence:          scoring.DefaultConfidenceParams(),
		TopK:                DefaultTopK,
		MinSimilarity:       0,
		OutlierK:            outlier.DefaultK,
		OutlierMinPartition: outlier.DefaultMinPartition,
	}
}

// Validate returns an error wrapping ErrInvalidRequest when c is unusable.
func (c Config) Validate() error {
	if c.TopK <= 0 {
		return invalid(ErrInvalidTopK, nil)
	}
	if math.IsNaN(c.MinSimilarity) || c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return invalid(ErrInvalidThreshold, nil)
	}
	if err := c.Weights.Validate(); err != nil {
		return invalid(ErrInvalidWeights, err)
	}
	if err := c.Params.Validate(); err != nil {
		return invalid(ErrInvalidParams, err)
	}
	if err := c.Confidence.Validate(); err != nil {
		return invalid(ErrInvalidParams, err)
	}
	if !(c.OutlierK > 0) || c.OutlierMinPartition <= 0 {
		return invalid(ErrInvalidParams, nil)
	}
	return nil
}

// Hash fingerprints the parts of c that change per-pair scores. TopK,
// threshold and outlier settings are excluded since cached scores stay
// valid across them.
func (c Config) Hash() uint64 {
	b, err := json.Marshal(struct {
		W scoring.Weights          `json:"w"`
		P scoring.Params           `json:"p"`
		C scoring.ConfidenceParams `json:"c"`
	}{c.Weights, c.Params, c.Confidence})
	if err != nil {
		// Only NaN or Inf values fail to marshal and Validate rejects those.
		return 0
	}
	return xxhash.Sum64(b)
}

// Overrides are optional per-request adjustments to a base Config.
type Overrides struct {
	Weights          *scoring.Weights `json:"weights,omitempty"`
	TopK             *int             `json:"top_k,omitempty"`
	MinSimilarity    *float64         `json:"min_similarity,omitempty"`
	MaxDistanceMiles *float64         `json:"max_distance_miles,omitempty"`
	AgeHorizonYears  *float64         `json:"age_horizon_years,omitempty"`
	OutlierK         *float64         `json:"outlier_k,omitempty"`
	MinPartition     *int             `json:"outlier_min_partition,omitempty"`
}

// Apply returns base with every set override applied.
func (o *Overrides) Apply(base Config) Config {
	if o == nil {
		return base
	}
	if o.Weights != nil {
		base.Weights = *o.Weights
	}
	if o.TopK != nil {
		base.TopK = *o.TopK
	}
	if o.MinSimilarity != nil {
		base.MinSimilarity = *o.MinSimilarity
	}
	if o.MaxDistanceMiles != nil {
		base.Params.MaxDistanceMiles = *o.MaxDistanceMiles
	}
	if o.AgeHorizonYears != nil {
		base.Params.AgeHorizonYears = *o.AgeHorizonYears
	}
	if o.OutlierK != nil {
		base.OutlierK = *o.OutlierK
	}
	if o.MinPartition != nil {
		base.OutlierMinPartition = *o.MinPartition
	}
	return base
}
