// Package scoring computes per-factor similarity between two property
// records, the weighted similarity score and a confidence score.
package scoring

import (
	"strings"

	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/zoning"
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithParams overrides the factor parameters.
func WithParams(p Params) Option {
	return func(s *Scorer) {
		s.params = p
	}
}

// WithWeights overrides the factor weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithConfidence overrides the confidence parameters.
func WithConfidence(c ConfidenceParams) Option {
	return func(s *Scorer) {
		s.confidence = c
	}
}

// Result is the outcome of scoring one (target, candidate) pair.
type Result struct {
	Factors       model.SimilarityFactors
	Similarity    float64
	Confidence    float64
	DistanceMiles *float64
	// Fallbacks counts factors that used a neutral or county substitute.
	Fallbacks int
}

// Scorer is a pure function of its configuration and the two records.
// It is safe for concurrent use.
type Scorer struct {
	params     Params
	weights    Weights
	confidence ConfidenceParams
}

// New creates a Scorer with default configuration.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		params:     DefaultParams(),
		weights:    DefaultWeights(),
		confidence: DefaultConfidenceParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate reports whether the scorer configuration is usable.
func (s *Scorer) Validate() error {
	if err := s.weights.Validate(); err != nil {
		return err
	}
	if err := s.params.Validate(); err != nil {
		return err
	}
	return s.confidence.Validate()
}

// Score evaluates cand against target.
func (s *Scorer) Score(target, cand *model.PropertyRecord) Result {
	loc, dist := Location(target, cand, s.params)
	size := Size(target, cand, s.params)
	age := Age(target, cand, s.params)
	zone := Zoning(target, cand, s.params)
	value := Value(target, cand, s.params)

	res := Result{
		Factors: model.SimilarityFactors{
			Location: loc.Score,
			Size:     size.Score,
			Age:      age.Score,
			Zoning:   zone.Score,
			Value:    value.Score,
		},
		DistanceMiles: dist,
	}
	for _, f := range []FactorScore{loc, size, age, zone, value} {
		if f.Fallback {
			res.Fallbacks++
		}
	}
	res.Similarity = Similarity(res.Factors, s.weights)
	res.Confidence = Confidence(target, cand, res.Fallbacks, s.confidence)
	return res
}

// Similarity is the weighted sum of the factor scores, clamped to [0,1].
func Similarity(f model.SimilarityFactors, w Weights) float64 {
	return clamp(w.Location*f.Location +
		w.Size*f.Size +
		w.Zoning*f.Zoning +
		w.Value*f.Value +
		w.Age*f.Age)
}

// Confidence combines data completeness with the candidate's upstream
// quality, then applies exact-match, verification and provenance
// adjustments. The result is clamped to [0,1].
func Confidence(target, cand *model.PropertyRecord, fallbacks int, c ConfidenceParams) float64 {
	n := len(model.Factors)
	completeness := float64(n-fallbacks) / float64(n)

	quality := c.DefaultQuality
	if cand.QualityScore != nil {
		quality = clamp(*cand.QualityScore)
	}

	conf := c.CompletenessWeight*completeness + c.QualityWeight*quality
	if exactMatch(target, cand) {
		conf += c.ExactMatchBonus
	}
	if cand.IsVerified {
		conf += c.VerifiedBonus
	}
	if strings.TrimSpace(cand.DataSource) == "" {
		conf -= c.NoSourcePenalty
	}
	return clamp(conf)
}

func exactMatch(target, cand *model.PropertyRecord) bool {
	if !sameCounty(target, cand) {
		return false
	}
	a, b := zoning.Normalize(target.ZoningCode), zoning.Normalize(cand.ZoningCode)
	return a != "" && a == b
}
