package model

// Factor names one similarity dimension.
type Factor string

// The five fixed similarity factors.
const (
	FactorLocation Factor = "location"
	FactorSize     Factor = "size"
	FactorAge      Factor = "age"
	FactorZoning   Factor = "zoning"
	FactorValue    Factor = "value"
)

// Factors lists every factor in a stable order.
var Factors = []Factor{FactorLocation, FactorSize, FactorAge, FactorZoning, FactorValue}

// SimilarityFactors holds the five per-factor scores for one
// (target, candidate) pair. Every field is always populated and in [0,1].
type SimilarityFactors struct {
	Location float64 `json:"location"`
	Size     float64 `json:"size"`
	Age      float64 `json:"age"`
	Zoning   float64 `json:"zoning"`
	Value    float64 `json:"value"`
}

// Get returns the score for f.
func (s SimilarityFactors) Get(f Factor) float64 {
	switch f {
	case FactorLocation:
		return s.Location
	case FactorSize:
		return s.Size
	case FactorAge:
		return s.Age
	case FactorZoning:
		return s.Zoning
	case FactorValue:
		return s.Value
	}
	return 0
}

// OutlierFlag is advisory metadata attached to a comparable.
type OutlierFlag string

// Outlier flags.
const (
	SizeOutlier  OutlierFlag = "size_outlier"
	ValueOutlier OutlierFlag = "value_outlier"
)

// ComparableResult is a scored candidate. It is built fresh per request.
type ComparableResult struct {
	Property          PropertyRecord    `json:"property"`
	SimilarityFactors SimilarityFactors `json:"similarity_factors"`
	SimilarityScore   float64           `json:"similarity_score"`
	ConfidenceScore   float64           `json:"confidence_score"`
	DistanceMiles     *float64          `json:"distance_miles,omitempty"`
	OutlierFlags      []OutlierFlag     `json:"outlier_flags"`
}

// HasFlag reports whether flag is set on the result.
func (c *ComparableResult) HasFlag(flag OutlierFlag) bool {
	for _, f := range c.OutlierFlags {
		if f == flag {
			return true
		}
	}
	return false
}
