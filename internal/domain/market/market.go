// Package market summarizes where a target sits relative to its ranked
// comparables and derives follow-up recommendations.
package market

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/comps/internal/domain/model"
)

// Position is the target's price level relative to its comparables.
type Position string

// Market positions.
const (
	PositionAbove   Position = "above_market"
	PositionAt      Position = "at_market"
	PositionBelow   Position = "below_market"
	PositionUnknown Position = "unknown"
)

// Bands around the comparable average price per square foot.
const (
	AboveMarketRatio = 1.1
	BelowMarketRatio = 0.9
)

// Recommendation thresholds.
const (
	LowSimilarity      = 0.6
	FarDistanceMiles   = 10.0
	MaxRecommendations = 5
)

// PriceStats summarizes price per square foot across comparables.
type PriceStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// ValueRange is an estimated assessed-value band for the target.
type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Analysis is the market summary attached to a comparables response.
type Analysis struct {
	MarketPosition     Position    `json:"market_position"`
	TargetPricePerSqFt *float64    `json:"target_price_per_sqft,omitempty"`
	PricePerSqFt       *PriceStats `json:"price_per_sqft,omitempty"`
	ValueRange         ValueRange  `json:"value_range"`
	AverageSimilarity  float64     `json:"average_similarity"`
	AverageDistance    *float64    `json:"average_distance_miles,omitempty"`
	Summary            string      `json:"summary"`
	KeyInsights        []string    `json:"key_insights"`
	Recommendations    []string    `json:"recommendations"`
}

// Analyze computes the market summary for target against comps.
func Analyze(target *model.PropertyRecord, comps []model.ComparableResult) Analysis {
	a := Analysis{
		MarketPosition:  PositionUnknown,
		Recommendations: Recommend(comps),
	}
	if len(comps) == 0 {
		a.Summary = "Insufficient data for analysis"
		a.KeyInsights = []string{"No comparable properties found"}
		return a
	}

	var simSum, distSum float64
	var distN int
	for i := range comps {
		simSum += comps[i].SimilarityScore
		if d := comps[i].DistanceMiles; d != nil {
			distSum += *d
			distN++
		}
	}
	a.AverageSimilarity = simSum / float64(len(comps))
	if distN > 0 {
		avg := distSum / float64(distN)
		a.AverageDistance = &avg
	}

	stats, ok := priceStats(comps)
	if !ok {
		a.Summary = "Insufficient valuation data"
		a.KeyInsights = []string{"Comparable properties lack sufficient valuation data"}
		return a
	}
	a.PricePerSqFt = &stats
	a.Summary = fmt.Sprintf("Average price per sq ft: $%.2f", stats.Average)
	if target.BuildingArea > 0 {
		a.ValueRange = ValueRange{
			Min: math.Floor(stats.Min * target.BuildingArea),
			Max: math.Floor(stats.Max * target.BuildingArea),
		}
	}
	if ppsf, ok := target.PricePerSqFt(); ok {
		a.TargetPricePerSqFt = &ppsf
		a.MarketPosition = position(ppsf, stats.Average)
	}

	a.KeyInsights = []string{
		fmt.Sprintf("Comparable properties range from $%.2f to $%.2f per sq ft", stats.Min, stats.Max),
	}
	if a.MarketPosition != PositionUnknown {
		a.KeyInsights = append([]string{
			"Property positioned " + strings.ReplaceAll(string(a.MarketPosition), "_", " "),
		}, a.KeyInsights...)
	}
	return a
}

func priceStats(comps []model.ComparableResult) (PriceStats, bool) {
	s := PriceStats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for i := range comps {
		v, ok := comps[i].Property.PricePerSqFt()
		if !ok {
			continue
		}
		sum += v
		s.Samples++
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if s.Samples == 0 {
		return PriceStats{}, false
	}
	s.Average = sum / float64(s.Samples)
	return s, true
}

func position(target, avg float64) Position {
	switch {
	case target > avg*AboveMarketRatio:
		return PositionAbove
	case target < avg*BelowMarketRatio:
		return PositionBelow
	default:
		return PositionAt
	}
}

// Recommend returns at most MaxRecommendations follow-up actions.
func Recommend(comps []model.ComparableResult) []string {
	if len(comps) == 0 {
		return []string{
			"Expand search criteria to find more comparable properties",
			"Consider properties in adjacent markets",
		}
	}

	var recs []string
	var simSum, distSum float64
	var distN int
	for i := range comps {
		simSum += comps[i].SimilarityScore
		if d := comps[i].DistanceMiles; d != nil && *d > 0 {
			distSum += *d
			distN++
		}
	}
	if simSum/float64(len(comps)) < LowSimilarity {
		recs = append(recs, "Consider expanding search radius for better comparables")
	}
	if distN > 0 && distSum/float64(distN) > FarDistanceMiles {
		recs = append(recs, "Consider local market factors due to distance from comparables")
	}
	recs = append(recs,
		"Review property condition and maintenance requirements",
		"Consider market trends and economic factors",
		"Evaluate potential for property improvements",
	)
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}
