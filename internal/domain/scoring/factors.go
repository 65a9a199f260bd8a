package scoring

import (
	"math"
	"strings"

	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/zoning"
)

const earthRadiusMiles = 3959.0

// FactorScore is one factor's similarity. Fallback is set when the score came
// from a neutral or county-level substitute rather than the records' data.
type FactorScore struct {
	Score    float64
	Fallback bool
}

// DistanceMiles returns the great-circle distance between two points.
func DistanceMiles(a, b model.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Location scores geographic proximity. Without coordinates on both sides it
// falls back to comparing counties.
func Location(target, cand *model.PropertyRecord, p Params) (FactorScore, *float64) {
	if target.HasCoordinates() && cand.HasCoordinates() {
		d := DistanceMiles(*target.Coordinates, *cand.Coordinates)
		return FactorScore{Score: clamp(1 - d/p.MaxDistanceMiles)}, &d
	}
	if sameCounty(target, cand) {
		return FactorScore{Score: p.CountyMatchScore, Fallback: true}, nil
	}
	return FactorScore{Score: p.CountyMismatchScore, Fallback: true}, nil
}

// Size scores building area on a log-ratio scale, so 10k vs 20k and
// 100k vs 200k score alike.
func Size(target, cand *model.PropertyRecord, p Params) FactorScore {
	return logRatio(target.BuildingArea, cand.BuildingArea, p.SizeHorizon, p.NeutralScore)
}

// Age scores the gap between construction years.
func Age(target, cand *model.PropertyRecord, p Params) FactorScore {
	if !validYear(target.YearBuilt) || !validYear(cand.YearBuilt) {
		return FactorScore{Score: p.NeutralScore, Fallback: true}
	}
	gap := math.Abs(float64(*target.YearBuilt - *cand.YearBuilt))
	return FactorScore{Score: clamp(1 - gap/p.AgeHorizonYears)}
}

// Zoning scores the semantic closeness of the two zoning groups.
func Zoning(target, cand *model.PropertyRecord, p Params) FactorScore {
	a, b := zoning.Classify(target.ZoningCode), zoning.Classify(cand.ZoningCode)
	return FactorScore{
		Score:    clamp(1 - p.Zoning.Distance(a, b)),
		Fallback: a == zoning.Unknown || b == zoning.Unknown,
	}
}

// Value scores assessed price per square foot on a log-ratio scale.
func Value(target, cand *model.PropertyRecord, p Params) FactorScore {
	a, okA := target.PricePerSqFt()
	b, okB := cand.PricePerSqFt()
	if !okA || !okB {
		return FactorScore{Score: p.NeutralScore, Fallback: true}
	}
	return logRatio(a, b, p.ValueHorizon, p.NeutralScore)
}

func logRatio(a, b, horizon, neutral float64) FactorScore {
	if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return FactorScore{Score: neutral, Fallback: true}
	}
	return FactorScore{Score: clamp(1 - math.Abs(math.Log(a/b))/horizon)}
}

func validYear(y *int) bool {
	return y != nil && *y > 0
}

func sameCounty(a, b *model.PropertyRecord) bool {
	return a.CountyID != "" && strings.EqualFold(a.CountyID, b.CountyID)
}

// clamp bounds v to [0,1]; NaN maps to 0.
func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
