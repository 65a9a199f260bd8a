package market_test

import (
	"testing"

	"github.com/okian/comps/internal/domain/market"
	"github.com/okian/comps/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func comp(area, value, sim float64, dist *float64) model.ComparableResult {
	return model.ComparableResult{
		Property:        model.PropertyRecord{BuildingArea: area, AssessedValue: value},
		SimilarityScore: sim,
		DistanceMiles:   dist,
	}
}

func TestAnalyze(t *testing.T) {
	Convey("Given a target and priced comparables", t, func() {
		target := &model.PropertyRecord{ID: "t", CountyID: "cook", BuildingArea: 10000, AssessedValue: 1_500_000}
		comps := []model.ComparableResult{
			comp(10000, 1_000_000, 0.9, nil),
			comp(20000, 2_400_000, 0.8, nil),
			comp(5000, 400_000, 0.7, nil),
			comp(8000, 0, 0.7, nil),
		}

		a := market.Analyze(target, comps)

		Convey("Then price stats skip unpriced comparables", func() {
			So(a.PricePerSqFt, ShouldNotBeNil)
			So(a.PricePerSqFt.Samples, ShouldEqual, 3)
			So(a.PricePerSqFt.Min, ShouldEqual, 80)
			So(a.PricePerSqFt.Max, ShouldEqual, 120)
			So(a.PricePerSqFt.Average, ShouldAlmostEqual, 100, 1e-9)
		})

		Convey("And the target is above market at 150 per sq ft", func() {
			So(a.MarketPosition, ShouldEqual, market.PositionAbove)
			So(*a.TargetPricePerSqFt, ShouldEqual, 150)
			So(a.KeyInsights[0], ShouldEqual, "Property positioned above market")
		})

		Convey("And the value range scales the ppsf band by target area", func() {
			So(a.ValueRange, ShouldResemble, market.ValueRange{Min: 800_000, Max: 1_200_000})
		})

		Convey("And a target inside the band is at market", func() {
			target.AssessedValue = 1_050_000
			So(market.Analyze(target, comps).MarketPosition, ShouldEqual, market.PositionAt)
			target.AssessedValue = 800_000
			So(market.Analyze(target, comps).MarketPosition, ShouldEqual, market.PositionBelow)
		})

		Convey("And an unpriced target is unknown", func() {
			target.AssessedValue = 0
			a := market.Analyze(target, comps)
			So(a.MarketPosition, ShouldEqual, market.PositionUnknown)
			So(a.PricePerSqFt, ShouldNotBeNil)
		})
	})

	Convey("Given no comparables", t, func() {
		a := market.Analyze(&model.PropertyRecord{ID: "t"}, nil)

		Convey("Then the analysis is unknown with search advice", func() {
			So(a.MarketPosition, ShouldEqual, market.PositionUnknown)
			So(a.KeyInsights, ShouldResemble, []string{"No comparable properties found"})
			So(a.Recommendations, ShouldHaveLength, 2)
		})
	})

	Convey("Given comparables without valuations", t, func() {
		a := market.Analyze(&model.PropertyRecord{ID: "t", BuildingArea: 100}, []model.ComparableResult{comp(100, 0, 0.9, nil)})

		Convey("Then the position is unknown", func() {
			So(a.MarketPosition, ShouldEqual, market.PositionUnknown)
			So(a.PricePerSqFt, ShouldBeNil)
		})
	})
}

func TestRecommend(t *testing.T) {
	Convey("Given weak, distant comparables", t, func() {
		far := 25.0
		recs := market.Recommend([]model.ComparableResult{comp(1, 1, 0.4, &far), comp(1, 1, 0.5, nil)})

		Convey("Then radius and locality advice lead, capped at five", func() {
			So(recs, ShouldHaveLength, market.MaxRecommendations)
			So(recs[0], ShouldEqual, "Consider expanding search radius for better comparables")
			So(recs[1], ShouldEqual, "Consider local market factors due to distance from comparables")
		})
	})

	Convey("Given strong nearby comparables", t, func() {
		near := 2.0
		recs := market.Recommend([]model.ComparableResult{comp(1, 1, 0.9, &near)})

		Convey("Then only general advice is given", func() {
			So(recs, ShouldHaveLength, 3)
		})
	})
}
