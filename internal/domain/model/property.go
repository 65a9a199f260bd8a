// Package model contains domain models passed between layers.
package model

import "time"

// Coordinates is a resolved WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PropertyRecord is one industrial parcel. Records are owned by the record
// store and treated as read-only snapshots by the ranking core.
type PropertyRecord struct {
	ID           string       `json:"id"`
	CountyID     string       `json:"county_id"`
	Address      string       `json:"address"`
	City         string       `json:"city"`
	State        string       `json:"state"`
	ZipCode      string       `json:"zip_code,omitempty"`
	PropertyType string       `json:"property_type,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	BuildingArea float64      `json:"building_area"`      // square feet
	LotArea      *float64     `json:"lot_area,omitempty"` // square feet
	YearBuilt    *int         `json:"year_built,omitempty"`
	// AssessedValue of zero means unknown.
	AssessedValue float64   `json:"assessed_value"`
	MarketValue   *float64  `json:"market_value,omitempty"`
	ZoningCode    string    `json:"zoning_code,omitempty"`
	IsVerified    bool      `json:"is_verified"`
	QualityScore  *float64  `json:"quality_score,omitempty"` // [0,1], computed upstream
	DataSource    string    `json:"data_source,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// HasCoordinates reports whether the record carries a usable position.
func (p *PropertyRecord) HasCoordinates() bool {
	return p.Coordinates != nil
}

// PricePerSqFt returns assessed value per square foot of building area, and
// false when either input is missing or non-positive.
func (p *PropertyRecord) PricePerSqFt() (float64, bool) {
	if p.AssessedValue <= 0 || p.BuildingArea <= 0 {
		return 0, false
	}
	return p.AssessedValue / p.BuildingArea, true
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Clone returns a deep copy of p.
func (p *PropertyRecord) Clone() *PropertyRecord {
	c := *p
	if p.Coordinates != nil {
		coords := *p.Coordinates
		c.Coordinates = &coords
	}
	if p.LotArea != nil {
		c.LotArea = Float64Ptr(*p.LotArea)
	}
	if p.YearBuilt != nil {
		c.YearBuilt = IntPtr(*p.YearBuilt)
	}
	if p.MarketValue != nil {
		c.MarketValue = Float64Ptr(*p.MarketValue)
	}
	if p.QualityScore != nil {
		c.QualityScore = Float64Ptr(*p.QualityScore)
	}
	return &c
}
