package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentroid_Point(t *testing.T) {
	c, err := Centroid(&shp.Point{X: -87.65, Y: 41.85})
	require.NoError(t, err)
	assert.Equal(t, 41.85, c.Latitude)
	assert.Equal(t, -87.65, c.Longitude)
}

func TestCentroid_Polygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -80.0, Y: 25.0},
			{X: -80.0, Y: 26.0},
			{X: -79.0, Y: 26.0},
			{X: -79.0, Y: 25.0},
			{X: -80.0, Y: 25.0},
		},
	}

	c, err := Centroid(poly)
	require.NoError(t, err)
	assert.InDelta(t, 25.5, c.Latitude, 1e-9)
	assert.InDelta(t, -79.5, c.Longitude, 1e-9)
}

func TestCentroid_Unsupported(t *testing.T) {
	_, err := Centroid(&shp.PolyLine{NumParts: 1, Parts: []int32{0}, Points: []shp.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}})
	assert.True(t, errors.Is(err, ErrUnsupportedShape))

	_, err = Centroid(&shp.Polygon{})
	assert.True(t, errors.Is(err, ErrUnsupportedShape))
}

func TestNew_RequiresCounty(t *testing.T) {
	_, err := New("  ")
	assert.True(t, errors.Is(err, ErrMissingCounty))
}

func TestRecord(t *testing.T) {
	im, err := New("cook", WithSource("cook_assessor"), WithVerified(true))
	require.NoError(t, err)

	attrs := map[string]string{
		"pin":        "1701",
		"address":    "100 W Lake St",
		"city":       "Chicago",
		"state":      "IL",
		"zoning":     "M-1",
		"bldg_sqft":  "45,000",
		"lot_sqft":   "",
		"year_built": "1987",
		"assessed":   "3600000",
		"market_val": "-1",
	}

	rec, err := im.Record(attrs, &shp.Point{X: -87.63, Y: 41.88})
	require.NoError(t, err)
	assert.Equal(t, "cook-1701", rec.ID)
	assert.Equal(t, "cook", rec.CountyID)
	assert.Equal(t, "M-1", rec.ZoningCode)
	assert.Equal(t, 45000.0, rec.BuildingArea)
	assert.Equal(t, 3_600_000.0, rec.AssessedValue)
	assert.Nil(t, rec.LotArea)
	assert.Nil(t, rec.MarketValue)
	require.NotNil(t, rec.YearBuilt)
	assert.Equal(t, 1987, *rec.YearBuilt)
	require.NotNil(t, rec.Coordinates)
	assert.Equal(t, 41.88, rec.Coordinates.Latitude)
	assert.True(t, rec.IsVerified)
	assert.Equal(t, "cook_assessor", rec.DataSource)
	assert.False(t, rec.LastUpdated.IsZero())
}

func TestRecord_MissingID(t *testing.T) {
	im, err := New("cook")
	require.NoError(t, err)

	_, err = im.Record(map[string]string{"address": "x"}, nil)
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestRecord_CustomFieldMap(t *testing.T) {
	fm := DefaultFieldMap()
	fm.ID = "PARCEL_ID"
	fm.BuildingArea = "GBA"
	im, err := New("dallas", WithFieldMap(fm))
	require.NoError(t, err)

	rec, err := im.Record(map[string]string{"parcel_id": "9", "gba": "12000"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "dallas-9", rec.ID)
	assert.Equal(t, 12000.0, rec.BuildingArea)
	assert.Nil(t, rec.Coordinates)
}

func TestShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcels.shp")

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("PIN", 20),
		shp.StringField("ZONING", 10),
		shp.FloatField("BLDG_SQFT", 12, 2),
		shp.NumberField("YEAR_BUILT", 4),
	})
	rows := []struct {
		pin    string
		zoning string
		area   float64
		year   int
		pt     shp.Point
	}{
		{"A1", "I-2", 40000, 1995, shp.Point{X: -87.7, Y: 41.9}},
		{"", "I-2", 10000, 2001, shp.Point{X: -87.6, Y: 41.8}},
		{"A3", "M-1", 25000, 2010, shp.Point{X: -87.5, Y: 41.7}},
	}
	for _, r := range rows {
		pt := r.pt
		n := int(w.Write(&pt))
		w.WriteAttribute(n, 0, r.pin)
		w.WriteAttribute(n, 1, r.zoning)
		w.WriteAttribute(n, 2, r.area)
		w.WriteAttribute(n, 3, r.year)
	}
	w.Close()

	im, err := New("cook")
	require.NoError(t, err)

	recs, st, err := im.Shapefile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, Stats{Read: 3, Imported: 2, Skipped: 1}, st)
	require.Len(t, recs, 2)
	assert.Equal(t, "cook-A1", recs[0].ID)
	assert.Equal(t, "I-2", recs[0].ZoningCode)
	assert.Equal(t, 40000.0, recs[0].BuildingArea)
	require.NotNil(t, recs[0].YearBuilt)
	assert.Equal(t, 1995, *recs[0].YearBuilt)
	assert.InDelta(t, 41.9, recs[0].Coordinates.Latitude, 1e-9)
	assert.Equal(t, "cook-A3", recs[1].ID)
}

func TestShapefile_Missing(t *testing.T) {
	im, err := New("cook")
	require.NoError(t, err)

	_, _, err = im.Shapefile(context.Background(), filepath.Join(t.TempDir(), "nope.shp"))
	assert.Error(t, err)
}
