// Package importer loads parcel shapefiles into property records.
package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/pkg/logger"
	"github.com/okian/comps/pkg/metrics"
)

// FieldMap names the DBF attribute holding each record field. Empty names
// are skipped. Matching is case-insensitive.
type FieldMap struct {
	ID            string `koanf:"id"`
	Address       string `koanf:"address"`
	City          string `koanf:"city"`
	State         string `koanf:"state"`
	ZipCode       string `koanf:"zip_code"`
	PropertyType  string `koanf:"property_type"`
	Zoning        string `koanf:"zoning"`
	BuildingArea  string `koanf:"building_area"`
	LotArea       string `koanf:"lot_area"`
	YearBuilt     string `koanf:"year_built"`
	AssessedValue string `koanf:"assessed_value"`
	MarketValue   string `koanf:"market_value"`
}

// DefaultFieldMap matches common county assessor exports.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		ID:            "PIN",
		Address:       "ADDRESS",
		City:          "CITY",
		State:         "STATE",
		ZipCode:       "ZIP",
		PropertyType:  "USE_DESC",
		Zoning:        "ZONING",
		BuildingArea:  "BLDG_SQFT",
		LotArea:       "LOT_SQFT",
		YearBuilt:     "YEAR_BUILT",
		AssessedValue: "ASSESSED",
		MarketValue:   "MARKET_VAL",
	}
}

// Option configures an Importer.
type Option func(*Importer)

// WithFieldMap overrides the attribute names.
func WithFieldMap(fm FieldMap) Option {
	return func(im *Importer) { im.fields = fm }
}

// WithSource sets the provenance tag stamped on every record.
func WithSource(source string) Option {
	return func(im *Importer) { im.source = source }
}

// WithVerified marks every imported record as verified.
func WithVerified(v bool) Option {
	return func(im *Importer) { im.verified = v }
}

// WithLogger sets the importer logger.
func WithLogger(l logger.Logger) Option {
	return func(im *Importer) { im.log = l }
}

// Importer converts shapefile features into records for one county.
type Importer struct {
	county   string
	source   string
	verified bool
	fields   FieldMap
	log      logger.Logger
	now      func() time.Time
}

// New creates an importer for county.
func New(county string, opts ...Option) (*Importer, error) {
	county = strings.TrimSpace(county)
	if county == "" {
		return nil, ErrMissingCounty
	}
	im := &Importer{
		county: county,
		source: "shapefile",
		fields: DefaultFieldMap(),
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im, nil
}

// Stats summarizes one import.
type Stats struct {
	Read     int `json:"read"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Shapefile reads every feature of the shapefile at path. Features without
// an id or with an unusable shape are skipped and counted.
func (im *Importer) Shapefile(ctx context.Context, path string) ([]*model.PropertyRecord, Stats, error) {
	var st Stats
	reader, err := shp.Open(path)
	if err != nil {
		return nil, st, eris.Wrapf(err, "importer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var out []*model.PropertyRecord
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		st.Read++
		_, shape := reader.Shape()

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			attrs[strings.ToLower(name)] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		rec, err := im.Record(attrs, shape)
		if err != nil {
			st.Skipped++
			im.log.Debug(ctx, "skipping shapefile feature",
				logger.Int("feature", st.Read-1),
				logger.Error(err))
			continue
		}
		out = append(out, rec)
	}
	st.Imported = len(out)

	metrics.RecordRecordsImported(st.Imported)
	im.log.Info(ctx, "shapefile read",
		logger.String("path", path),
		logger.String("county", im.county),
		logger.Int("read", st.Read),
		logger.Int("imported", st.Imported),
		logger.Int("skipped", st.Skipped))
	return out, st, nil
}

// Record builds a property record from lower-cased DBF attributes and a
// feature geometry. A nil shape leaves coordinates unset.
func (im *Importer) Record(attrs map[string]string, shape shp.Shape) (*model.PropertyRecord, error) {
	get := func(name string) string {
		if name == "" {
			return ""
		}
		return attrs[strings.ToLower(name)]
	}

	id := get(im.fields.ID)
	if id == "" {
		return nil, ErrMissingID
	}

	var coords *model.Coordinates
	if shape != nil {
		c, err := Centroid(shape)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", id, err)
		}
		coords = c
	}

	rec := &model.PropertyRecord{
		ID:            im.county + "-" + id,
		CountyID:      im.county,
		Address:       get(im.fields.Address),
		City:          get(im.fields.City),
		State:         get(im.fields.State),
		ZipCode:       get(im.fields.ZipCode),
		PropertyType:  get(im.fields.PropertyType),
		ZoningCode:    get(im.fields.Zoning),
		Coordinates:   coords,
		BuildingArea:  positive(get(im.fields.BuildingArea)),
		AssessedValue: positive(get(im.fields.AssessedValue)),
		IsVerified:    im.verified,
		DataSource:    im.source,
		LastUpdated:   im.now().UTC(),
	}
	if v := positive(get(im.fields.LotArea)); v > 0 {
		rec.LotArea = model.Float64Ptr(v)
	}
	if v := positive(get(im.fields.MarketValue)); v > 0 {
		rec.MarketValue = model.Float64Ptr(v)
	}
	if y, err := strconv.Atoi(get(im.fields.YearBuilt)); err == nil && y > 0 {
		rec.YearBuilt = model.IntPtr(y)
	}
	return rec, nil
}

// positive parses s as a number, yielding 0 for blanks, garbage and
// negative values.
func positive(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// Centroid returns the representative position of a shape: the point itself
// or the area centroid of a polygon.
func Centroid(shape shp.Shape) (*model.Coordinates, error) {
	switch s := shape.(type) {
	case *shp.Point:
		return &model.Coordinates{Latitude: s.Y, Longitude: s.X}, nil
	case *shp.Polygon:
		mp := toMultiPolygon(s)
		if mp == nil {
			return nil, fmt.Errorf("%w: empty polygon", ErrUnsupportedShape)
		}
		c, err := xy.Centroid(mp)
		if err != nil {
			return nil, eris.Wrap(err, "importer: polygon centroid")
		}
		return &model.Coordinates{Latitude: c.Y(), Longitude: c.X()}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedShape, shape)
}

func toMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start, end := p.Parts[i], int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
