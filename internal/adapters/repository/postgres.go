package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/okian/comps/internal/domain/model"
)

const (
	driverPostgres = "postgres"
	sridWGS84      = 4326
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store on PostgreSQL with PostGIS point geometry.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects a pool to dsn and pings it.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS properties (
	id             TEXT PRIMARY KEY,
	county_id      TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	zip_code       TEXT NOT NULL DEFAULT '',
	property_type  TEXT NOT NULL DEFAULT '',
	location       geometry(Point, 4326),
	building_area  DOUBLE PRECISION NOT NULL DEFAULT 0,
	lot_area       DOUBLE PRECISION,
	year_built     INTEGER,
	assessed_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	market_value   DOUBLE PRECISION,
	zoning_code    TEXT NOT NULL DEFAULT '',
	zoning_norm    TEXT NOT NULL DEFAULT '',
	is_verified    BOOLEAN NOT NULL DEFAULT FALSE,
	quality_score  DOUBLE PRECISION,
	data_source    TEXT NOT NULL DEFAULT '',
	last_updated   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_properties_county ON properties (LOWER(county_id));
CREATE INDEX IF NOT EXISTS idx_properties_zoning ON properties (zoning_norm);
CREATE INDEX IF NOT EXISTS idx_properties_location ON properties USING GIST (location);
`

// Migrate creates the schema and the PostGIS extension.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresColumns = `id, county_id, address, city, state, zip_code, property_type,
	COALESCE(ST_AsEWKB(location), ''::bytea), building_area, COALESCE(lot_area, -1),
	COALESCE(year_built, 0), assessed_value, COALESCE(market_value, -1), zoning_code,
	is_verified, COALESCE(quality_score, -1), data_source, last_updated`

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.PropertyRecord, error) {
	defer observe(driverPostgres, "get", time.Now())
	row := s.pool.QueryRow(ctx, `SELECT `+postgresColumns+` FROM properties WHERE id = $1`, id)
	r, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", id)
	}
	return r, nil
}

func (s *PostgresStore) Candidates(ctx context.Context, target *model.PropertyRecord, limit, minSameCounty int) ([]*model.PropertyRecord, error) {
	defer observe(driverPostgres, "candidates", time.Now())
	return selectCandidates(ctx, limit, minSameCounty, func(ctx context.Context, same bool, n int) ([]*model.PropertyRecord, error) {
		op := "<>"
		if same {
			op = "="
		}
		q := `SELECT ` + postgresColumns + ` FROM properties
			WHERE id <> $1 AND building_area > 0 AND LOWER(county_id) ` + op + ` LOWER($2)
			ORDER BY id LIMIT $3`
		return s.query(ctx, "candidates", q, target.ID, target.CountyID, n)
	})
}

func (s *PostgresStore) Search(ctx context.Context, f Filter) ([]*model.PropertyRecord, error) {
	defer observe(driverPostgres, "search", time.Now())
	if err := f.Validate(); err != nil {
		return nil, err
	}
	w := filterWhere(f, dollar)
	q := `SELECT ` + postgresColumns + ` FROM properties WHERE ` + w.String() + ` ORDER BY id LIMIT ` + w.next(f.EffectiveLimit())
	return s.query(ctx, "search", q, w.args...)
}

func (s *PostgresStore) CountByCounty(ctx context.Context) (map[string]int, error) {
	defer observe(driverPostgres, "count", time.Now())
	rows, err := s.pool.Query(ctx, `SELECT LOWER(county_id), COUNT(*) FROM properties GROUP BY LOWER(county_id)`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by county")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var county string
		var n int64
		if err := rows.Scan(&county, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan county count")
		}
		out[county] = int(n)
	}
	return out, eris.Wrap(rows.Err(), "postgres: count by county iterate")
}

const postgresUpsert = `INSERT INTO properties (
	id, county_id, address, city, state, zip_code, property_type, location,
	building_area, lot_area, year_built, assessed_value, market_value,
	zoning_code, zoning_norm, is_verified, quality_score, data_source, last_updated
) VALUES ($1, $2, $3, $4, $5, $6, $7, ST_GeomFromEWKB($8), $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (id) DO UPDATE SET
	county_id = EXCLUDED.county_id, address = EXCLUDED.address, city = EXCLUDED.city,
	state = EXCLUDED.state, zip_code = EXCLUDED.zip_code, property_type = EXCLUDED.property_type,
	location = EXCLUDED.location, building_area = EXCLUDED.building_area, lot_area = EXCLUDED.lot_area,
	year_built = EXCLUDED.year_built, assessed_value = EXCLUDED.assessed_value,
	market_value = EXCLUDED.market_value, zoning_code = EXCLUDED.zoning_code,
	zoning_norm = EXCLUDED.zoning_norm, is_verified = EXCLUDED.is_verified,
	quality_score = EXCLUDED.quality_score, data_source = EXCLUDED.data_source,
	last_updated = EXCLUDED.last_updated`

func (s *PostgresStore) Upsert(ctx context.Context, recs ...*model.PropertyRecord) (int, error) {
	defer observe(driverPostgres, "upsert", time.Now())
	for _, r := range recs {
		if err := ValidateRecord(r); err != nil {
			return 0, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert")
	}
	for _, r := range recs {
		loc, err := EncodePoint(r.Coordinates)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, err
		}
		if _, err := tx.Exec(ctx, postgresUpsert,
			r.ID, r.CountyID, r.Address, r.City, r.State, r.ZipCode, r.PropertyType, loc,
			r.BuildingArea, floatArg(r.LotArea), intArg(r.YearBuilt), r.AssessedValue, floatArg(r.MarketValue),
			r.ZoningCode, zoningNorm(r), r.IsVerified, floatArg(r.QualityScore), r.DataSource, lastUpdated(r),
		); err != nil {
			_ = tx.Rollback(ctx)
			return 0, eris.Wrapf(err, "postgres: upsert %s", r.ID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert")
	}
	return len(recs), nil
}

func (s *PostgresStore) query(ctx context.Context, op, q string, args ...any) ([]*model.PropertyRecord, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	out := []*model.PropertyRecord{}
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", op)
		}
		out = append(out, r)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func scanPostgres(row scanner) (*model.PropertyRecord, error) {
	var (
		r                 model.PropertyRecord
		loc               []byte
		lot, market, qual float64
		year              int
	)
	if err := row.Scan(
		&r.ID, &r.CountyID, &r.Address, &r.City, &r.State, &r.ZipCode, &r.PropertyType,
		&loc, &r.BuildingArea, &lot, &year, &r.AssessedValue, &market, &r.ZoningCode,
		&r.IsVerified, &qual, &r.DataSource, &r.LastUpdated,
	); err != nil {
		return nil, err
	}
	coords, err := DecodePoint(loc)
	if err != nil {
		return nil, err
	}
	r.Coordinates = coords
	r.LotArea = floatOrNil(lot)
	r.YearBuilt = intOrNil(year)
	r.MarketValue = floatOrNil(market)
	r.QualityScore = floatOrNil(qual)
	return &r, nil
}

// EncodePoint renders coordinates as an EWKB point in WGS84, or nil.
func EncodePoint(c *model.Coordinates) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	p := geom.NewPointFlat(geom.XY, []float64{c.Longitude, c.Latitude}).SetSRID(sridWGS84)
	b, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return b, nil
}

// DecodePoint parses an EWKB point. Empty input yields nil coordinates.
func DecodePoint(b []byte) (*model.Coordinates, error) {
	if len(b) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok || p.Empty() {
		return nil, eris.Errorf("postgres: expected point geometry, got %T", g)
	}
	return &model.Coordinates{Latitude: p.Y(), Longitude: p.X()}, nil
}
