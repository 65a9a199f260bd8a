package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/okian/comps/internal/domain/model"
)

const driverSQLite = "sqlite"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id             TEXT PRIMARY KEY,
	county_id      TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	zip_code       TEXT NOT NULL DEFAULT '',
	property_type  TEXT NOT NULL DEFAULT '',
	latitude       REAL,
	longitude      REAL,
	building_area  REAL NOT NULL DEFAULT 0,
	lot_area       REAL,
	year_built     INTEGER,
	assessed_value REAL NOT NULL DEFAULT 0,
	market_value   REAL,
	zoning_code    TEXT NOT NULL DEFAULT '',
	zoning_norm    TEXT NOT NULL DEFAULT '',
	is_verified    INTEGER NOT NULL DEFAULT 0,
	quality_score  REAL,
	data_source    TEXT NOT NULL DEFAULT '',
	last_updated   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_properties_county ON properties(county_id COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_properties_zoning ON properties(zoning_norm);
CREATE INDEX IF NOT EXISTS idx_properties_area ON properties(building_area);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = `id, county_id, address, city, state, zip_code, property_type,
	latitude, longitude, building_area, lot_area, year_built, assessed_value,
	market_value, zoning_code, is_verified, quality_score, data_source, last_updated`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.PropertyRecord, error) {
	defer observe(driverSQLite, "get", time.Now())
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM properties WHERE id = ?`, id)
	r, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) Candidates(ctx context.Context, target *model.PropertyRecord, limit, minSameCounty int) ([]*model.PropertyRecord, error) {
	defer observe(driverSQLite, "candidates", time.Now())
	return selectCandidates(ctx, limit, minSameCounty, func(ctx context.Context, same bool, n int) ([]*model.PropertyRecord, error) {
		op := "<>"
		if same {
			op = "="
		}
		q := `SELECT ` + sqliteColumns + ` FROM properties
			WHERE id <> ? AND building_area > 0 AND LOWER(county_id) ` + op + ` LOWER(?)
			ORDER BY id LIMIT ?`
		return s.query(ctx, "candidates", q, target.ID, target.CountyID, n)
	})
}

func (s *SQLiteStore) Search(ctx context.Context, f Filter) ([]*model.PropertyRecord, error) {
	defer observe(driverSQLite, "search", time.Now())
	if err := f.Validate(); err != nil {
		return nil, err
	}
	w := filterWhere(f, questionMark)
	q := `SELECT ` + sqliteColumns + ` FROM properties WHERE ` + w.String() + ` ORDER BY id LIMIT ` + w.next(f.EffectiveLimit())
	return s.query(ctx, "search", q, w.args...)
}

func (s *SQLiteStore) CountByCounty(ctx context.Context) (map[string]int, error) {
	defer observe(driverSQLite, "count", time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT LOWER(county_id), COUNT(*) FROM properties GROUP BY LOWER(county_id)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by county")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var county string
		var n int
		if err := rows.Scan(&county, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan county count")
		}
		out[county] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count by county iterate")
}

func (s *SQLiteStore) Upsert(ctx context.Context, recs ...*model.PropertyRecord) (int, error) {
	defer observe(driverSQLite, "upsert", time.Now())
	for _, r := range recs {
		if err := ValidateRecord(r); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO properties (
		id, county_id, address, city, state, zip_code, property_type,
		latitude, longitude, building_area, lot_area, year_built, assessed_value,
		market_value, zoning_code, zoning_norm, is_verified, quality_score, data_source, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	for _, r := range recs {
		var lat, lon any
		if r.Coordinates != nil {
			lat, lon = r.Coordinates.Latitude, r.Coordinates.Longitude
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.CountyID, r.Address, r.City, r.State, r.ZipCode, r.PropertyType,
			lat, lon, r.BuildingArea, floatArg(r.LotArea), intArg(r.YearBuilt), r.AssessedValue,
			floatArg(r.MarketValue), r.ZoningCode, zoningNorm(r), r.IsVerified, floatArg(r.QualityScore),
			r.DataSource, lastUpdated(r),
		); err != nil {
			_ = tx.Rollback()
			return 0, eris.Wrapf(err, "sqlite: upsert %s", r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return len(recs), nil
}

func (s *SQLiteStore) query(ctx context.Context, op, q string, args ...any) ([]*model.PropertyRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	out := []*model.PropertyRecord{}
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", op)
		}
		out = append(out, r)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (*model.PropertyRecord, error) {
	var (
		r                           model.PropertyRecord
		lat, lon, lot, market, qual sql.NullFloat64
		year                        sql.NullInt64
	)
	if err := row.Scan(
		&r.ID, &r.CountyID, &r.Address, &r.City, &r.State, &r.ZipCode, &r.PropertyType,
		&lat, &lon, &r.BuildingArea, &lot, &year, &r.AssessedValue,
		&market, &r.ZoningCode, &r.IsVerified, &qual, &r.DataSource, &r.LastUpdated,
	); err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		r.Coordinates = &model.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	if lot.Valid {
		r.LotArea = model.Float64Ptr(lot.Float64)
	}
	if year.Valid {
		r.YearBuilt = model.IntPtr(int(year.Int64))
	}
	if market.Valid {
		r.MarketValue = model.Float64Ptr(market.Float64)
	}
	if qual.Valid {
		r.QualityScore = model.Float64Ptr(qual.Float64)
	}
	return &r, nil
}
