package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/okian/comps/internal/domain/model"
)

func fixture() []*model.PropertyRecord {
	recs := []*model.PropertyRecord{}
	for i := 0; i < 6; i++ {
		recs = append(recs, &model.PropertyRecord{
			ID:            fmt.Sprintf("dal-%02d", i),
			CountyID:      "dallas",
			City:          "Dallas",
			PropertyType:  "Industrial Warehouse",
			BuildingArea:  20000 + float64(i)*5000,
			AssessedValue: 2_000_000 + float64(i)*250_000,
			ZoningCode:    "M-1",
			YearBuilt:     model.IntPtr(1990 + i),
			DataSource:    "fixture",
		})
	}
	for i := 0; i < 4; i++ {
		recs = append(recs, &model.PropertyRecord{
			ID:           fmt.Sprintf("cook-%02d", i),
			CountyID:     "cook",
			City:         "Chicago",
			PropertyType: "Manufacturing",
			BuildingArea: 50000 + float64(i)*1000,
			ZoningCode:   "I-2",
			Coordinates:  &model.Coordinates{Latitude: 41.8 + float64(i)/100, Longitude: -87.7},
			QualityScore: model.Float64Ptr(0.8),
			IsVerified:   i%2 == 0,
			DataSource:   "fixture",
		})
	}
	recs = append(recs, &model.PropertyRecord{ID: "dal-noarea", CountyID: "dallas", ZoningCode: "M-1"})
	return recs
}

func ids(recs []*model.PropertyRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

// testStoreContract exercises the behaviour every Store must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	n, err := s.Upsert(ctx, fixture()...)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n != 11 {
		t.Fatalf("expected 11 records written, got %d", n)
	}

	t.Run("get", func(t *testing.T) {
		r, err := s.Get(ctx, "cook-01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := fixture()[7].Coordinates.Latitude
		if r.Coordinates == nil || r.Coordinates.Latitude != want {
			t.Errorf("coordinates not preserved: %+v", r.Coordinates)
		}
		if r.QualityScore == nil || *r.QualityScore != 0.8 {
			t.Errorf("quality score not preserved: %v", r.QualityScore)
		}
		if r.YearBuilt != nil {
			t.Errorf("expected nil year built, got %d", *r.YearBuilt)
		}
		if r.IsVerified {
			t.Error("cook-01 should not be verified")
		}
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("candidates same county first", func(t *testing.T) {
		target := &model.PropertyRecord{ID: "dal-00", CountyID: "Dallas"}
		pool, err := s.Candidates(ctx, target, 50, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := ids(pool)
		want := []string{"dal-01", "dal-02", "dal-03", "dal-04", "dal-05"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("candidates fill from other counties", func(t *testing.T) {
		target := &model.PropertyRecord{ID: "cook-00", CountyID: "cook"}
		pool, err := s.Candidates(ctx, target, 6, 20)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := ids(pool)
		want := []string{"cook-01", "cook-02", "cook-03", "dal-00", "dal-01", "dal-02"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("search", func(t *testing.T) {
		minArea := 25000.0
		maxYear := 1993
		got, err := s.Search(ctx, Filter{
			Counties:        []string{"DALLAS"},
			PropertyType:    "warehouse",
			MinBuildingArea: &minArea,
			ZoningCodes:     []string{"m1"},
			City:            "dallas",
			MaxYearBuilt:    &maxYear,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"dal-01", "dal-02", "dal-03"}
		if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
			t.Errorf("expected %v, got %v", want, ids(got))
		}
	})

	t.Run("search limit", func(t *testing.T) {
		got, err := s.Search(ctx, Filter{Limit: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].ID != "cook-00" {
			t.Errorf("expected first two ids, got %v", ids(got))
		}
		if _, err := s.Search(ctx, Filter{Limit: MaxSearchLimit + 1}); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("expected ErrInvalidFilter, got %v", err)
		}
	})

	t.Run("count by county", func(t *testing.T) {
		counts, err := s.CountByCounty(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if counts["dallas"] != 7 || counts["cook"] != 4 {
			t.Errorf("unexpected counts %v", counts)
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		r, _ := s.Get(ctx, "dal-05")
		r.BuildingArea = 99999
		if _, err := s.Upsert(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := s.Get(ctx, "dal-05")
		if got.BuildingArea != 99999 {
			t.Errorf("expected replaced area, got %f", got.BuildingArea)
		}
	})

	t.Run("upsert rejects invalid", func(t *testing.T) {
		_, err := s.Upsert(ctx, &model.PropertyRecord{ID: "x"})
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.Upsert(ctx, fixture()...); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	r, _ := s.Get(ctx, "cook-00")
	r.Coordinates.Latitude = 0
	again, _ := s.Get(ctx, "cook-00")
	if again.Coordinates.Latitude == 0 {
		t.Error("mutating a returned record changed the store")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "comps.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	testStoreContract(t, s)
}

func TestFilterValidate(t *testing.T) {
	lo, hi := 10.0, 5.0
	if err := (Filter{MinBuildingArea: &lo, MaxBuildingArea: &hi}).Validate(); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected inverted range to fail, got %v", err)
	}
	if err := (Filter{}).Validate(); err != nil {
		t.Errorf("empty filter should be valid: %v", err)
	}
	if (Filter{}).EffectiveLimit() != DefaultSearchLimit {
		t.Error("expected default limit")
	}
}

func TestFilterWhere(t *testing.T) {
	minYear := 1980
	w := filterWhere(Filter{Counties: []string{"Cook", "dallas"}, City: "Chicago", MinYearBuilt: &minYear}, dollar)
	want := "LOWER(county_id) IN ($1, $2) AND LOWER(city) = $3 AND year_built >= $4"
	if w.String() != want {
		t.Errorf("expected %q, got %q", want, w.String())
	}
	if fmt.Sprint(w.args) != "[cook dallas chicago 1980]" {
		t.Errorf("unexpected args %v", w.args)
	}
	if filterWhere(Filter{}, questionMark).String() != "TRUE" {
		t.Error("empty filter should render TRUE")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory", "")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", s)
	}

	lite, err := Open(ctx, "SQLite", filepath.Join(t.TempDir(), "open.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer lite.Close()
	if _, err := lite.Upsert(ctx, fixture()[0]); err != nil {
		t.Errorf("upsert into migrated sqlite store: %v", err)
	}

	if _, err := Open(ctx, "oracle", ""); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
	if _, err := Open(ctx, "memory", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing seed file")
	}
}
