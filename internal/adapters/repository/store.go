// Package repository is the record source for the ranking core: it looks up
// targets, selects candidate pools and serves search queries.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/zoning"
)

// Search limits.
const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 1000
)

// Store provides read/write access to property records. Returned records are
// copies; callers may keep them as immutable snapshots.
type Store interface {
	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.PropertyRecord, error)

	// Candidates returns up to limit records with a building area, excluding
	// target. Same-county records come first; when fewer than minSameCounty
	// are found the pool is filled from other counties.
	Candidates(ctx context.Context, target *model.PropertyRecord, limit, minSameCounty int) ([]*model.PropertyRecord, error)

	// Search returns records matching f ordered by id.
	Search(ctx context.Context, f Filter) ([]*model.PropertyRecord, error)

	// CountByCounty returns the number of records per county.
	CountByCounty(ctx context.Context) (map[string]int, error)

	// Upsert inserts or replaces records by id and returns how many were written.
	Upsert(ctx context.Context, recs ...*model.PropertyRecord) (int, error)

	Close() error
}

// Filter narrows a search. Zero values do not constrain.
type Filter struct {
	Counties         []string `json:"counties,omitempty"`
	PropertyType     string   `json:"property_type,omitempty"`
	MinBuildingArea  *float64 `json:"min_building_area,omitempty"`
	MaxBuildingArea  *float64 `json:"max_building_area,omitempty"`
	ZoningCodes      []string `json:"zoning_codes,omitempty"`
	City             string   `json:"city,omitempty"`
	MinYearBuilt     *int     `json:"min_year_built,omitempty"`
	MaxYearBuilt     *int     `json:"max_year_built,omitempty"`
	MinAssessedValue *float64 `json:"min_assessed_value,omitempty"`
	MaxAssessedValue *float64 `json:"max_assessed_value,omitempty"`
	Limit            int      `json:"limit,omitempty"`
}

// Validate rejects limits outside (0, MaxSearchLimit] and inverted ranges.
func (f Filter) Validate() error {
	if f.Limit < 0 || f.Limit > MaxSearchLimit {
		return fmt.Errorf("%w: limit must be in [1,%d]", ErrInvalidFilter, MaxSearchLimit)
	}
	if f.MinBuildingArea != nil && f.MaxBuildingArea != nil && *f.MinBuildingArea > *f.MaxBuildingArea {
		return fmt.Errorf("%w: min_building_area exceeds max_building_area", ErrInvalidFilter)
	}
	if f.MinYearBuilt != nil && f.MaxYearBuilt != nil && *f.MinYearBuilt > *f.MaxYearBuilt {
		return fmt.Errorf("%w: min_year_built exceeds max_year_built", ErrInvalidFilter)
	}
	if f.MinAssessedValue != nil && f.MaxAssessedValue != nil && *f.MinAssessedValue > *f.MaxAssessedValue {
		return fmt.Errorf("%w: min_assessed_value exceeds max_assessed_value", ErrInvalidFilter)
	}
	return nil
}

// EffectiveLimit returns the limit to apply.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultSearchLimit
	}
	return f.Limit
}

// Match reports whether r satisfies f.
func (f Filter) Match(r *model.PropertyRecord) bool {
	if len(f.Counties) > 0 && !containsFold(f.Counties, r.CountyID) {
		return false
	}
	if f.PropertyType != "" && !strings.Contains(strings.ToLower(r.PropertyType), strings.ToLower(f.PropertyType)) {
		return false
	}
	if f.MinBuildingArea != nil && r.BuildingArea < *f.MinBuildingArea {
		return false
	}
	if f.MaxBuildingArea != nil && r.BuildingArea > *f.MaxBuildingArea {
		return false
	}
	if len(f.ZoningCodes) > 0 && !containsZoning(f.ZoningCodes, r.ZoningCode) {
		return false
	}
	if f.City != "" && !strings.EqualFold(f.City, r.City) {
		return false
	}
	if f.MinYearBuilt != nil && (r.YearBuilt == nil || *r.YearBuilt < *f.MinYearBuilt) {
		return false
	}
	if f.MaxYearBuilt != nil && (r.YearBuilt == nil || *r.YearBuilt > *f.MaxYearBuilt) {
		return false
	}
	if f.MinAssessedValue != nil && r.AssessedValue < *f.MinAssessedValue {
		return false
	}
	if f.MaxAssessedValue != nil && r.AssessedValue > *f.MaxAssessedValue {
		return false
	}
	return true
}

// NormalizedZoning returns the normalized form of every code in f.
func (f Filter) NormalizedZoning() []string {
	out := make([]string, 0, len(f.ZoningCodes))
	for _, c := range f.ZoningCodes {
		out = append(out, zoning.Normalize(c))
	}
	return out
}

// LowerCounties returns the lower-cased county ids in f.
func (f Filter) LowerCounties() []string {
	out := make([]string, 0, len(f.Counties))
	for _, c := range f.Counties {
		out = append(out, strings.ToLower(strings.TrimSpace(c)))
	}
	return out
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

func containsZoning(codes []string, code string) bool {
	norm := zoning.Normalize(code)
	for _, c := range codes {
		if zoning.Normalize(c) == norm {
			return true
		}
	}
	return false
}

// ValidateRecord checks the fields every stored record needs.
func ValidateRecord(r *model.PropertyRecord) error {
	if r == nil || strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.CountyID) == "" {
		return fmt.Errorf("%w: county_id is required for %s", ErrInvalidRecord, r.ID)
	}
	if r.BuildingArea < 0 {
		return fmt.Errorf("%w: negative building_area for %s", ErrInvalidRecord, r.ID)
	}
	if r.QualityScore != nil && (*r.QualityScore < 0 || *r.QualityScore > 1) {
		return fmt.Errorf("%w: quality_score outside [0,1] for %s", ErrInvalidRecord, r.ID)
	}
	return nil
}

// poolQuery fetches up to limit candidates either within the target's
// county or outside it.
type poolQuery func(ctx context.Context, sameCounty bool, limit int) ([]*model.PropertyRecord, error)

// selectCandidates applies the same-county-first fill policy.
func selectCandidates(ctx context.Context, limit, minSameCounty int, query poolQuery) ([]*model.PropertyRecord, error) {
	if limit <= 0 {
		return []*model.PropertyRecord{}, nil
	}
	pool, err := query(ctx, true, limit)
	if err != nil {
		return nil, err
	}
	if len(pool) >= minSameCounty || len(pool) >= limit {
		return pool, nil
	}
	rest, err := query(ctx, false, limit-len(pool))
	if err != nil {
		return nil, err
	}
	return append(pool, rest...), nil
}
