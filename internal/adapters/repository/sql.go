package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/zoning"
)

// whereBuilder accumulates SQL predicates with driver-specific placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
	ph      func(n int) string
}

func newWhere(ph func(n int) string) *whereBuilder {
	return &whereBuilder{ph: ph}
}

// add appends expr, replacing each "?" with the next placeholder.
func (w *whereBuilder) add(expr string, args ...any) {
	var b strings.Builder
	i := 0
	for _, r := range expr {
		if r == '?' && i < len(args) {
			b.WriteString(w.next(args[i]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	w.clauses = append(w.clauses, b.String())
}

func (w *whereBuilder) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	w.add(column+" IN ("+marks+")", args...)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(w.clauses, " AND ")
}

// next returns the placeholder for one more argument.
func (w *whereBuilder) next(arg any) string {
	w.args = append(w.args, arg)
	return w.ph(len(w.args))
}

func filterWhere(f Filter, ph func(int) string) *whereBuilder {
	w := newWhere(ph)
	w.in("LOWER(county_id)", f.LowerCounties())
	if f.PropertyType != "" {
		w.add("LOWER(property_type) LIKE ?", "%"+strings.ToLower(f.PropertyType)+"%")
	}
	if f.MinBuildingArea != nil {
		w.add("building_area >= ?", *f.MinBuildingArea)
	}
	if f.MaxBuildingArea != nil {
		w.add("building_area <= ?", *f.MaxBuildingArea)
	}
	w.in("zoning_norm", f.NormalizedZoning())
	if f.City != "" {
		w.add("LOWER(city) = ?", strings.ToLower(f.City))
	}
	if f.MinYearBuilt != nil {
		w.add("year_built >= ?", *f.MinYearBuilt)
	}
	if f.MaxYearBuilt != nil {
		w.add("year_built <= ?", *f.MaxYearBuilt)
	}
	if f.MinAssessedValue != nil {
		w.add("assessed_value >= ?", *f.MinAssessedValue)
	}
	if f.MaxAssessedValue != nil {
		w.add("assessed_value <= ?", *f.MaxAssessedValue)
	}
	return w
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// floatOrNil and intOrNil undo the COALESCE sentinels used for nullable
// columns: negative floats and non-positive ints mean NULL.
func floatOrNil(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return model.Float64Ptr(v)
}

func intOrNil(v int) *int {
	if v <= 0 {
		return nil
	}
	return model.IntPtr(v)
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func lastUpdated(r *model.PropertyRecord) time.Time {
	if r.LastUpdated.IsZero() {
		return time.Now().UTC()
	}
	return r.LastUpdated.UTC()
}

func zoningNorm(r *model.PropertyRecord) string {
	return zoning.Normalize(r.ZoningCode)
}
