// Package outlier flags candidates whose size or price per square foot lies
// far from their local peer group, using median and median absolute
// deviation per (zoning group, county) partition.
package outlier

import (
	"math"
	"sort"
	"strings"

	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/zoning"
)

// Default detector settings.
const (
	DefaultK            = 3.0
	DefaultMinPartition = 5
)

// meanAbsScale is sqrt(pi/2); it puts a mean absolute deviation on the
// scale of a standard deviation for normal data.
const meanAbsScale = 1.2533

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithK sets the bound multiplier.
func WithK(k float64) Option {
	return func(d *Detector) {
		if k > 0 {
			d.k = k
		}
	}
}

// WithMinPartition sets the smallest partition that is examined.
func WithMinPartition(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.minPartition = n
		}
	}
}

// Detector annotates a candidate pool with outlier flags.
type Detector struct {
	k            float64
	minPartition int
}

// New creates a Detector with defaults k=3 and a minimum partition of 5.
func New(opts ...Option) *Detector {
	d := &Detector{k: DefaultK, minPartition: DefaultMinPartition}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type partitionKey struct {
	group  zoning.Group
	county string
}

// Detect returns the flags for every record that has any, keyed by pool
// index. Partitions smaller than the minimum size are never flagged.
func (d *Detector) Detect(pool []*model.PropertyRecord) map[int][]model.OutlierFlag {
	parts := make(map[partitionKey][]int)
	for i, rec := range pool {
		key := partitionKey{
			group:  zoning.Classify(rec.ZoningCode),
			county: strings.ToLower(strings.TrimSpace(rec.CountyID)),
		}
		parts[key] = append(parts[key], i)
	}

	flags := make(map[int][]model.OutlierFlag)
	for _, idx := range parts {
		if len(idx) < d.minPartition {
			continue
		}
		d.flag(pool, idx, model.SizeOutlier, sizeOf, flags)
		d.flag(pool, idx, model.ValueOutlier, (*model.PropertyRecord).PricePerSqFt, flags)
	}
	return flags
}

func sizeOf(r *model.PropertyRecord) (float64, bool) {
	return r.BuildingArea, r.BuildingArea > 0
}

func (d *Detector) flag(
	pool []*model.PropertyRecord,
	idx []int,
	flag model.OutlierFlag,
	metric func(*model.PropertyRecord) (float64, bool),
	out map[int][]model.OutlierFlag,
) {
	members := make([]int, 0, len(idx))
	values := make([]float64, 0, len(idx))
	for _, i := range idx {
		if v, ok := metric(pool[i]); ok {
			members = append(members, i)
			values = append(values, v)
		}
	}
	if len(values) < d.minPartition {
		return
	}

	lo, hi, ok := d.Bounds(values)
	if !ok {
		return
	}
	for j, v := range values {
		if v < lo || v > hi {
			out[members[j]] = append(out[members[j]], flag)
		}
	}
}

// Bounds returns median ± k·MAD for values. When the MAD is zero the scaled
// mean absolute deviation is used; ok is false when both are zero and no
// value can be called an outlier.
func (d *Detector) Bounds(values []float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	med := Median(values)
	dev := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		dev[i] = math.Abs(v - med)
		sum += dev[i]
	}
	spread := Median(dev)
	if spread == 0 {
		spread = meanAbsScale * sum / float64(len(values))
	}
	if spread == 0 {
		return 0, 0, false
	}
	return med - d.k*spread, med + d.k*spread, true
}

// Median returns the median of values without modifying them.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
