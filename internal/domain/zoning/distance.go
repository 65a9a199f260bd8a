package zoning

import "math"

// Default distances between groups.
const (
	DefaultSameClusterDistance  = 0.2
	DefaultCrossClusterDistance = 0.8
	DefaultAdjacentDistance     = 0.4
	DefaultGenericDistance      = 0.3
	DefaultUnknownDistance      = 0.6
)

type cluster int

const (
	clusterNone cluster = iota
	clusterLight
	clusterMedium
	clusterHeavy
)

func clusterOf(g Group) cluster {
	switch g {
	case LightManufacturing, LightIndustrial:
		return clusterLight
	case Manufacturing:
		return clusterMedium
	case HeavyIndustrial, HeavyIndustrialMassive:
		return clusterHeavy
	}
	return clusterNone
}

// Table holds the tunable distances between zoning groups. The zero value
// is not useful; start from DefaultTable.
type Table struct {
	// SameCluster applies within {M-1, I-1} or within {I-2, I-3}.
	SameCluster float64 `json:"same_cluster" koanf:"same_cluster"`
	// CrossCluster applies between the light and the heavy cluster.
	CrossCluster float64 `json:"cross_cluster" koanf:"cross_cluster"`
	// Adjacent applies between M-2 and either cluster.
	Adjacent float64 `json:"adjacent" koanf:"adjacent"`
	// Generic applies between GENERIC_INDUSTRIAL and any concrete group.
	Generic float64 `json:"generic" koanf:"generic"`
	// Unknown applies whenever exactly one side is UNKNOWN.
	Unknown float64 `json:"unknown" koanf:"unknown"`
}

// DefaultTable returns the default distance table.
func DefaultTable() Table {
	return Table{
		SameCluster:  DefaultSameClusterDistance,
		CrossCluster: DefaultCrossClusterDistance,
		Adjacent:     DefaultAdjacentDistance,
		Generic:      DefaultGenericDistance,
		Unknown:      DefaultUnknownDistance,
	}
}

// Valid reports whether every distance lies in [0,1].
func (t Table) Valid() bool {
	for _, d := range []float64{t.SameCluster, t.CrossCluster, t.Adjacent, t.Generic, t.Unknown} {
		if math.IsNaN(d) || d < 0 || d > 1 {
			return false
		}
	}
	return true
}

// Distance returns the semantic distance between two groups in [0,1].
// It is symmetric and zero for identical groups.
func (t Table) Distance(a, b Group) float64 {
	if a == b {
		return 0
	}
	if a == Unknown || b == Unknown {
		return t.Unknown
	}
	if a == GenericIndustrial || b == GenericIndustrial {
		return t.Generic
	}
	ca, cb := clusterOf(a), clusterOf(b)
	switch {
	case ca == cb:
		return t.SameCluster
	case ca == clusterMedium || cb == clusterMedium:
		return t.Adjacent
	default:
		return t.CrossCluster
	}
}

// Distance uses the default table.
func Distance(a, b Group) float64 {
	return DefaultTable().Distance(a, b)
}
