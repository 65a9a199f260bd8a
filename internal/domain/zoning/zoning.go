// Package zoning classifies raw zoning codes into industrial groups and
// defines the semantic distance between groups. It is the only place that
// knows how zoning codes relate to each other.
package zoning

import (
	"strings"
)

// Group is the semantic cluster a zoning code belongs to.
type Group int

// Zoning groups.
const (
	Unknown Group = iota
	LightManufacturing
	Manufacturing
	LightIndustrial
	HeavyIndustrial
	HeavyIndustrialMassive
	GenericIndustrial
)

var groupNames = map[Group]string{
	Unknown:                "UNKNOWN",
	LightManufacturing:     "LIGHT_MANUFACTURING",
	Manufacturing:          "MANUFACTURING",
	LightIndustrial:        "LIGHT_INDUSTRIAL",
	HeavyIndustrial:        "HEAVY_INDUSTRIAL",
	HeavyIndustrialMassive: "HEAVY_INDUSTRIAL_MASSIVE",
	GenericIndustrial:      "GENERIC_INDUSTRIAL",
}

// Groups lists every group, Unknown included.
var Groups = []Group{
	Unknown,
	LightManufacturing,
	Manufacturing,
	LightIndustrial,
	HeavyIndustrial,
	HeavyIndustrialMassive,
	GenericIndustrial,
}

func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return groupNames[Unknown]
}

// MarshalText renders the group name in JSON and YAML.
func (g Group) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// codes maps normalized zoning codes to groups.
var codes = map[string]Group{
	"M1":            LightManufacturing,
	"M2":            Manufacturing,
	"M3":            HeavyIndustrial,
	"I1":            LightIndustrial,
	"LI":            LightIndustrial,
	"IL":            LightIndustrial,
	"I2":            HeavyIndustrial,
	"HI":            HeavyIndustrial,
	"IH":            HeavyIndustrial,
	"I3":            HeavyIndustrialMassive,
	"INDUSTRIAL":    GenericIndustrial,
	"IND":           GenericIndustrial,
	"I":             GenericIndustrial,
	"MANUFACTURING": GenericIndustrial,
	"WAREHOUSE":     GenericIndustrial,
	"DISTRIBUTION":  GenericIndustrial,
}

// Normalize canonicalizes a raw code: upper case, qualifiers in parentheses
// dropped, separators removed. "m-1 (a)" and "M1" normalize to "M1".
func Normalize(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if i := strings.IndexByte(c, '('); i >= 0 {
		c = c[:i]
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.', '/':
			return -1
		}
		return r
	}, c)
}

// Classify maps a zoning code to its group. It is total: empty and
// unrecognized codes map to Unknown.
func Classify(code string) Group {
	if g, ok := codes[Normalize(code)]; ok {
		return g
	}
	return Unknown
}

// ParseGroup parses a group name as produced by Group.String.
func ParseGroup(name string) (Group, bool) {
	for g, n := range groupNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return g, true
		}
	}
	return Unknown, false
}
