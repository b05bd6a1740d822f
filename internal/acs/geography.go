// Package acs defines the shared vocabulary of the American Community
// Survey: geography types and selectors, variable table routing, the
// naming codes behind shapefile and gazetteer archives, and the
// sentinel values the Census Bureau publishes for suppressed
// estimates. Everything here is side-effect-free; the client, cache,
// and query packages all build on these tables.
package acs

import (
	"strings"
)

// GeoType is one of the geography summary levels the ACS publishes
// data for. Values match the Census API's geography names verbatim,
// spaces and all, since they are sent in for= and in= clauses.
type GeoType string

const (
	GeoUS               GeoType = "us"
	GeoRegion           GeoType = "region"
	GeoDivision         GeoType = "division"
	GeoState            GeoType = "state"
	GeoUrbanArea        GeoType = "urban area"
	GeoZCTA             GeoType = "zip code tabulation area"
	GeoCounty           GeoType = "county"
	GeoCongressDistrict GeoType = "congressional district"
	GeoCBSA             GeoType = "metropolitan statistical area/micropolitan statistical area"
	GeoCSA              GeoType = "combined statistical area"
	GeoAIANNH           GeoType = "american indian area/alaska native area/hawaiian home land"
	GeoNECTA            GeoType = "new england city and town area"
	GeoANRC             GeoType = "alaska native regional corporation"
	GeoBlockGroup       GeoType = "block group"
	GeoCountySub        GeoType = "county subdivision"
	GeoTract            GeoType = "tract"
	GeoPlace            GeoType = "place"
	GeoPUMA             GeoType = "public use microdata area"
	GeoSLDUpper         GeoType = "state legislative district (upper chamber)"
	GeoSLDLower         GeoType = "state legislative district (lower chamber)"
)

// KnownGeoType reports whether t is a recognized geography type.
func KnownGeoType(t GeoType) bool {
	_, ok := shapefileCodes[t]
	return ok
}

// Wildcard selects every geography of a type, e.g. "county:*".
const Wildcard = "*"

// Geo is a single geography selector such as "county:033" or
// "state:*". String renders it back into Census API clause form.
type Geo struct {
	Type GeoType
	Code string
}

func (g Geo) String() string {
	return string(g.Type) + ":" + g.Code
}

// ParseGeo parses a "type:code" selector. The bare string "us" is
// accepted as shorthand for the national geography. State selectors
// given with a postal abbreviation are converted to their FIPS code,
// so "state:WA" parses the same as "state:53".
func ParseGeo(value string) (Geo, error) {
	value = strings.TrimSpace(value)
	if value == "us" {
		return Geo{Type: GeoUS, Code: Wildcard}, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return Geo{}, NewValidationError("acs: invalid geography value %q, expected a type:code pair such as %q", value, "state:08")
	}
	geo := Geo{Type: GeoType(parts[0]), Code: parts[1]}
	if !KnownGeoType(geo.Type) {
		return Geo{}, NewValidationError("acs: unrecognized geography type %q", parts[0])
	}
	if geo.Type == GeoState {
		if fips, ok := stateFIPS[strings.ToUpper(geo.Code)]; ok {
			geo.Code = fips
		}
	}
	return geo, nil
}

// stateFIPS maps USPS state abbreviations to ANSI FIPS codes so that
// selectors like "state:WA" canonicalize to the form the API expects.
var stateFIPS = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56", "AS": "60", "GU": "66", "MP": "69", "PR": "72",
	"VI": "78",
}

// GeographySpec is a resolved pair of for/in selectors. Every ForGeo
// entry shares a single geography type.
type GeographySpec struct {
	ForGeo []Geo
	InGeo  []Geo
}

// ForType returns the geography type the for selectors target.
func (s GeographySpec) ForType() GeoType {
	if len(s.ForGeo) == 0 {
		return ""
	}
	return s.ForGeo[0].Type
}

// StateFIPS returns the state code named in the in selectors, if any.
// Sub-state shapefile series are cut per state and need it.
func (s GeographySpec) StateFIPS() string {
	for _, g := range s.InGeo {
		if g.Type == GeoState {
			return g.Code
		}
	}
	return ""
}

// ResolveGeographies validates raw for/in selector strings and returns
// a canonical GeographySpec. Resolution is idempotent: resolving the
// String form of a resolved spec yields the same spec.
func ResolveGeographies(forGeo, inGeo []string) (GeographySpec, error) {
	if len(forGeo) == 0 {
		return GeographySpec{}, NewValidationError("acs: at least one for geography is required")
	}
	spec := GeographySpec{
		ForGeo: make([]Geo, 0, len(forGeo)),
		InGeo:  make([]Geo, 0, len(inGeo)),
	}
	types := make(map[GeoType]bool)
	for _, raw := range forGeo {
		geo, err := ParseGeo(raw)
		if err != nil {
			return GeographySpec{}, err
		}
		types[geo.Type] = true
		spec.ForGeo = append(spec.ForGeo, geo)
	}
	if len(types) > 1 {
		return GeographySpec{}, NewValidationError("acs: for geographies must share a single type, got %d", len(types))
	}
	for _, raw := range inGeo {
		geo, err := ParseGeo(raw)
		if err != nil {
			return GeographySpec{}, err
		}
		spec.InGeo = append(spec.InGeo, geo)
	}
	return spec, nil
}
