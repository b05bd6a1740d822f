package acs

import "strings"

// affgeoidPrefixes maps geography types to the summary-level prefix
// that turns a bare GEOID, as found in gazetteer files, into the
// GEO_ID form the data API returns, e.g. 53033 into 0500000US53033.
var affgeoidPrefixes = map[GeoType]string{
	GeoUrbanArea:        "400C100US",
	GeoZCTA:             "8600000US",
	GeoCounty:           "0500000US",
	GeoCongressDistrict: "5001500US",
	GeoCBSA:             "310M300US",
	GeoAIANNH:           "2500000US",
	GeoCountySub:        "0600000US",
	GeoTract:            "1400000US",
	GeoPlace:            "1600000US",
	GeoSLDUpper:         "610U500US",
	GeoSLDLower:         "620L500US",
}

// NormalizeGeoID prefixes a bare geography id with its summary-level
// code. ok is false when no prefix is known for the type, in which
// case the id cannot be joined against data API output.
func NormalizeGeoID(geoID string, geoType GeoType) (string, bool) {
	prefix, ok := affgeoidPrefixes[geoType]
	if !ok {
		return "", false
	}
	return prefix + geoID, true
}

// AFFGEOIDField identifies the AFFGEOID attribute among shapefile
// field names. Decennial-vintage files name it AFFGEOID10 or
// AFFGEOID20. Matching is case-insensitive since DBF readers differ
// in how they report names.
func AFFGEOIDField(fields []string) (string, bool) {
	for _, want := range []string{"AFFGEOID", "AFFGEOID10", "AFFGEOID20"} {
		for _, field := range fields {
			if strings.EqualFold(strings.TrimSpace(field), want) {
				return field, true
			}
		}
	}
	return "", false
}
