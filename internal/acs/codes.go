package acs

import (
	"fmt"
	"strconv"
	"strings"
)

// CongressNumber returns the number of the U.S. Congress seated in a
// given year. Congressional district archives are named by Congress
// number rather than by year.
func CongressNumber(year int) int {
	return (year-1789+1)/2 + 1
}

// shapefileCodes maps geography types to the naming code used in
// cartographic boundary shapefile filenames, e.g. cb_2017_us_county_500k.
// {fips} stands for the containing state's FIPS code and {congress}
// for the Congress number of the vintage year. The table doubles as
// the closed set of recognized geography types.
var shapefileCodes = map[GeoType]string{
	GeoUS:               "us_nation",
	GeoRegion:           "us_region",
	GeoDivision:         "us_division",
	GeoState:            "us_state",
	GeoUrbanArea:        "us_ua10",
	GeoZCTA:             "us_zcta510",
	GeoCounty:           "us_county",
	GeoCongressDistrict: "us_cd{congress}",
	GeoCBSA:             "us_cbsa",
	GeoCSA:              "us_csa",
	GeoAIANNH:           "us_aiannh",
	GeoNECTA:            "us_necta",
	// Alaska Native regional corporations exist only in Alaska, so the
	// series is pinned to FIPS 02.
	GeoANRC:       "02_anrc",
	GeoBlockGroup: "{fips}_bg",
	GeoCountySub:  "{fips}_cousub",
	GeoTract:      "{fips}_tract",
	GeoPlace:      "{fips}_place",
	GeoPUMA:       "{fips}_puma10",
	GeoSLDUpper:   "{fips}_sldu",
	GeoSLDLower:   "{fips}_sldl",
}

// ShapefileCode returns the boundary shapefile naming code for a
// geography type in a vintage year. stateFIPS fills the state slot for
// series that are cut per state and is ignored for national series.
func ShapefileCode(year int, geoType GeoType, stateFIPS string) (string, bool) {
	code, ok := shapefileCodes[geoType]
	if !ok {
		return "", false
	}
	code = strings.ReplaceAll(code, "{fips}", stateFIPS)
	code = strings.ReplaceAll(code, "{congress}", strconv.Itoa(CongressNumber(year)))
	return code, true
}

// gazetteerCodes maps geography types to national gazetteer file
// naming codes. Types without an entry have no gazetteer series, so
// point geometry is unavailable for them.
var gazetteerCodes = map[GeoType]string{
	GeoUrbanArea:        "ua",
	GeoZCTA:             "zcta",
	GeoCounty:           "counties",
	GeoCongressDistrict: "{congress}CDs",
	GeoCBSA:             "cbsa",
	GeoAIANNH:           "aiannh",
	GeoCountySub:        "cousubs",
	GeoTract:            "tracts",
	GeoPlace:            "place",
	GeoSLDUpper:         "sldu",
	GeoSLDLower:         "sldl",
}

// GazetteerCode returns the gazetteer file naming code for a geography
// type in a vintage year, or false when the Bureau publishes no
// gazetteer for that type.
func GazetteerCode(year int, geoType GeoType) (string, bool) {
	code, ok := gazetteerCodes[geoType]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(code, "{congress}", strconv.Itoa(CongressNumber(year))), true
}

// Resolution is the simplification level of a boundary shapefile.
type Resolution string

const (
	Resolution500k Resolution = "500k" // 1:500,000, the finest published
	Resolution5m   Resolution = "5m"   // 1:5,000,000
	Resolution20m  Resolution = "20m"  // 1:20,000,000
)

// KnownResolution reports whether r is a published resolution.
func KnownResolution(r Resolution) bool {
	switch r {
	case Resolution500k, Resolution5m, Resolution20m:
		return true
	}
	return false
}

// DefaultResolution picks the resolution used when the caller does not
// ask for one. The national outline is only published down to 1:5M.
func DefaultResolution(geoType GeoType) Resolution {
	if geoType == GeoUS {
		return Resolution5m
	}
	return Resolution500k
}

// ShapefileURL returns the download URL for a cartographic boundary
// shapefile. Vintages through 2013 sit at the GENZ root rather than
// under shp/. An empty resolution selects the default for the type.
func ShapefileURL(year int, geoType GeoType, stateFIPS string, resolution Resolution) (string, bool) {
	code, ok := ShapefileCode(year, geoType, stateFIPS)
	if !ok {
		return "", false
	}
	if resolution == "" {
		resolution = DefaultResolution(geoType)
	}
	name := fmt.Sprintf("cb_%d_%s_%s.zip", year, code, resolution)
	if year > 2013 {
		return fmt.Sprintf("https://www2.census.gov/geo/tiger/GENZ%d/shp/%s", year, name), true
	}
	return fmt.Sprintf("https://www2.census.gov/geo/tiger/GENZ%d/%s", year, name), true
}

// GazetteerURL returns the download URL for a national gazetteer file,
// or false when the geography type has no gazetteer series.
func GazetteerURL(year int, geoType GeoType) (string, bool) {
	code, ok := GazetteerCode(year, geoType)
	if !ok {
		return "", false
	}
	url := fmt.Sprintf(
		"https://www2.census.gov/geo/docs/maps-data/data/gazetteer/%d_Gazetteer/%d_Gaz_%s_national.zip",
		year, year, code,
	)
	return url, true
}
