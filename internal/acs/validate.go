package acs

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports query parameters rejected before any network
// activity takes place.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// MinYear is the first year the ACS published data through the API.
const MinYear = 2005

// CheckYears validates that every year falls inside the window of
// published ACS data. Data for a year appears partway through the
// following calendar year, so the current year is always out of range.
func CheckYears(years []int) error {
	if len(years) == 0 {
		return NewValidationError("acs: at least one year is required")
	}
	currentYear := time.Now().Year()
	for _, year := range years {
		if year < MinYear {
			return NewValidationError("acs: no ACS data is published for years before %d", MinYear)
		}
		if year >= currentYear {
			return NewValidationError("acs: no ACS data is published yet for %d", year)
		}
	}
	return nil
}

// geographyDocsURL points at the Bureau's reference list of supported
// geography hierarchies.
const geographyDocsURL = "https://api.census.gov/data/2017/acs/acs5/geography.html"

// CheckHierarchy validates the for/in combination against hierarchies
// the API actually serves, catching the rejections that otherwise
// surface as opaque 400s.
func CheckHierarchy(spec GeographySpec) error {
	forTypes := geoTypeSet(spec.ForGeo)
	inTypes := geoTypeSet(spec.InGeo)
	switch {
	case forTypes[GeoTract] && inTypes[GeoPlace]:
		return NewValidationError("acs: tract queries cannot be scoped by place, see %s", geographyDocsURL)
	case forTypes[GeoTract] && !(inTypes[GeoState] && inTypes[GeoCounty]):
		return NewValidationError("acs: tract queries must name a state and county, see %s", geographyDocsURL)
	case forTypes[GeoPlace] && !inTypes[GeoState]:
		return NewValidationError("acs: place queries must name a state, see %s", geographyDocsURL)
	case forTypes[GeoCounty] && !inTypes[GeoState]:
		return NewValidationError("acs: county queries must name a state, see %s", geographyDocsURL)
	}
	return nil
}

func geoTypeSet(geos []Geo) map[GeoType]bool {
	set := make(map[GeoType]bool, len(geos))
	for _, g := range geos {
		set[g.Type] = true
	}
	return set
}

// CheckEstimate validates the estimate period, including combinations
// the API only serves from the 5-year series.
func CheckEstimate(estimate int, spec GeographySpec) error {
	switch estimate {
	case 1, 3, 5:
	default:
		return NewValidationError("acs: estimate must be 1, 3, or 5 years, got %d", estimate)
	}
	if estimate == 5 {
		return nil
	}
	forTypes := geoTypeSet(spec.ForGeo)
	if forTypes[GeoTract] || forTypes[GeoBlockGroup] {
		return NewValidationError("acs: tract and block group queries are only published in 5-year estimates")
	}
	return nil
}
