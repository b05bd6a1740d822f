package query

import (
	"time"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/geometry"
)

// Row is one finished (geography, year, variable) observation.
// Pointer-valued fields are nil where the upstream value is absent:
// annotated estimates carry a nil Value with the annotation symbol, and
// the derived columns are nil for a group's first observation.
type Row struct {
	Name            string
	GeoID           string
	GeoType         acs.GeoType
	Year            int
	Date            time.Time
	VariableCode    string
	VariableLabel   string
	VariableConcept string
	Annotation      string
	Value           *float64
	PercentChange   *float64
	Difference      *float64
	Geometry        geom.T
}

// Warning records a failure contained to one unit of work: the stage
// it happened in, a key identifying the unit, and the underlying error.
type Warning struct {
	Stage State
	Key   string
	Err   error
}

// Result is the finished table plus everything that went wrong without
// being fatal.
type Result struct {
	Rows     []Row
	Mode     geometry.Mode
	Warnings []Warning
}

func (r *Result) warn(stage State, key string, err error) {
	r.Warnings = append(r.Warnings, Warning{Stage: stage, Key: key, Err: err})
}
