// Package export writes finished query results to files. CSV and XLSX
// carry the full tidy table with geometry rendered as WKT; GeoJSON
// renders one feature per row with the scalar columns as properties.
package export

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/query"
)

// Format selects an output file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat validates a format name. An empty name selects CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatGeoJSON:
		return Format(s), nil
	}
	return "", acs.NewValidationError("export: unknown format %q, expected csv, xlsx, or geojson", s)
}

// Write writes res to path in the given format.
func Write(res *query.Result, path string, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(res, path)
	case FormatXLSX:
		return WriteXLSX(res, path)
	case FormatGeoJSON:
		return WriteGeoJSON(res, path)
	}
	return acs.NewValidationError("export: unknown format %q", string(format))
}

// scalarColumns is the tidy table's column order. Geometry, when
// present, is appended as the final column.
var scalarColumns = []string{
	"name",
	"geo_id",
	"geo_type",
	"year",
	"date",
	"variable_code",
	"variable_label",
	"variable_concept",
	"annotation",
	"value",
	"percent_change",
	"difference",
}

func tableHeader(mode geometry.Mode) []string {
	if mode == geometry.ModeNone {
		return scalarColumns
	}
	header := make([]string, 0, len(scalarColumns)+1)
	header = append(header, scalarColumns...)
	return append(header, "geometry")
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// geometryText renders a row's geometry as WKT, or "" when the row has
// none.
func geometryText(row query.Row) (string, error) {
	if row.Geometry == nil {
		return "", nil
	}
	text, err := wkt.Marshal(row.Geometry)
	if err != nil {
		return "", eris.Wrapf(err, "export: encode geometry for %s", row.GeoID)
	}
	return text, nil
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
