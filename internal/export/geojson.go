package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/acs-cli/internal/query"
)

type feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// WriteGeoJSON writes the result as a FeatureCollection with one
// feature per row. The scalar columns become feature properties; rows
// without geometry carry a null geometry member, as the GeoJSON spec
// allows for unlocated features.
func WriteGeoJSON(res *query.Result, path string) error {
	fc := featureCollection{
		Type:     "FeatureCollection",
		Features: make([]feature, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		raw := json.RawMessage("null")
		if row.Geometry != nil {
			encoded, err := geojson.Marshal(row.Geometry)
			if err != nil {
				return eris.Wrapf(err, "export: encode geometry for %s", row.GeoID)
			}
			raw = encoded
		}
		fc.Features = append(fc.Features, feature{
			Type:     "Feature",
			Geometry: raw,
			Properties: map[string]any{
				"name":             row.Name,
				"geo_id":           row.GeoID,
				"geo_type":         string(row.GeoType),
				"year":             row.Year,
				"date":             formatDate(row.Date),
				"variable_code":    row.VariableCode,
				"variable_label":   row.VariableLabel,
				"variable_concept": row.VariableConcept,
				"annotation":       row.Annotation,
				"value":            row.Value,
				"percent_change":   row.PercentChange,
				"difference":       row.Difference,
			},
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "export: encode feature collection")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
