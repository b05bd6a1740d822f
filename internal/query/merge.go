package query

import (
	"sort"
	"time"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/census"
	"github.com/sells-group/acs-cli/internal/geometry"
)

// rowKey is the full scalar identity of a row. Two records matching on
// every field here are the same observation; geometry is derived from
// the key and never part of it.
type rowKey struct {
	name       string
	geoID      string
	geoType    acs.GeoType
	year       int
	variable   string
	hasValue   bool
	value      float64
	annotation string
}

// assemble builds the final table: joins metadata by (year, variable)
// and geometry by (year, geography id), drops exact duplicates, stamps
// the as-of date, sorts, and fills the change columns.
func assemble(records []census.Record, meta census.VariableIndex, geo map[int]geometry.Table) []Row {
	rows := make([]Row, 0, len(records))
	seen := make(map[rowKey]bool, len(records))
	for _, rec := range records {
		key := rowKey{
			name:       rec.Name,
			geoID:      rec.GeoID,
			geoType:    rec.GeoType,
			year:       rec.Year,
			variable:   rec.Variable,
			hasValue:   rec.Value != nil,
			annotation: rec.Annotation,
		}
		if rec.Value != nil {
			key.value = *rec.Value
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		row := Row{
			Name:         rec.Name,
			GeoID:        rec.GeoID,
			GeoType:      rec.GeoType,
			Year:         rec.Year,
			Date:         time.Date(rec.Year, time.December, 31, 0, 0, 0, 0, time.UTC),
			VariableCode: rec.Variable,
			Annotation:   rec.Annotation,
			Value:        rec.Value,
		}
		if m, ok := meta[census.VariableKey{Year: rec.Year, Variable: rec.Variable}]; ok {
			row.VariableLabel = m.Label
			row.VariableConcept = m.Concept
		}
		if table, ok := geo[rec.Year]; ok {
			row.Geometry = table[rec.GeoID]
		}
		rows = append(rows, row)
	}

	sortRows(rows)
	deriveChanges(rows)
	return rows
}

// sortRows orders the table by geography type, variable, name, and
// year. The ordering doubles as the grouping for the change columns:
// after it, each (geography id, variable) group's rows sit in
// ascending year order.
func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.GeoType != b.GeoType {
			return a.GeoType < b.GeoType
		}
		if a.VariableCode != b.VariableCode {
			return a.VariableCode < b.VariableCode
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.GeoID < b.GeoID
	})
}

// deriveChanges fills percent_change and difference against the
// previous non-null value within each (geography id, variable) group.
// A group's first observation and every annotated row stay nil; an
// annotated year is skipped over, so the next value compares to the
// last real one.
func deriveChanges(rows []Row) {
	type groupKey struct {
		geoID    string
		variable string
	}
	prev := make(map[groupKey]float64)
	for i := range rows {
		if rows[i].Value == nil {
			continue
		}
		key := groupKey{geoID: rows[i].GeoID, variable: rows[i].VariableCode}
		value := *rows[i].Value
		if p, ok := prev[key]; ok {
			pct := (value - p) / p
			diff := value - p
			rows[i].PercentChange = &pct
			rows[i].Difference = &diff
		}
		prev[key] = value
	}
}
