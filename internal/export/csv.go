package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/query"
)

// WriteCSV writes the result table as a CSV file. Null values are
// empty cells; geometry is WKT.
func WriteCSV(res *query.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(tableHeader(res.Mode)); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, row := range res.Rows {
		record, err := csvRecord(row, res.Mode)
		if err != nil {
			return err
		}
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	return nil
}

func csvRecord(row query.Row, mode geometry.Mode) ([]string, error) {
	record := []string{
		row.Name,
		row.GeoID,
		string(row.GeoType),
		strconv.Itoa(row.Year),
		formatDate(row.Date),
		row.VariableCode,
		row.VariableLabel,
		row.VariableConcept,
		row.Annotation,
		formatFloat(row.Value),
		formatFloat(row.PercentChange),
		formatFloat(row.Difference),
	}
	if mode == geometry.ModeNone {
		return record, nil
	}
	text, err := geometryText(row)
	if err != nil {
		return nil, err
	}
	return append(record, text), nil
}
