package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/query"
)

// WriteXLSX writes the result table as a single-sheet workbook. Years
// and numeric values are typed cells; everything else is text.
func WriteXLSX(res *query.Result, path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("acs")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range tableHeader(res.Mode) {
		header.AddCell().SetString(name)
	}

	for _, row := range res.Rows {
		out := sheet.AddRow()
		out.AddCell().SetString(row.Name)
		out.AddCell().SetString(row.GeoID)
		out.AddCell().SetString(string(row.GeoType))
		out.AddCell().SetInt(row.Year)
		out.AddCell().SetString(formatDate(row.Date))
		out.AddCell().SetString(row.VariableCode)
		out.AddCell().SetString(row.VariableLabel)
		out.AddCell().SetString(row.VariableConcept)
		out.AddCell().SetString(row.Annotation)
		setFloatCell(out, row.Value)
		setFloatCell(out, row.PercentChange)
		setFloatCell(out, row.Difference)
		if res.Mode != geometry.ModeNone {
			text, err := geometryText(row)
			if err != nil {
				return err
			}
			out.AddCell().SetString(text)
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func setFloatCell(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}
