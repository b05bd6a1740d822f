package census

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/acs-cli/internal/acs"
)

// parseTable turns a data API response into records. The response is a
// JSON table: one header row of column names followed by data rows.
// The header must carry NAME, GEO_ID, and every requested variable;
// other columns (the echoed geography filter levels) are ignored.
// Rows that do not match the header shape are skipped with a warning
// rather than failing the task.
func parseTable(body []byte, task FetchTask, logger *zap.Logger) ([]Record, error) {
	var table [][]any
	if err := json.Unmarshal(body, &table); err != nil {
		return nil, &MalformedResponseError{Reason: "response is not a JSON table: " + err.Error()}
	}
	if len(table) == 0 {
		return nil, &MalformedResponseError{Reason: "response table has no header row"}
	}

	columns := make(map[string]int, len(table[0]))
	for i, cell := range table[0] {
		name, ok := cell.(string)
		if !ok {
			return nil, &MalformedResponseError{Reason: "header row contains a non-string column name"}
		}
		columns[name] = i
	}
	nameIdx, ok := columns["NAME"]
	if !ok {
		return nil, &MalformedResponseError{Reason: "header row is missing NAME"}
	}
	geoIDIdx, ok := columns["GEO_ID"]
	if !ok {
		return nil, &MalformedResponseError{Reason: "header row is missing GEO_ID"}
	}
	variableIdx := make(map[string]int, len(task.Variables))
	for _, variable := range task.Variables {
		idx, ok := columns[variable]
		if !ok {
			return nil, &MalformedResponseError{Reason: "header row is missing requested variable " + variable}
		}
		variableIdx[variable] = idx
	}

	width := len(table[0])
	records := make([]Record, 0, (len(table)-1)*len(task.Variables))
	for rowNum, row := range table[1:] {
		if len(row) != width {
			logger.Warn("skipping malformed response row",
				zap.Int("row", rowNum+1),
				zap.Int("cells", len(row)),
				zap.Int("want", width),
			)
			continue
		}
		name, nameOK := row[nameIdx].(string)
		geoID, geoOK := row[geoIDIdx].(string)
		if !nameOK || !geoOK {
			logger.Warn("skipping response row without geography identity",
				zap.Int("row", rowNum+1),
			)
			continue
		}
		for _, variable := range task.Variables {
			value, annotation := parseValue(row[variableIdx[variable]])
			records = append(records, Record{
				Name:       name,
				GeoID:      geoID,
				GeoType:    task.ForGeo.Type,
				Year:       task.Year,
				Variable:   variable,
				Value:      value,
				Annotation: annotation,
			})
		}
	}
	return records, nil
}

// parseValue interprets one estimate cell. Annotation sentinels and
// bare annotation symbols both yield a null value with the symbol kept
// alongside; empty and null cells yield a plain null.
func parseValue(cell any) (*float64, string) {
	switch v := cell.(type) {
	case float64:
		if symbol, ok := acs.Annotation(v); ok {
			return nil, symbol
		}
		return &v, ""
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || strings.EqualFold(trimmed, "null") {
			return nil, ""
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, trimmed
		}
		if symbol, ok := acs.Annotation(f); ok {
			return nil, symbol
		}
		return &f, ""
	}
	return nil, ""
}
