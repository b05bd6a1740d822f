package geometry

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/fetcher"
)

// readGazetteer extracts a cached gazetteer archive and reads one
// internal point per row. Gazetteer tables are tab-delimited Latin-1
// with ragged whitespace around both headers and cells; bare GEOIDs
// are normalized to AFFGEOID form for the join key.
func (e *Engine) readGazetteer(archive string, geoType acs.GeoType) (Table, error) {
	dir, err := os.MkdirTemp("", "acs-gaz-")
	if err != nil {
		return nil, eris.Wrap(err, "geometry: create scratch dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if _, err := fetcher.ExtractZIP(archive, dir); err != nil {
		return nil, eris.Wrapf(err, "geometry: extract %s", filepath.Base(archive))
	}
	txtPath, err := findByExt(dir, ".txt")
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: locate gazetteer table in %s", filepath.Base(archive))
	}

	f, err := os.Open(txtPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open gazetteer table %s", filepath.Base(txtPath))
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: read gazetteer header %s", filepath.Base(txtPath))
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	geoIDIdx, ok := col["GEOID"]
	if !ok {
		return nil, eris.Errorf("geometry: gazetteer table %s has no GEOID column", filepath.Base(txtPath))
	}
	latIdx, ok := col["INTPTLAT"]
	if !ok {
		return nil, eris.Errorf("geometry: gazetteer table %s has no INTPTLAT column", filepath.Base(txtPath))
	}
	lonIdx, ok := col["INTPTLONG"]
	if !ok {
		return nil, eris.Errorf("geometry: gazetteer table %s has no INTPTLONG column", filepath.Base(txtPath))
	}

	table := make(Table)
	var skipped int
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if geoIDIdx >= len(row) || latIdx >= len(row) || lonIdx >= len(row) {
			skipped++
			continue
		}
		geoID := strings.TrimSpace(row[geoIDIdx])
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(row[latIdx]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(row[lonIdx]), 64)
		if geoID == "" || latErr != nil || lonErr != nil {
			skipped++
			continue
		}
		id, ok := acs.NormalizeGeoID(geoID, geoType)
		if !ok {
			skipped++
			continue
		}
		pt := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4269)
		table[id] = reprojectNAD83(pt)
	}
	if skipped > 0 {
		e.logger.Debug("skipped gazetteer rows",
			zap.String("table", filepath.Base(txtPath)),
			zap.Int("skipped", skipped),
		)
	}
	return table, nil
}
