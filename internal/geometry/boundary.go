package geometry

import (
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/fetcher"
)

// readBoundaries extracts a cached boundary archive and reads one
// MultiPolygon per feature, keyed by the AFFGEOID attribute.
func (e *Engine) readBoundaries(archive string) (Table, error) {
	dir, err := os.MkdirTemp("", "acs-shp-")
	if err != nil {
		return nil, eris.Wrap(err, "geometry: create scratch dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if _, err := fetcher.ExtractZIP(archive, dir); err != nil {
		return nil, eris.Wrapf(err, "geometry: extract %s", filepath.Base(archive))
	}
	shpPath, err := findByExt(dir, ".shp")
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: locate shapefile in %s", filepath.Base(archive))
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open shapefile %s", filepath.Base(shpPath))
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		names[i] = name
		fieldIdx[name] = i
	}
	idField, ok := acs.AFFGEOIDField(names)
	if !ok {
		return nil, eris.Errorf("geometry: no AFFGEOID field in %s, have %s",
			filepath.Base(shpPath), strings.Join(names, ", "))
	}
	idIdx := fieldIdx[idField]

	table := make(Table)
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		id := strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))
		if id == "" {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}
		table[id] = reprojectNAD83(mp)
	}
	if skipped > 0 {
		e.logger.Debug("skipped boundary features",
			zap.String("shapefile", filepath.Base(shpPath)),
			zap.Int("skipped", skipped),
		)
	}
	return table, nil
}

// polygonToMultiPolygon converts a shapefile polygon to a
// geom.MultiPolygon in NAD83. Single- and multi-part polygons both
// normalize to MultiPolygon; Z and M dimensions flatten to XY.
func polygonToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	var parts []int32
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	default:
		return nil
	}
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4269)
	for i := range parts {
		start := parts[i]
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, points[j].X, points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geometry: skipping malformed ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geometry: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// findByExt finds the first file with the given extension in a directory.
func findByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
