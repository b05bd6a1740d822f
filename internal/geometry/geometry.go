// Package geometry loads geography shapes from cached Census archives:
// internal points from gazetteer tables and boundary polygons from
// cartographic boundary shapefiles, keyed by the AFFGEOID-form ids the
// data API reports so survey records join directly.
package geometry

import (
	"context"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/shapecache"
)

// MinYear is the first vintage with published geometry archives. The
// cartographic boundary program has no generalized files before 2013.
const MinYear = 2013

// Mode selects the geometry representation attached to results.
type Mode string

const (
	ModeNone     Mode = ""
	ModePoints   Mode = "points"
	ModePolygons Mode = "polygons"
)

// ParseMode validates a geometry mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModePoints, ModePolygons:
		return Mode(s), nil
	}
	return "", acs.NewValidationError("geometry: unknown mode %q, expected points or polygons", s)
}

// Table maps AFFGEOID-form geography ids to shapes for one
// (year, geography type) pair. All shapes carry SRID 4326.
type Table map[string]geom.T

// Engine resolves geometry tables through the shapefile cache.
type Engine struct {
	cache  *shapecache.Cache
	logger *zap.Logger
}

// NewEngine creates a geometry engine backed by cache.
func NewEngine(cache *shapecache.Cache) *Engine {
	return &Engine{
		cache:  cache,
		logger: zap.L().With(zap.String("component", "geometry")),
	}
}

// Fetch loads the geometry table for one (year, geography) pair in the
// given mode. ModeNone returns an empty table.
func (e *Engine) Fetch(ctx context.Context, mode Mode, year int, geoType acs.GeoType, stateFIPS string, resolution acs.Resolution) (Table, error) {
	switch mode {
	case ModePoints:
		return e.FetchPoints(ctx, year, geoType)
	case ModePolygons:
		return e.FetchPolygons(ctx, year, geoType, stateFIPS, resolution)
	}
	return nil, nil
}

// FetchPoints loads the gazetteer internal-point table for a vintage
// and geography type.
func (e *Engine) FetchPoints(ctx context.Context, year int, geoType acs.GeoType) (Table, error) {
	archive, err := e.cache.Fetch(ctx, shapecache.GazetteerKey(year, geoType))
	if err != nil {
		return nil, err
	}
	return e.readGazetteer(archive, geoType)
}

// FetchPolygons loads the boundary polygon table for a vintage,
// geography type, and resolution.
func (e *Engine) FetchPolygons(ctx context.Context, year int, geoType acs.GeoType, stateFIPS string, resolution acs.Resolution) (Table, error) {
	archive, err := e.cache.Fetch(ctx, shapecache.ShapefileKey(year, geoType, stateFIPS, resolution))
	if err != nil {
		return nil, err
	}
	return e.readBoundaries(archive)
}

// reprojectNAD83 carries a shape from the archives' native NAD83 into
// WGS84. The datum shift between the two is the null transformation,
// so coordinates pass through unchanged and only the SRID is rebound.
func reprojectNAD83(g geom.T) geom.T {
	switch s := g.(type) {
	case *geom.Point:
		return s.SetSRID(4326)
	case *geom.MultiPolygon:
		return s.SetSRID(4326)
	}
	return g
}
