package geometry

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func squarePolygon(minX, minY float64) *shp.Polygon {
	return &shp.Polygon{
		NumParts:  1,
		NumPoints: 5,
		Parts:     []int32{0},
		Points: []shp.Point{
			{X: minX, Y: minY},
			{X: minX, Y: minY + 1},
			{X: minX + 1, Y: minY + 1},
			{X: minX + 1, Y: minY},
			{X: minX, Y: minY},
		},
	}
}

func TestPolygonToMultiPolygon(t *testing.T) {
	mp := polygonToMultiPolygon(squarePolygon(-80, 25))
	require.NotNil(t, mp)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 4269, mp.SRID())
	assert.Equal(t, geom.Coord{-80, 25}, mp.Coords()[0][0][0])
}

func TestPolygonToMultiPolygon_MultiPart(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points:   append(squarePolygon(-80, 25).Points, squarePolygon(-83, 27).Points...),
	}
	mp := polygonToMultiPolygon(poly)
	require.NotNil(t, mp)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, geom.Coord{-83, 27}, mp.Coords()[1][0][0])
}

func TestPolygonToMultiPolygon_FlattensZ(t *testing.T) {
	base := squarePolygon(-80, 25)
	polyZ := &shp.PolygonZ{
		NumParts: 1,
		Parts:    []int32{0},
		Points:   base.Points,
		ZArray:   []float64{10, 10, 10, 10, 10},
	}
	mp := polygonToMultiPolygon(polyZ)
	require.NotNil(t, mp)
	assert.Equal(t, geom.XY, mp.Layout())
	assert.Equal(t, geom.Coord{-80, 25}, mp.Coords()[0][0][0])
}

func TestPolygonToMultiPolygon_Unconvertible(t *testing.T) {
	assert.Nil(t, polygonToMultiPolygon(nil))
	assert.Nil(t, polygonToMultiPolygon(&shp.Point{X: 1, Y: 2}))
	assert.Nil(t, polygonToMultiPolygon(&shp.Polygon{}))
}

func TestReprojectNAD83(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{-121.8, 47.4}).SetSRID(4269)
	got := reprojectNAD83(pt)
	require.IsType(t, &geom.Point{}, got)
	assert.Equal(t, 4326, got.SRID())
	assert.Equal(t, []float64{-121.8, 47.4}, got.FlatCoords())

	mp := polygonToMultiPolygon(squarePolygon(-80, 25))
	assert.Equal(t, 4326, reprojectNAD83(mp).SRID())
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{
		"":         ModeNone,
		"points":   ModePoints,
		"polygons": ModePolygons,
	} {
		mode, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, mode)
	}
	_, err := ParseMode("centroids")
	require.Error(t, err)
}

// writeBoundaryArchive builds a ZIP holding a real shapefile with the
// given AFFGEOID attributes, one square per id.
func writeBoundaryArchive(t *testing.T, fields []shp.Field, ids []string) string {
	t.Helper()
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "cb_2019_us_county_500k.shp")

	w, err := shp.Create(shpPath, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields(fields)
	for i, id := range ids {
		w.Write(squarePolygon(float64(-80-i), 25))
		w.WriteAttribute(i, 0, "53")
		w.WriteAttribute(i, 1, id)
	}
	w.Close()

	return zipDir(t, dir, "cb_2019_us_county_500k.zip")
}

// zipDir bundles every file in dir into a fresh archive.
func zipDir(t *testing.T, dir, zipName string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), zipName)
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.NoError(t, err)
		fw, err := zw.Create(entry.Name())
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())
	return zipPath
}

func countyFields() []shp.Field {
	return []shp.Field{
		shp.StringField("STATEFP", 2),
		shp.StringField("AFFGEOID", 30),
	}
}

func TestReadBoundaries(t *testing.T) {
	archive := writeBoundaryArchive(t, countyFields(), []string{"0500000US53033", "0500000US53053"})

	e := NewEngine(nil)
	table, err := e.readBoundaries(archive)
	require.NoError(t, err)
	require.Len(t, table, 2)

	mp, ok := table["0500000US53033"].(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 4326, mp.SRID())
	assert.Equal(t, geom.Coord{-80, 25}, mp.Coords()[0][0][0])
}

func TestReadBoundaries_DecennialFieldName(t *testing.T) {
	fields := []shp.Field{
		shp.StringField("STATEFP10", 2),
		shp.StringField("AFFGEOID10", 30),
	}
	archive := writeBoundaryArchive(t, fields, []string{"0500000US53033"})

	e := NewEngine(nil)
	table, err := e.readBoundaries(archive)
	require.NoError(t, err)
	assert.Contains(t, table, "0500000US53033")
}

func TestReadBoundaries_NoAFFGEOIDField(t *testing.T) {
	fields := []shp.Field{
		shp.StringField("STATEFP", 2),
		shp.StringField("NAME", 30),
	}
	archive := writeBoundaryArchive(t, fields, []string{"King County"})

	e := NewEngine(nil)
	_, err := e.readBoundaries(archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AFFGEOID")
}

func TestReadBoundaries_NotAnArchive(t *testing.T) {
	bogus := filepath.Join(t.TempDir(), "bogus.zip")
	require.NoError(t, os.WriteFile(bogus, []byte("not a zip"), 0o644))

	e := NewEngine(nil)
	_, err := e.readBoundaries(bogus)
	require.Error(t, err)
}
