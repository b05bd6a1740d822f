package query

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/census"
	"github.com/sells-group/acs-cli/internal/geometry"
)

func ptr(f float64) *float64 { return &f }

func countyRecord(geoID, name string, year int, variable string, value *float64) census.Record {
	return census.Record{
		Name:     name,
		GeoID:    geoID,
		GeoType:  acs.GeoCounty,
		Year:     year,
		Variable: variable,
		Value:    value,
	}
}

func TestAssemble(t *testing.T) {
	records := []census.Record{
		countyRecord("0500000US53033", "King County, Washington", 2017, "DP03_0025E", ptr(30.0)),
	}
	meta := census.VariableIndex{
		census.VariableKey{Year: 2017, Variable: "DP03_0025E"}: census.VariableMeta{
			Name:    "DP03_0025E",
			Year:    2017,
			Label:   "COMMUTING TO WORK - Mean travel time to work (minutes)",
			Concept: "Selected Economic Characteristics",
		},
	}
	point := geom.NewPointFlat(geom.XY, []float64{-121.833977, 47.490552}).SetSRID(4326)
	geo := map[int]geometry.Table{
		2017: {"0500000US53033": point},
	}

	rows := assemble(records, meta, geo)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "King County, Washington", row.Name)
	assert.Equal(t, "0500000US53033", row.GeoID)
	assert.Equal(t, acs.GeoCounty, row.GeoType)
	assert.Equal(t, 2017, row.Year)
	assert.Equal(t, time.Date(2017, time.December, 31, 0, 0, 0, 0, time.UTC), row.Date)
	assert.Equal(t, "DP03_0025E", row.VariableCode)
	assert.Equal(t, "COMMUTING TO WORK - Mean travel time to work (minutes)", row.VariableLabel)
	assert.Equal(t, "Selected Economic Characteristics", row.VariableConcept)
	require.NotNil(t, row.Value)
	assert.InDelta(t, 30.0, *row.Value, 1e-9)
	assert.Same(t, point, row.Geometry)
	assert.Nil(t, row.PercentChange)
	assert.Nil(t, row.Difference)
}

func TestAssemble_DropsExactDuplicates(t *testing.T) {
	rec := countyRecord("0500000US53033", "King County, Washington", 2017, "B01003_001E", ptr(2188649))
	rows := assemble([]census.Record{rec, rec}, nil, nil)
	assert.Len(t, rows, 1)
}

func TestAssemble_KeepsNearDuplicates(t *testing.T) {
	a := countyRecord("0500000US53033", "King County, Washington", 2017, "B01003_001E", ptr(2188649))
	b := countyRecord("0500000US53033", "King County, Washington", 2017, "B01003_001E", ptr(2188650))
	rows := assemble([]census.Record{a, b}, nil, nil)
	assert.Len(t, rows, 2)
}

func TestAssemble_MetadataMissLeavesNull(t *testing.T) {
	rec := countyRecord("0500000US53033", "King County, Washington", 2005, "DP03_0025E", ptr(27.4))
	rows := assemble([]census.Record{rec}, census.VariableIndex{}, nil)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].VariableLabel)
	assert.Empty(t, rows[0].VariableConcept)
	require.NotNil(t, rows[0].Value)
	assert.InDelta(t, 27.4, *rows[0].Value, 1e-9)
}

func TestAssemble_GeometryMissLeavesNull(t *testing.T) {
	records := []census.Record{
		countyRecord("0500000US53033", "King County, Washington", 2017, "B01003_001E", ptr(2188649)),
		countyRecord("0500000US53061", "Snohomish County, Washington", 2017, "B01003_001E", ptr(789400)),
	}
	point := geom.NewPointFlat(geom.XY, []float64{-121.8, 47.5}).SetSRID(4326)
	geo := map[int]geometry.Table{
		2017: {"0500000US53033": point},
	}

	rows := assemble(records, nil, geo)
	require.Len(t, rows, 2)
	byID := map[string]Row{}
	for _, row := range rows {
		byID[row.GeoID] = row
	}
	assert.NotNil(t, byID["0500000US53033"].Geometry)
	assert.Nil(t, byID["0500000US53061"].Geometry)
}

func TestAssemble_SortsByTypeVariableNameYear(t *testing.T) {
	tract := census.Record{
		Name:     "Census Tract 1, King County, Washington",
		GeoID:    "1400000US53033000100",
		GeoType:  acs.GeoTract,
		Year:     2017,
		Variable: "B01003_001E",
		Value:    ptr(4000),
	}
	records := []census.Record{
		countyRecord("0500000US53061", "Snohomish County, Washington", 2017, "B01003_001E", ptr(789400)),
		tract,
		countyRecord("0500000US53033", "King County, Washington", 2018, "B01003_001E", ptr(2195502)),
		countyRecord("0500000US53033", "King County, Washington", 2017, "DP03_0025E", ptr(30.0)),
		countyRecord("0500000US53033", "King County, Washington", 2017, "B01003_001E", ptr(2188649)),
	}

	rows := assemble(records, nil, nil)
	require.Len(t, rows, 5)

	got := make([][3]any, 0, len(rows))
	for _, row := range rows {
		got = append(got, [3]any{row.VariableCode, row.Name, row.Year})
	}
	want := [][3]any{
		{"B01003_001E", "King County, Washington", 2017},
		{"B01003_001E", "King County, Washington", 2018},
		{"B01003_001E", "Snohomish County, Washington", 2017},
		{"DP03_0025E", "King County, Washington", 2017},
		{"B01003_001E", "Census Tract 1, King County, Washington", 2017},
	}
	assert.Equal(t, want, got)
}

func TestDeriveChanges(t *testing.T) {
	records := []census.Record{
		countyRecord("0500000US53033", "King County, Washington", 2017, "B01003_001E", ptr(100)),
		countyRecord("0500000US53033", "King County, Washington", 2018, "B01003_001E", ptr(110)),
		countyRecord("0500000US53033", "King County, Washington", 2019, "B01003_001E", ptr(99)),
	}

	rows := assemble(records, nil, nil)
	require.Len(t, rows, 3)

	assert.Nil(t, rows[0].PercentChange)
	assert.Nil(t, rows[0].Difference)

	require.NotNil(t, rows[1].PercentChange)
	assert.InDelta(t, 0.1, *rows[1].PercentChange, 1e-9)
	assert.InDelta(t, 10, *rows[1].Difference, 1e-9)

	require.NotNil(t, rows[2].PercentChange)
	assert.InDelta(t, -0.1, *rows[2].PercentChange, 1e-9)
	assert.InDelta(t, -11, *rows[2].Difference, 1e-9)
}

func TestDeriveChanges_SkipsAnnotatedYears(t *testing.T) {
	annotated := countyRecord("0500000US53033", "King County, Washington", 2018, "B01003_001E", nil)
	annotated.Annotation = "-"
	records := []census.Record{
		countyRecord("0500000US53033", "King County, Washington", 2017, "B01003_001E", ptr(100)),
		annotated,
		countyRecord("0500000US53033", "King County, Washington", 2019, "B01003_001E", ptr(121)),
	}

	rows := assemble(records, nil, nil)
	require.Len(t, rows, 3)

	assert.Nil(t, rows[1].Value)
	assert.Nil(t, rows[1].PercentChange)
	assert.Nil(t, rows[1].Difference)

	// 2019 compares to 2017, the last real value.
	require.NotNil(t, rows[2].PercentChange)
	assert.InDelta(t, 0.21, *rows[2].PercentChange, 1e-9)
	assert.InDelta(t, 21, *rows[2].Difference, 1e-9)
}

func TestDeriveChanges_GroupsAreIndependent(t *testing.T) {
	records := []census.Record{
		countyRecord("0500000US53033", "King County, Washington", 2017, "B01003_001E", ptr(100)),
		countyRecord("0500000US53061", "Snohomish County, Washington", 2017, "B01003_001E", ptr(700)),
		countyRecord("0500000US53033", "King County, Washington", 2018, "B01003_001E", ptr(150)),
		countyRecord("0500000US53061", "Snohomish County, Washington", 2018, "B01003_001E", ptr(770)),
	}

	rows := assemble(records, nil, nil)
	require.Len(t, rows, 4)
	byKey := map[string]Row{}
	for _, row := range rows {
		byKey[row.GeoID+"/"+strconv.Itoa(row.Year)] = row
	}

	assert.Nil(t, byKey["0500000US53033/2017"].PercentChange)
	assert.InDelta(t, 0.5, *byKey["0500000US53033/2018"].PercentChange, 1e-9)
	assert.Nil(t, byKey["0500000US53061/2017"].PercentChange)
	assert.InDelta(t, 0.1, *byKey["0500000US53061/2018"].PercentChange, 1e-9)
}
