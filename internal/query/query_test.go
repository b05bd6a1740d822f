package query

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/shapecache"
)

func validSpec() Spec {
	return Spec{
		Years:     []int{2017, 2018},
		Variables: []string{"DP03_0025E"},
		ForGeo:    []string{"county:033"},
		InGeo:     []string{"state:53"},
	}
}

func TestNew(t *testing.T) {
	q, err := New(validSpec())
	require.NoError(t, err)
	assert.Equal(t, StateConfigured, q.State())
	assert.Equal(t, geometry.ModeNone, q.Mode())
	assert.Equal(t, DefaultEstimate, q.estimate)
}

func TestNew_NormalizesYearsAndVariables(t *testing.T) {
	spec := validSpec()
	spec.Years = []int{2018, 2017, 2017}
	spec.Variables = []string{"DP03_0025E", "B01003_001E", "DP03_0025E"}

	q, err := New(spec)
	require.NoError(t, err)
	assert.Equal(t, []int{2017, 2018}, q.years)
	assert.Equal(t, []string{"B01003_001E", "DP03_0025E"}, q.variables)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantMsg string
	}{
		{
			name:    "unknown geography type",
			mutate:  func(s *Spec) { s.ForGeo = []string{"continent:1"} },
			wantMsg: "unrecognized geography type",
		},
		{
			name:    "mixed for types",
			mutate:  func(s *Spec) { s.ForGeo = []string{"county:033", "state:53"} },
			wantMsg: "single type",
		},
		{
			name:    "no years",
			mutate:  func(s *Spec) { s.Years = nil },
			wantMsg: "at least one year",
		},
		{
			name:    "year before the series",
			mutate:  func(s *Spec) { s.Years = []int{2004} },
			wantMsg: "before 2005",
		},
		{
			name:    "unpublished year",
			mutate:  func(s *Spec) { s.Years = []int{time.Now().Year()} },
			wantMsg: "published yet",
		},
		{
			name:    "county without state",
			mutate:  func(s *Spec) { s.InGeo = nil },
			wantMsg: "must name a state",
		},
		{
			name:    "bad estimate",
			mutate:  func(s *Spec) { s.Estimate = 2 },
			wantMsg: "estimate must be 1, 3, or 5",
		},
		{
			name: "tract outside the 5-year series",
			mutate: func(s *Spec) {
				s.Estimate = 1
				s.ForGeo = []string{"tract:*"}
				s.InGeo = []string{"state:53", "county:033"}
			},
			wantMsg: "5-year",
		},
		{
			name:    "no variables",
			mutate:  func(s *Spec) { s.Variables = nil },
			wantMsg: "at least one variable",
		},
		{
			name:    "unknown geometry mode",
			mutate:  func(s *Spec) { s.Geometry = "centroids" },
			wantMsg: "unknown mode",
		},
		{
			name: "resolution with points",
			mutate: func(s *Spec) {
				s.Geometry = "points"
				s.Resolution = "500k"
			},
			wantMsg: "polygon geometry",
		},
		{
			name:    "resolution without geometry",
			mutate:  func(s *Spec) { s.Resolution = "500k" },
			wantMsg: "polygon geometry",
		},
		{
			name: "unknown resolution",
			mutate: func(s *Spec) {
				s.Geometry = "polygons"
				s.Resolution = "250k"
			},
			wantMsg: "unknown resolution",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			_, err := New(spec)
			require.Error(t, err)
			assert.True(t, acs.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	content := `estimate: 5
years: [2017, 2018]
variables:
  - DP03_0025E
for_geo: ["county:033"]
in_geo: ["state:53"]
geometry: points
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	spec, err := LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, 5, spec.Estimate)
	assert.Equal(t, []int{2017, 2018}, spec.Years)
	assert.Equal(t, []string{"DP03_0025E"}, spec.Variables)
	assert.Equal(t, []string{"county:033"}, spec.ForGeo)
	assert.Equal(t, []string{"state:53"}, spec.InGeo)
	assert.Equal(t, "points", spec.Geometry)

	cache, err := shapecache.New(t.TempDir(), shapecache.WithoutFTPFallback())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	q, err := New(spec, WithGeometryEngine(geometry.NewEngine(cache)))
	require.NoError(t, err)
	assert.Equal(t, geometry.ModePoints, q.Mode())
}

func TestLoadSpec_MissingFile(t *testing.T) {
	_, err := LoadSpec(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read spec")
}

func TestLoadSpec_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte("years: [2017"), 0o644))

	_, err := LoadSpec(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse spec")
}
