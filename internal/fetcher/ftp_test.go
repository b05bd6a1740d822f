package fetcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	t.Run("tiger archive", func(t *testing.T) {
		host, path, err := parseFTPURL("ftp://ftp2.census.gov/geo/tiger/GENZ2017/shp/cb_2017_us_county_500k.zip")
		require.NoError(t, err)
		assert.Equal(t, "ftp2.census.gov:21", host)
		assert.Equal(t, "/geo/tiger/GENZ2017/shp/cb_2017_us_county_500k.zip", path)
	})

	t.Run("explicit port kept", func(t *testing.T) {
		host, _, err := parseFTPURL("ftp://mirror.example.net:2121/pub/gazetteer.zip")
		require.NoError(t, err)
		assert.Equal(t, "mirror.example.net:2121", host)
	})

	t.Run("rejects other schemes and bare hosts", func(t *testing.T) {
		for _, raw := range []string{
			"https://www2.census.gov/geo/tiger/file.zip",
			"ftp://ftp2.census.gov",
			"://bad",
		} {
			_, _, err := parseFTPURL(raw)
			assert.Error(t, err, raw)
		}
	})
}

func TestFTPMirrorURL(t *testing.T) {
	mirror, err := FTPMirrorURL("https://www2.census.gov/geo/tiger/GENZ2017/shp/cb_2017_us_county_500k.zip")
	require.NoError(t, err)
	assert.Equal(t, "ftp://ftp2.census.gov/geo/tiger/GENZ2017/shp/cb_2017_us_county_500k.zip", mirror)
}

func TestFTPMirrorURL_UnknownHost(t *testing.T) {
	_, err := FTPMirrorURL("https://api.census.gov/data/2017/acs/acs5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ftp mirror")
}

func TestNewFTPFetcher_Defaults(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.Equal(t, time.Minute, f.opts.Timeout)
}
