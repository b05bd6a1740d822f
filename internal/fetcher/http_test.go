package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher(maxRetries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:    "acs-cli-test",
		Timeout:      5 * time.Second,
		MaxRetries:   maxRetries,
		RetryBackoff: time.Millisecond,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acs-cli-test", r.Header.Get("User-Agent"))
		w.Write([]byte("hello world")) //nolint:errcheck
	}))
	defer srv.Close()

	body, err := testFetcher(1).Download(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file content here")) //nolint:errcheck
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.zip")
	n, err := testFetcher(1).DownloadToFile(context.Background(), srv.URL+"/file", path)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file content here", string(data))
}

func TestDownload_RecoversFromServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("success")) //nolint:errcheck
	}))
	defer srv.Close()

	body, err := testFetcher(3).Download(context.Background(), srv.URL+"/retry")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "success", string(data))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDownload_ExhaustsBudget(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testFetcher(2).Download(context.Background(), srv.URL+"/fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 503")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestDownload_404IsAuthoritative(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher(3).Download(context.Background(), srv.URL+"/cb_2017_99_tract_500k.zip")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	// Never retried: a missing vintage stays missing.
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDownload_UnexpectedStatusSurfaced(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testFetcher(3).Download(context.Background(), srv.URL+"/forbidden")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
	assert.False(t, IsNotFound(err))
	// 4xx other than 404 and 429 is not retried.
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDownloadToFile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.txt")
	_, err := testFetcher(1).DownloadToFile(context.Background(), srv.URL+"/missing", path)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoFileExists(t, path)
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testFetcher(3).Download(ctx, srv.URL+"/data")
	require.Error(t, err)
}

func TestLimiterFor(t *testing.T) {
	f := testFetcher(1)

	t.Run("bureau hosts are pre-seeded", func(t *testing.T) {
		api := f.limiterFor("https://api.census.gov/data/2019/acs/acs5")
		archive := f.limiterFor("https://www2.census.gov/geo/tiger/GENZ2019/shp/x.zip")
		assert.InDelta(t, 10.0, float64(api.Limit()), 0.001)
		assert.InDelta(t, 5.0, float64(archive.Limit()), 0.001)
	})

	t.Run("unknown host gets one limiter, not one per call", func(t *testing.T) {
		first := f.limiterFor("https://mirror.example.net/data")
		second := f.limiterFor("https://mirror.example.net/other")
		assert.Same(t, first, second)
		assert.InDelta(t, 20.0, float64(first.Limit()), 0.001)
	})

	t.Run("unparseable url does not panic", func(t *testing.T) {
		assert.NotNil(t, f.limiterFor("://bad"))
	})
}

func TestAdaptiveLimiter(t *testing.T) {
	t.Run("tunes up and down", func(t *testing.T) {
		lim := NewAdaptiveLimiter(10, 10)
		lim.OnSuccess()
		assert.InDelta(t, 12.0, float64(lim.Limit()), 0.1)
		lim.OnRateLimit()
		assert.InDelta(t, 6.0, float64(lim.Limit()), 0.1)
	})

	t.Run("ceiling at twice the seed", func(t *testing.T) {
		lim := NewAdaptiveLimiter(10, 10)
		for range 20 {
			lim.OnSuccess()
		}
		assert.InDelta(t, 20.0, float64(lim.Limit()), 0.1)
	})

	t.Run("floor at a quarter of the seed", func(t *testing.T) {
		lim := NewAdaptiveLimiter(10, 10)
		for range 10 {
			lim.OnRateLimit()
		}
		assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
	})

	t.Run("wait honors cancellation", func(t *testing.T) {
		lim := NewAdaptiveLimiter(0.001, 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, lim.Wait(ctx))
	})
}

func TestDownload_429TunesLimiter(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f := testFetcher(3)
	body, err := f.Download(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), attempts.Load())

	// Two 429s halved the seed of 20 twice, the final success nudged it
	// back up once.
	u, _ := url.Parse(srv.URL)
	assert.InDelta(t, 6.0, float64(f.limiterFor(u.String()).Limit()), 0.1)
}

func TestDownload_RateEnforced(t *testing.T) {
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f := testFetcher(1)
	u, _ := url.Parse(srv.URL)
	f.limiters[u.Host] = NewAdaptiveLimiter(2, 1)

	for range 3 {
		body, err := f.Download(context.Background(), srv.URL+"/limited")
		require.NoError(t, err)
		body.Close() //nolint:errcheck
	}

	require.Len(t, stamps, 3)
	elapsed := stamps[2].Sub(stamps[0])
	assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(500), "third request should have waited for tokens")
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "acs-cli/1.0", f.opts.UserAgent)
	assert.Equal(t, 5*time.Minute, f.opts.Timeout)
	assert.Equal(t, 5, f.opts.MaxRetries)
	assert.Equal(t, time.Second, f.opts.RetryBackoff)
}

func TestNewHTTPFetcher_Transport(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	transport, ok := f.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 10, transport.MaxIdleConnsPerHost)
	assert.Equal(t, 20, transport.MaxConnsPerHost)
	assert.Nil(t, transport.TLSClientConfig)

	insecure := NewHTTPFetcher(HTTPOptions{InsecureSkipVerify: true})
	transport, ok = insecure.client.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}
