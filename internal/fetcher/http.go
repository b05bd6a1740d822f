package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/acs-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int

	// RetryBackoff is the base delay between attempts. Default: 1s.
	RetryBackoff time.Duration

	// InsecureSkipVerify disables TLS certificate verification. The Bureau's
	// archive host has let certificates lapse before; the toggle comes from
	// config and defaults to off.
	InsecureSkipVerify bool
}

// NotFoundError reports a 404 from the remote host. An archive URL that 404s
// identifies a vintage the Bureau never published, so callers treat it as
// authoritative rather than transient.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.URL
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// AdaptiveLimiter tunes a token bucket from observed responses: clean
// responses nudge the rate up toward twice the seed, 429s halve it down to
// a quarter of the seed.
type AdaptiveLimiter struct {
	mu      sync.Mutex
	bucket  *rate.Limiter
	seed    rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter seeds a limiter at the given rate and burst.
func NewAdaptiveLimiter(seed rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		bucket:  rate.NewLimiter(seed, burst),
		seed:    seed,
		current: seed,
	}
}

// Wait blocks until the bucket allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.bucket.Wait(ctx)
}

// OnSuccess nudges the rate up 20%.
func (a *AdaptiveLimiter) OnSuccess() {
	a.scale(1.2)
}

// OnRateLimit halves the rate after a 429.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.scale(0.5)
	zap.L().Warn("throttling after 429", zap.Float64("rate", float64(a.Limit())))
}

func (a *AdaptiveLimiter) scale(factor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * rate.Limit(factor)
	if next > a.seed*2 {
		next = a.seed * 2
	}
	if next < a.seed/4 {
		next = a.seed / 4
	}
	a.current = next
	a.bucket.SetLimit(next)
}

// Limit reports the current tuned rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// DefaultAdaptiveLimiters seeds limiters for the two Bureau hosts. The data
// API tolerates more traffic than the archive host.
func DefaultAdaptiveLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"api.census.gov":  NewAdaptiveLimiter(10, 10),
		"www2.census.gov": NewAdaptiveLimiter(5, 5),
	}
}

// HTTPFetcher implements Fetcher with per-host adaptive rate limiting and
// retry on transient failures.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher builds a fetcher with defaults applied.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "acs-cli/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: DefaultAdaptiveLimiters(),
	}
}

// limiterFor returns the adaptive limiter for the URL's host, creating one
// with a generous seed for hosts outside the usual pair.
func (f *HTTPFetcher) limiterFor(rawURL string) *AdaptiveLimiter {
	var host string
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(20, 20)
		f.limiters[host] = lim
	}
	return lim
}

// fetchOnce performs one rate-limited request. Responses worth another
// attempt come back as transient errors for the retry layer; everything
// else is the caller's to interpret.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	lim := f.limiterFor(req.URL.String())
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	resp, err := f.client.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close() //nolint:errcheck
		return nil, &NotFoundError{URL: req.URL.String()}
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close() //nolint:errcheck
		lim.OnRateLimit()
		return nil, resilience.NewTransientError(eris.Errorf("http 429 from %s", req.URL.String()), resp.StatusCode)
	case resp.StatusCode >= 500:
		resp.Body.Close() //nolint:errcheck
		return nil, resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String()), resp.StatusCode)
	}

	lim.OnSuccess()
	return resp, nil
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    f.opts.MaxRetries,
		InitialBackoff: f.opts.RetryBackoff,
		MaxBackoff:     30 * f.opts.RetryBackoff,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		// Transport-level failures are always worth another attempt; only
		// a 404 is an authoritative answer.
		ShouldRetry: func(err error) bool { return !IsNotFound(err) },
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("retrying download",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		return f.fetchOnce(ctx, req)
	})
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, eris.Wrap(err, "download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return resp.Body, nil
}

// DownloadToFile streams the URL into path and reports the bytes written.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	n, err := io.Copy(out, body)
	if err != nil {
		out.Close() //nolint:errcheck
		return n, eris.Wrap(err, "write file")
	}
	if err := out.Close(); err != nil {
		return n, eris.Wrap(err, "close file")
	}
	return n, nil
}
