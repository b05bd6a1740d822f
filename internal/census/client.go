// Package census implements the ACS data API client: request planning,
// concurrent table fetches under a retry policy, response parsing into
// records, and best-effort variable metadata lookup.
package census

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/resilience"
)

// DefaultBaseURL is the root of the Census Bureau's data API.
const DefaultBaseURL = "https://api.census.gov/data"

// DefaultConcurrency bounds the number of in-flight API requests.
const DefaultConcurrency = 8

// Client fetches ACS data tables and variable metadata.
type Client interface {
	// FetchTable executes a single fetch task and parses its records.
	FetchTable(ctx context.Context, task FetchTask) ([]Record, error)

	// FetchTables executes tasks concurrently and returns one result per
	// task. Individual task failures are carried in the results rather
	// than aborting the batch; an authentication rejection cancels the
	// remaining tasks.
	FetchTables(ctx context.Context, tasks []FetchTask) []TaskResult

	// FetchVariable looks up label/concept metadata for one variable.
	FetchVariable(ctx context.Context, estimate, year int, variable string) (VariableMeta, error)

	// FetchVariables looks up metadata for every (year, variable) pair,
	// best-effort. Pairs the API does not recognize are absent from the
	// returned index.
	FetchVariables(ctx context.Context, estimate int, years []int, variables []string) VariableIndex
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the API root, e.g. to point at a test server.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithConcurrency sets the in-flight request ceiling for batch fetches.
func WithConcurrency(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithRetry overrides the retry policy for data and metadata requests.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

// WithUserAgent sets the User-Agent header on outgoing requests.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		c.userAgent = ua
	}
}

type client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	concurrency int
	retry       resilience.RetryConfig
	userAgent   string
	logger      *zap.Logger
}

// NewClient creates an API client. The key may be empty, in which case
// requests go out unauthenticated and are subject to the Bureau's
// anonymous quota.
func NewClient(apiKey string, opts ...Option) Client {
	c := &client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		limiter:     rate.NewLimiter(10, 10),
		concurrency: DefaultConcurrency,
		retry:       resilience.DefaultRetryConfig(),
		userAgent:   "acs-cli/1.0",
		logger:      zap.L().With(zap.String("component", "census")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VariableKey addresses variable metadata by year and variable name.
type VariableKey struct {
	Year     int
	Variable string
}

// VariableMeta is the label/concept metadata for one variable in one
// year, tidied for output.
type VariableMeta struct {
	Name    string
	Year    int
	Label   string
	Concept string
}

// VariableIndex holds the metadata lookup results for a query.
type VariableIndex map[VariableKey]VariableMeta

// Record is one (geography, year, variable) observation parsed from a
// data API response row.
type Record struct {
	Name       string      // human-readable geography name
	GeoID      string      // canonical geography id, e.g. 0500000US53033
	GeoType    acs.GeoType // geography type the row was fetched for
	Year       int
	Variable   string
	Value      *float64 // nil when the estimate is annotated or absent
	Annotation string   // annotation symbol for suppressed estimates
}
