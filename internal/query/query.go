// Package query orchestrates one ACS query end to end: geography
// resolution, concurrent table and metadata fetches, the optional
// geometry join, and the merge into a single tidy table. Construction
// validates everything that can fail without the network; Run contains
// every non-fatal failure to the unit it affects and reports it as a
// warning on the result.
package query

import (
	"os"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/census"
	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/shapecache"
)

// State is the lifecycle stage of one query invocation.
type State string

const (
	StateConfigured      State = "configured"
	StateResolving       State = "resolving"
	StateFetching        State = "fetching"
	StateJoiningGeometry State = "joining_geometry"
	StateMerging         State = "merging"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// DefaultEstimate is the estimate period assumed when a spec leaves it
// out. The 5-year series covers every geography level.
const DefaultEstimate = 5

// Spec is a raw query request as a user writes it: years, variables,
// and geography selectors, plus the optional geometry settings.
type Spec struct {
	Estimate   int      `yaml:"estimate"`
	Years      []int    `yaml:"years"`
	Variables  []string `yaml:"variables"`
	ForGeo     []string `yaml:"for_geo"`
	InGeo      []string `yaml:"in_geo"`
	Geometry   string   `yaml:"geometry"`
	Resolution string   `yaml:"resolution"`
}

// LoadSpec reads a query spec from a YAML file.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, eris.Wrapf(err, "query: read spec %s", path)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, eris.Wrapf(err, "query: parse spec %s", path)
	}
	return spec, nil
}

// Option configures a query's collaborators.
type Option func(*Query)

// WithClient sets the data API client.
func WithClient(c census.Client) Option {
	return func(q *Query) {
		q.client = c
	}
}

// WithGeometryEngine sets the engine used for geometry joins.
func WithGeometryEngine(e *geometry.Engine) Option {
	return func(q *Query) {
		q.geo = e
	}
}

// WithChunkSize overrides the per-request variable ceiling.
func WithChunkSize(n int) Option {
	return func(q *Query) {
		if n > 0 {
			q.chunkSize = n
		}
	}
}

// Query is a validated ACS query, ready to run. Years and variables
// are held sorted and de-duplicated.
type Query struct {
	estimate   int
	years      []int
	variables  []string
	geos       acs.GeographySpec
	mode       geometry.Mode
	resolution acs.Resolution
	chunkSize  int

	client census.Client
	geo    *geometry.Engine
	logger *zap.Logger

	mu    sync.Mutex
	state State
}

// New validates spec and builds a Query. An unknown geography type, a
// mixed-type for list, an unsupported hierarchy, an out-of-range year,
// a bad estimate period, an empty variable list, or a resolution
// outside polygon mode all fail here, before any network activity.
func New(spec Spec, opts ...Option) (*Query, error) {
	geos, err := acs.ResolveGeographies(spec.ForGeo, spec.InGeo)
	if err != nil {
		return nil, err
	}
	if err := acs.CheckYears(spec.Years); err != nil {
		return nil, err
	}
	if err := acs.CheckHierarchy(geos); err != nil {
		return nil, err
	}
	estimate := spec.Estimate
	if estimate == 0 {
		estimate = DefaultEstimate
	}
	if err := acs.CheckEstimate(estimate, geos); err != nil {
		return nil, err
	}
	if len(spec.Variables) == 0 {
		return nil, acs.NewValidationError("query: at least one variable is required")
	}
	mode, err := geometry.ParseMode(spec.Geometry)
	if err != nil {
		return nil, err
	}
	resolution := acs.Resolution(spec.Resolution)
	if resolution != "" {
		if mode != geometry.ModePolygons {
			return nil, acs.NewValidationError("query: resolution %q only applies to polygon geometry", spec.Resolution)
		}
		if !acs.KnownResolution(resolution) {
			return nil, acs.NewValidationError("query: unknown resolution %q", spec.Resolution)
		}
	}

	q := &Query{
		estimate:   estimate,
		years:      uniqueInts(spec.Years),
		variables:  uniqueStrings(spec.Variables),
		geos:       geos,
		mode:       mode,
		resolution: resolution,
		chunkSize:  acs.DefaultChunkSize,
		state:      StateConfigured,
		logger:     zap.L().With(zap.String("component", "query")),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.client == nil {
		q.client = census.NewClient("")
	}
	if q.geo == nil && q.mode != geometry.ModeNone {
		cache, cacheErr := shapecache.New(shapecache.DefaultRoot())
		if cacheErr != nil {
			return nil, cacheErr
		}
		q.geo = geometry.NewEngine(cache)
	}
	return q, nil
}

// State returns the current lifecycle stage.
func (q *Query) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Mode returns the geometry mode the query was built with.
func (q *Query) Mode() geometry.Mode { return q.mode }

func (q *Query) setState(s State) {
	q.mu.Lock()
	q.state = s
	q.mu.Unlock()
	q.logger.Info("query: stage", zap.String("state", string(s)))
}

func uniqueInts(values []int) []int {
	seen := make(map[int]bool, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
