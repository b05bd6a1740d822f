package census

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/acs-cli/internal/acs"
)

// variableResponse is the JSON shape of variables/{name}.json.
type variableResponse struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Concept string `json:"concept"`
}

// FetchVariable looks up one variable's definition. A response that
// cannot be decoded yields a stub with no label, which callers treat
// as a metadata miss.
func (c *client) FetchVariable(ctx context.Context, estimate, year int, variable string) (VariableMeta, error) {
	route, err := acs.RouteForVariable(variable)
	if err != nil {
		return VariableMeta{}, err
	}
	body, err := c.getWithRetry(ctx, c.buildVariableURL(estimate, year, route, variable), "fetch variable")
	if err != nil {
		return VariableMeta{}, err
	}
	var resp variableResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// The API answers unknown variables with an HTML error page.
		return VariableMeta{Name: variable, Year: year}, nil
	}
	name := resp.Name
	if name == "" {
		name = variable
	}
	return VariableMeta{
		Name:    name,
		Year:    year,
		Label:   acs.TidyVariableLabel(resp.Label),
		Concept: acs.TitleizeConcept(resp.Concept),
	}, nil
}

// FetchVariables resolves metadata for the full (year, variable) cross
// product. Lookups are advisory: a miss leaves label and concept null
// in the output and never excludes the variable from data fetches.
func (c *client) FetchVariables(ctx context.Context, estimate int, years []int, variables []string) VariableIndex {
	years = uniqueYears(years)
	variables = uniqueVariables(variables)

	index := make(VariableIndex, len(years)*len(variables))
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, year := range years {
		for _, variable := range variables {
			g.Go(func() error {
				meta, err := c.FetchVariable(gCtx, estimate, year, variable)
				if err != nil {
					c.logger.Warn("variable metadata lookup failed",
						zap.String("variable", variable),
						zap.Int("year", year),
						zap.Error(err),
					)
					return nil
				}
				if meta.Label == "" {
					c.logger.Warn("variable not recognized for year",
						zap.String("variable", variable),
						zap.Int("year", year),
					)
					return nil
				}
				mu.Lock()
				index[VariableKey{Year: year, Variable: variable}] = meta
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	return index
}
