package census

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/acs-cli/internal/acs"
)

// FetchTask is one unit of network work: a single data API request for
// one year, one table route, one variable chunk, and one for clause.
type FetchTask struct {
	Year      int
	Estimate  int
	Route     acs.TableRoute
	Variables []string
	ForGeo    acs.Geo
	InGeo     []acs.Geo
}

// TaskResult carries one task's outcome back to the orchestrator.
// Records and Err are mutually exclusive.
type TaskResult struct {
	Task    FetchTask
	Records []Record
	Err     error
}

// PlanTasks expands a query into fetch tasks: variables grouped by
// table route, chunked under the request-size limit, crossed with
// years and for clauses. A variable that cannot be routed fails
// planning before any network activity.
func PlanTasks(estimate int, years []int, variables []string, spec acs.GeographySpec, chunkSize int) ([]FetchTask, error) {
	years = uniqueYears(years)
	variables = uniqueVariables(variables)
	if len(variables) == 0 {
		return nil, acs.NewValidationError("census: at least one variable is required")
	}

	byRoute := make(map[acs.TableRoute][]string)
	var routes []acs.TableRoute
	for _, variable := range variables {
		route, err := acs.RouteForVariable(variable)
		if err != nil {
			return nil, err
		}
		if _, ok := byRoute[route]; !ok {
			routes = append(routes, route)
		}
		byRoute[route] = append(byRoute[route], variable)
	}

	var tasks []FetchTask
	for _, year := range years {
		for _, route := range routes {
			for _, chunk := range acs.ChunkVariables(byRoute[route], chunkSize) {
				for _, forGeo := range spec.ForGeo {
					tasks = append(tasks, FetchTask{
						Year:      year,
						Estimate:  estimate,
						Route:     route,
						Variables: chunk,
						ForGeo:    forGeo,
						InGeo:     spec.InGeo,
					})
				}
			}
		}
	}
	return tasks, nil
}

func uniqueYears(years []int) []int {
	seen := make(map[int]bool, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}

func uniqueVariables(variables []string) []string {
	seen := make(map[string]bool, len(variables))
	out := make([]string, 0, len(variables))
	for _, v := range variables {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// FetchTable executes one task and parses the response into records.
func (c *client) FetchTable(ctx context.Context, task FetchTask) ([]Record, error) {
	body, err := c.getWithRetry(ctx, c.buildTableURL(task), "fetch table")
	if err != nil {
		return nil, err
	}
	return parseTable(body, task, c.logger)
}

// FetchTables runs tasks concurrently under the configured ceiling.
// Each task's outcome lands in its own result slot, so one exhausted
// retry never hides sibling data. An AuthError cancels the remaining
// tasks: a rejected key cannot succeed anywhere.
func (c *client) FetchTables(ctx context.Context, tasks []FetchTask) []TaskResult {
	results := make([]TaskResult, len(tasks))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			records, err := c.FetchTable(gCtx, task)
			results[i] = TaskResult{Task: task, Records: records, Err: err}
			if err != nil {
				c.logger.Warn("table fetch failed",
					zap.Int("year", task.Year),
					zap.String("route", string(task.Route)),
					zap.String("for", task.ForGeo.String()),
					zap.Int("variables", len(task.Variables)),
					zap.Error(err),
				)
				if IsAuth(err) {
					return err
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
