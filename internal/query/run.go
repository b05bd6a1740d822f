package query

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/acs-cli/internal/census"
	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/shapecache"
)

// Run executes the query: plan, fetch, optional geometry join, merge.
// Individual task failures land as warnings on the result so siblings
// still return data. Validation, a rejected credential, every task
// failing, and cancellation abort with no table at all.
func (q *Query) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := q.logger.With(
		zap.Ints("years", q.years),
		zap.Int("variables", len(q.variables)),
		zap.String("geo_type", string(q.geos.ForType())),
		zap.String("geometry", string(q.mode)),
	)
	log.Info("query: starting")

	q.setState(StateResolving)
	tasks, err := census.PlanTasks(q.estimate, q.years, q.variables, q.geos, q.chunkSize)
	if err != nil {
		return nil, q.fail(err)
	}
	log.Info("query: planned fetches", zap.Int("tasks", len(tasks)))

	q.setState(StateFetching)
	var (
		taskResults []census.TaskResult
		meta        census.VariableIndex
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		taskResults = q.client.FetchTables(gCtx, tasks)
		for _, res := range taskResults {
			if census.IsAuth(res.Err) {
				return res.Err
			}
		}
		return nil
	})
	g.Go(func() error {
		meta = q.client.FetchVariables(gCtx, q.estimate, q.years, q.variables)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, q.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, q.fail(eris.Wrap(err, "query: cancelled"))
	}

	result := &Result{Mode: q.mode}
	var records []census.Record
	var firstErr error
	failed := 0
	tasksByYear := make(map[int]int)
	failedByYear := make(map[int]int)
	for _, res := range taskResults {
		tasksByYear[res.Task.Year]++
		if res.Err != nil {
			failed++
			failedByYear[res.Task.Year]++
			if firstErr == nil {
				firstErr = res.Err
			}
			result.warn(StateFetching, taskKey(res.Task), res.Err)
			continue
		}
		records = append(records, res.Records...)
	}
	if failed > 0 && failed == len(tasks) {
		return nil, q.fail(eris.Wrap(firstErr, "query: every fetch failed"))
	}
	for _, year := range q.years {
		if failedByYear[year] > 0 && failedByYear[year] == tasksByYear[year] {
			result.warn(StateFetching, strconv.Itoa(year),
				eris.Errorf("query: every fetch for %d failed, year absent from results", year))
		}
	}

	geoTables := make(map[int]geometry.Table)
	if q.mode != geometry.ModeNone {
		q.setState(StateJoiningGeometry)
		geoYears := make([]int, 0, len(q.years))
		for _, year := range q.years {
			if year >= geometry.MinYear {
				geoYears = append(geoYears, year)
			} else {
				log.Debug("query: no geometry series for vintage", zap.Int("year", year))
			}
		}
		tables := make([]geometry.Table, len(geoYears))
		errs := make([]error, len(geoYears))
		gg, ggCtx := errgroup.WithContext(ctx)
		for i, year := range geoYears {
			gg.Go(func() error {
				tables[i], errs[i] = q.geo.Fetch(ggCtx, q.mode, year, q.geos.ForType(), q.geos.StateFIPS(), q.resolution)
				return nil
			})
		}
		_ = gg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, q.fail(eris.Wrap(err, "query: cancelled"))
		}
		for i, year := range geoYears {
			switch {
			case errs[i] == nil:
				geoTables[year] = tables[i]
			case shapecache.IsUnpublished(errs[i]):
				log.Debug("query: no published geometry archive",
					zap.Int("year", year),
					zap.Error(errs[i]),
				)
			default:
				result.warn(StateJoiningGeometry, strconv.Itoa(year), errs[i])
			}
		}
	}

	q.setState(StateMerging)
	result.Rows = assemble(records, meta, geoTables)

	q.setState(StateDone)
	log.Info("query: complete",
		zap.Int("rows", len(result.Rows)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (q *Query) fail(err error) error {
	q.setState(StateFailed)
	return err
}

// taskKey identifies one fetch task in warnings, e.g.
// "2017 profile county:033".
func taskKey(task census.FetchTask) string {
	return fmt.Sprintf("%d %s %s", task.Year, task.Route, task.ForGeo)
}
