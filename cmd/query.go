package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/acs-cli/internal/export"
	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/query"
)

var (
	queryYears      string
	queryVariables  string
	queryFor        string
	queryIn         string
	queryGeometry   string
	queryResolution string
	queryEstimate   int
	queryFile       string
	queryOutput     string
	queryFormat     string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one ACS query and write the result table",
	Long: `Fetches estimates for every year, variable, and geography combination,
joins geometry when requested, and writes the tidy table to a file.

Years accept ranges: --years 2015-2019,2021. Geographies use the
type:code form from the Census API, e.g. --for county:033 --in state:53,
or postal abbreviations for states (--in state:WA).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := export.ParseFormat(queryFormat)
		if err != nil {
			return err
		}

		spec, err := querySpec()
		if err != nil {
			return err
		}

		cache, err := newCache()
		if err != nil {
			return err
		}
		defer cache.Close()

		q, err := query.New(spec,
			query.WithClient(newCensusClient()),
			query.WithGeometryEngine(geometry.NewEngine(cache)),
			query.WithChunkSize(cfg.Census.ChunkSize),
		)
		if err != nil {
			return err
		}

		res, err := q.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "query run")
		}

		outPath := queryOutput
		if outPath == "" {
			outPath = "acs." + string(format)
		}
		if err := export.Write(res, outPath, format); err != nil {
			return err
		}

		for _, warning := range res.Warnings {
			fmt.Printf("warning [%s] %s: %v\n", warning.Stage, warning.Key, warning.Err)
		}
		fmt.Printf("Wrote %d rows to %s\n", len(res.Rows), outPath)

		zap.L().Info("query complete",
			zap.Int("rows", len(res.Rows)),
			zap.Int("warnings", len(res.Warnings)),
			zap.String("output", outPath),
		)
		return nil
	},
}

// querySpec builds the request from --file when given, otherwise from
// the individual flags.
func querySpec() (query.Spec, error) {
	if queryFile != "" {
		return query.LoadSpec(queryFile)
	}
	years, err := parseYears(queryYears)
	if err != nil {
		return query.Spec{}, err
	}
	return query.Spec{
		Estimate:   queryEstimate,
		Years:      years,
		Variables:  splitAndTrim(queryVariables),
		ForGeo:     splitAndTrim(queryFor),
		InGeo:      splitAndTrim(queryIn),
		Geometry:   queryGeometry,
		Resolution: queryResolution,
	}, nil
}

// parseYears expands a comma-separated list of years and year ranges,
// e.g. "2015-2017,2019" becomes [2015 2016 2017 2019].
func parseYears(s string) ([]int, error) {
	var years []int
	for _, part := range splitAndTrim(s) {
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			year, err := strconv.Atoi(part)
			if err != nil {
				return nil, eris.Errorf("query: bad year %q", part)
			}
			years = append(years, year)
			continue
		}
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, eris.Errorf("query: bad year range %q", part)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || end < start {
			return nil, eris.Errorf("query: bad year range %q", part)
		}
		for y := start; y <= end; y++ {
			years = append(years, y)
		}
	}
	return years, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func init() {
	queryCmd.Flags().StringVar(&queryYears, "years", "", "comma-separated years and ranges, e.g. 2015-2019,2021")
	queryCmd.Flags().StringVar(&queryVariables, "variables", "", "comma-separated variable codes, e.g. DP03_0025E,B01003_001E")
	queryCmd.Flags().StringVar(&queryFor, "for", "", "target geographies, e.g. county:033 or county:*")
	queryCmd.Flags().StringVar(&queryIn, "in", "", "containing geographies, e.g. state:53")
	queryCmd.Flags().StringVar(&queryGeometry, "geometry", "", "join geometry: points or polygons")
	queryCmd.Flags().StringVar(&queryResolution, "resolution", "", "boundary resolution: 500k, 5m, or 20m (polygons only)")
	queryCmd.Flags().IntVar(&queryEstimate, "estimate", 5, "estimate period in years: 1, 3, or 5")
	queryCmd.Flags().StringVar(&queryFile, "file", "", "YAML query spec (replaces the query flags)")
	queryCmd.Flags().StringVar(&queryOutput, "output", "", "output path (default acs.<format>)")
	queryCmd.Flags().StringVar(&queryFormat, "format", "csv", "output format: csv, xlsx, or geojson")
	rootCmd.AddCommand(queryCmd)
}
