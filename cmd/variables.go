package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/census"
)

var (
	variablesYears    string
	variablesEstimate int
)

var variablesCmd = &cobra.Command{
	Use:   "variables <code>...",
	Short: "Look up variable labels and concepts",
	Long:  "Fetches label and concept metadata for the given variable codes across the requested years. Years the API has no metadata for show dashes.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		years, err := parseYears(variablesYears)
		if err != nil {
			return err
		}
		if err := acs.CheckYears(years); err != nil {
			return err
		}
		if err := acs.CheckEstimate(variablesEstimate, acs.GeographySpec{}); err != nil {
			return err
		}

		index := newCensusClient().FetchVariables(cmd.Context(), variablesEstimate, years, args)
		formatVariableTable(os.Stdout, index, years, args)
		return nil
	},
}

// formatVariableTable writes one row per (year, variable) pair.
func formatVariableTable(out io.Writer, index census.VariableIndex, years []int, variables []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR\tVARIABLE\tLABEL\tCONCEPT")
	for _, year := range years {
		for _, variable := range variables {
			label, concept := "-", "-"
			if meta, ok := index[census.VariableKey{Year: year, Variable: variable}]; ok {
				label, concept = meta.Label, meta.Concept
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", year, variable, label, concept)
		}
	}
	_ = w.Flush()
}

func init() {
	variablesCmd.Flags().StringVar(&variablesYears, "years", "", "comma-separated years and ranges")
	variablesCmd.Flags().IntVar(&variablesEstimate, "estimate", 5, "estimate period in years: 1, 3, or 5")
	rootCmd.AddCommand(variablesCmd)
}
