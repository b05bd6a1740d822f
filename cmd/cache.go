package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/acs-cli/internal/shapecache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the geometry archive cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List cached archives",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, err := newCache()
		if err != nil {
			return err
		}
		defer cache.Close()

		entries, err := cache.Status(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "cache status")
		}

		fmt.Printf("Cache: %s\n", cache.Dir())
		if cache.Ephemeral() {
			fmt.Println("(ephemeral: the configured root was unavailable)")
		}
		if len(entries) == 0 {
			fmt.Println("No cached archives")
			return nil
		}
		formatCacheEntries(os.Stdout, entries)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached archive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, err := newCache()
		if err != nil {
			return err
		}
		defer cache.Close()

		if err := cache.Clear(); err != nil {
			return eris.Wrap(err, "cache clear")
		}
		fmt.Println("Cache cleared")
		return nil
	},
}

// formatCacheEntries writes a tabular listing of cached archives.
func formatCacheEntries(out io.Writer, entries []shapecache.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tFILENAME\tBYTES\tFETCHED")
	for _, e := range entries {
		key := e.Key
		if key == "" {
			key = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			key, e.Filename, e.Bytes, e.FetchedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
