package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/acs-cli/internal/census"
	"github.com/sells-group/acs-cli/internal/config"
	"github.com/sells-group/acs-cli/internal/fetcher"
	"github.com/sells-group/acs-cli/internal/resilience"
	"github.com/sells-group/acs-cli/internal/shapecache"
)

var cfg *config.Config

var apiKeyFlag string

var rootCmd = &cobra.Command{
	Use:   "acs",
	Short: "Run American Community Survey queries",
	Long:  "Collects ACS estimates across years, variables, and geographies from the Census API, joins cached boundary or gazetteer geometry, and writes one tidy table.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newCensusClient builds the API client from config. The --api-key
// flag wins over the configured key.
func newCensusClient() census.Client {
	key := apiKeyFlag
	if key == "" {
		key = cfg.Census.APIKey
	}
	return census.NewClient(key,
		census.WithBaseURL(cfg.Census.BaseURL),
		census.WithConcurrency(cfg.Census.Concurrency),
		census.WithRateLimit(cfg.Census.RateLimit),
		census.WithUserAgent(cfg.Census.UserAgent),
		census.WithRetry(resilience.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
			Multiplier:     cfg.Retry.Multiplier,
			JitterFraction: cfg.Retry.JitterFraction,
		}),
	)
}

// newCache opens the archive cache at the configured root.
func newCache() (*shapecache.Cache, error) {
	root := cfg.Cache.Root
	if root == "" {
		root = shapecache.DefaultRoot()
	}
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:          cfg.Census.UserAgent,
		MaxRetries:         cfg.Retry.MaxAttempts,
		InsecureSkipVerify: cfg.Cache.InsecureSkipVerify,
	})
	opts := []shapecache.Option{shapecache.WithFetcher(httpFetcher)}
	if !cfg.Cache.FTPFallback {
		opts = append(opts, shapecache.WithoutFTPFallback())
	}
	return shapecache.New(root, opts...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "Census API key (default from config or ACS_CENSUS_API_KEY)")
}
