package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census CensusConfig `yaml:"census" mapstructure:"census"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Retry  RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures the data API client.
type CensusConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	ChunkSize   int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CacheConfig configures the on-disk archive cache. An empty root
// selects the conventional location under the user's home directory.
type CacheConfig struct {
	Root               string `yaml:"root" mapstructure:"root"`
	FTPFallback        bool   `yaml:"ftp_fallback" mapstructure:"ftp_fallback"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// RetryConfig configures retry behavior against the Bureau's hosts.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.user_agent", "acs-cli/1.0")
	v.SetDefault("census.concurrency", 8)
	v.SetDefault("census.chunk_size", 48)
	v.SetDefault("census.rate_limit", 10)
	v.SetDefault("cache.ftp_fallback", true)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_backoff_ms", 3000)
	v.SetDefault("retry.max_backoff_ms", 15000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	// Zero defaults register the remaining keys; AutomaticEnv only
	// overrides keys viper already knows.
	v.SetDefault("census.api_key", "")
	v.SetDefault("cache.root", "")
	v.SetDefault("cache.insecure_skip_verify", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks configured values against their usable ranges.
func (c *Config) Validate() error {
	var problems []string
	if c.Census.Concurrency < 1 || c.Census.Concurrency > 64 {
		problems = append(problems, "census.concurrency must be between 1 and 64")
	}
	if c.Census.ChunkSize < 1 || c.Census.ChunkSize > 48 {
		problems = append(problems, "census.chunk_size must be between 1 and 48")
	}
	if c.Census.RateLimit <= 0 {
		problems = append(problems, "census.rate_limit must be > 0")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be >= 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
