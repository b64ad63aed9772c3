// Package config loads configuration for the import engine from multiple
// sources: environment variables, a YAML config file, and command-line
// flags. Uses Viper with clear precedence: flags > environment variables >
// config file > defaults.
//
// Configuration Sources:
//   - Environment variables: WORKOS_IMPORT_* prefix (e.g. WORKOS_IMPORT_TARGET_ENDPOINT)
//   - Config file: config.yaml in ~/.workos-import or the working directory
//   - Command-line flags: take precedence over all other sources
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	// Target API
	TargetEndpoint string
	TargetAPIKey   string
	RequestTimeout time.Duration

	// Engine
	CheckpointDir      string
	ChunkSize          int
	Workers            int
	Concurrency        int
	RequireMembership  bool
	DryRun             bool

	// Rate limiting
	RatePerSecond       float64
	RateBurst           int
	RedisURL            string
	DistributedCeiling  int64
	RateWindow          time.Duration

	// Retry
	RetryMaxAttempts int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryTimeout      time.Duration

	// Durable reporting (optional; empty DSN disables it)
	ReportStoreDSN          string
	ReportStoreMaxOpenConns int
	ReportStoreMaxIdleConns int

	// Event bus (optional; empty brokers disables it)
	KafkaBrokers []string
	KafkaTopic   string

	// Observability
	LogLevel   string
	LogJSON    bool
	MetricsAddr string

	// Output
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Progress
	ProgressEnabled     bool
	ProgressMinDuration time.Duration

	// ConfigFile is the path Viper actually read from, if any.
	ConfigFile string
}

// Load loads configuration from all sources with proper precedence.
func Load() (*Config, error) {
	v := viper.New()
	ApplyDefaults(v)

	v.SetEnvPrefix("WORKOS_IMPORT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".workos-import"))
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		TargetEndpoint: v.GetString("target.endpoint"),
		TargetAPIKey:   v.GetString("target.api-key"),
		RequestTimeout: time.Duration(v.GetInt("target.request-timeout")) * time.Second,

		CheckpointDir:     v.GetString("engine.checkpoint-dir"),
		ChunkSize:         v.GetInt("engine.chunk-size"),
		Workers:           v.GetInt("engine.workers"),
		Concurrency:       v.GetInt("engine.concurrency"),
		RequireMembership: v.GetBool("engine.require-membership"),
		DryRun:            v.GetBool("engine.dry-run"),

		RatePerSecond:      v.GetFloat64("ratelimit.requests-per-second"),
		RateBurst:          v.GetInt("ratelimit.burst"),
		RedisURL:           v.GetString("ratelimit.redis-url"),
		DistributedCeiling: int64(v.GetInt("ratelimit.distributed-ceiling")),
		RateWindow:         time.Duration(v.GetInt("ratelimit.window-seconds")) * time.Second,

		RetryMaxAttempts:  v.GetInt("retry.max-attempts"),
		RetryInitialDelay: time.Duration(v.GetInt("retry.initial-delay")) * time.Millisecond,
		RetryMaxDelay:     time.Duration(v.GetInt("retry.max-delay")) * time.Millisecond,
		RetryTimeout:      time.Duration(v.GetInt("retry.timeout")) * time.Second,

		ReportStoreDSN:          v.GetString("reportstore.dsn"),
		ReportStoreMaxOpenConns: v.GetInt("reportstore.max-open-conns"),
		ReportStoreMaxIdleConns: v.GetInt("reportstore.max-idle-conns"),

		KafkaBrokers: v.GetStringSlice("events.kafka-brokers"),
		KafkaTopic:   v.GetString("events.kafka-topic"),

		LogLevel:    v.GetString("logging.level"),
		LogJSON:     v.GetBool("logging.json"),
		MetricsAddr: v.GetString("metrics.addr"),

		OutputFormat: v.GetString("defaults.output-format"),
		Verbose:      v.GetBool("defaults.verbose"),
		Quiet:        v.GetBool("defaults.quiet"),

		ProgressEnabled:     v.GetBool("progress.enabled"),
		ProgressMinDuration: time.Duration(v.GetInt("progress.min-duration")) * time.Second,

		ConfigFile: v.ConfigFileUsed(),
	}
}

// FlagOverrides applies CLI flag values on top of an already-loaded Config.
// Only non-zero-value entries in overrides are applied, so callers can build
// the map directly from cobra flag values without checking Changed().
type FlagOverrides struct {
	TargetEndpoint string
	ChunkSize      int
	Workers        int
	Concurrency    int
	DryRun         *bool
	OutputFormat   string
}

// Apply overlays non-empty flag values onto cfg, giving flags precedence
// over env/file/defaults.
func (o FlagOverrides) Apply(cfg *Config) {
	if o.TargetEndpoint != "" {
		cfg.TargetEndpoint = o.TargetEndpoint
	}
	if o.ChunkSize > 0 {
		cfg.ChunkSize = o.ChunkSize
	}
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.Concurrency > 0 {
		cfg.Concurrency = o.Concurrency
	}
	if o.DryRun != nil {
		cfg.DryRun = *o.DryRun
	}
	if o.OutputFormat != "" {
		cfg.OutputFormat = o.OutputFormat
	}
}
