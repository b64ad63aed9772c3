package config

import (
	"github.com/spf13/viper"
)

// ApplyDefaults sets default configuration values in the provided Viper instance.
func ApplyDefaults(v *viper.Viper) {
	// Target API
	v.SetDefault("target.endpoint", "http://localhost:8081")
	v.SetDefault("target.request-timeout", 30) // seconds

	// Engine
	v.SetDefault("engine.checkpoint-dir", ".workos-import")
	v.SetDefault("engine.chunk-size", 1000)
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.concurrency", 10) // per-worker row-processor concurrency
	v.SetDefault("engine.require-membership", true)
	v.SetDefault("engine.dry-run", false)

	// Rate limiting
	v.SetDefault("ratelimit.requests-per-second", 20.0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("ratelimit.redis-url", "")
	v.SetDefault("ratelimit.distributed-ceiling", 0) // 0 disables the distributed ceiling
	v.SetDefault("ratelimit.window-seconds", 1)

	// Retry settings (Target API calls)
	v.SetDefault("retry.max-attempts", 3)
	v.SetDefault("retry.initial-delay", 500) // milliseconds
	v.SetDefault("retry.max-delay", 4000)    // milliseconds
	v.SetDefault("retry.timeout", 30)        // seconds

	// Durable reporting (optional)
	v.SetDefault("reportstore.dsn", "")
	v.SetDefault("reportstore.max-open-conns", 5)
	v.SetDefault("reportstore.max-idle-conns", 2)

	// Event bus (optional)
	v.SetDefault("events.kafka-brokers", []string{})
	v.SetDefault("events.kafka-topic", "workos-import.lifecycle")

	// Observability
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", true)
	v.SetDefault("metrics.addr", ":9090")

	// Output settings
	v.SetDefault("defaults.output-format", "table") // table, json
	v.SetDefault("defaults.verbose", false)
	v.SetDefault("defaults.quiet", false)

	// Progress indicators
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.min-duration", 30) // show progress for operations >30s
}
