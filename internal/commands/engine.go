package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/client"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/config"
	cliErrors "github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errors"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/events"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/health"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/logging"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/metrics"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/ratelimit"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/reportstore"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/target"
)

// engine bundles the dependencies every job-running command (import, resume)
// wires identically. Built once per invocation from the loaded config.
type engine struct {
	cfg     *config.Config
	logger  *zap.Logger
	target  *target.Client
	limiter *ratelimit.Limiter
	orgs    *cache.OrgCache
	roles   *cache.RoleCache
	events  *events.Publisher
	store   *reportstore.Store // nil when ReportStoreDSN is unset
	metrics *http.Server       // nil when MetricsAddr is unset
}

// buildEngine constructs the shared dependency set and runs the Target
// pre-flight health check. A failed health check returns a CLIError with
// exit code 3 before any chunk is claimed. jobID keys the distributed rate
// limiter window and must be the same ID the checkpoint is created/resumed
// under.
func buildEngine(ctx context.Context, cfg *config.Config, jobID string) (*engine, error) {
	logger := logging.Must(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	if cfg.TargetEndpoint == "" {
		return nil, cliErrors.NewValidationError("target endpoint is required", "set WORKOS_IMPORT_TARGET_ENDPOINT or target.endpoint in the config file")
	}

	checker := health.NewChecker(5 * time.Second)
	if _, err := checker.CheckRequired(ctx, map[string]string{"target-api": cfg.TargetEndpoint}); err != nil {
		return nil, cliErrors.NewServiceUnavailableError("target-api", cfg.TargetEndpoint)
	}

	tgt := target.New(cfg.TargetEndpoint, cfg.TargetAPIKey, cfg.RequestTimeout, client.RetryConfig{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		Timeout:      cfg.RetryTimeout,
	})

	var limiterOpts []ratelimit.Option
	limiterOpts = append(limiterOpts, ratelimit.WithLogger(logger))
	if cfg.RedisURL != "" && cfg.DistributedCeiling > 0 {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, cliErrors.NewValidationError(fmt.Sprintf("invalid redis-url: %v", err), "check ratelimit.redis-url in the config file")
		}
		rdb := redis.NewClient(opts)
		limiterOpts = append(limiterOpts, ratelimit.WithDistributedCeiling(rdb, jobID, cfg.DistributedCeiling, cfg.RateWindow))
	}
	limiter := ratelimit.New(cfg.RatePerSecond, cfg.RateBurst, limiterOpts...)

	orgs := cache.NewOrgCache(tgt, 10000, 0, cfg.DryRun)
	roles := cache.NewRoleCache(tgt, 10000)

	pub := events.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)

	var store *reportstore.Store
	if cfg.ReportStoreDSN != "" {
		s, err := reportstore.Open(ctx, reportstore.Config{
			DSN:          cfg.ReportStoreDSN,
			MaxOpenConns: cfg.ReportStoreMaxOpenConns,
			MaxIdleConns: cfg.ReportStoreMaxIdleConns,
		})
		if err != nil {
			logger.Warn("reportstore unavailable, continuing without durable reporting", zap.Error(err))
		} else {
			store = s
		}
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	return &engine{cfg: cfg, logger: logger, target: tgt, limiter: limiter, orgs: orgs, roles: roles, events: pub, store: store, metrics: metricsSrv}, nil
}

func (e *engine) Close() {
	if e.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = e.metrics.Shutdown(ctx)
		cancel()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	_ = e.events.Close()
	_ = e.logger.Sync()
}

// loadConfigWithFlags loads config.Config and applies the overrides common
// to every subcommand.
func loadConfigWithFlags(overrides config.FlagOverrides) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	overrides.Apply(cfg)
	return cfg, nil
}

// errCompletedWithFailures signals exit code 1: the job or operation ran to
// completion but recorded at least one row-level (or group-level) failure.
// Unlike the other CLIError constructors this carries no Details/Suggestion
// text of its own — the caller has already printed the summary that
// explains what failed.
func errCompletedWithFailures() error {
	return &cliErrors.CLIError{Code: cliErrors.ErrCodeOperationFailed, Message: "completed with failures", ExitCode: 1}
}
