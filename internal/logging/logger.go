// Package logging builds the engine's structured logger.
//
// Purpose:
//
//	Every component logs through one injected *zap.Logger. JobFields and
//	ChunkFields build the job_id and chunk_id/worker_id field sets; the
//	coordinator tags its chunk lifecycle lines with chunk_id (and worker_id
//	on chunk start) and logs a failed chunk at Error, while recoverable
//	problems log at Warn. Row-level failures go to the error log, not the
//	logger, and circuit-breaker transitions are not logged.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	Level  string // debug|info|warn|error
	JSON   bool   // false uses the human-readable console encoder
}

// New builds a *zap.Logger per cfg. An unrecognized Level defaults to info.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = zapcore.InfoLevel
		}
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !cfg.JSON {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zapCfg.Build()
}

// Must is New, panicking on error, for CLI entrypoints where a logger
// failure means the binary cannot usefully run anyway.
func Must(cfg Config) *zap.Logger {
	logger, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return logger
}

// JobFields returns the base fields every job-scoped log line carries.
func JobFields(jobID string) []zap.Field {
	return []zap.Field{zap.String("job_id", jobID)}
}

// ChunkFields extends JobFields with chunk/worker scope.
func ChunkFields(jobID string, chunkID, workerID int) []zap.Field {
	return append(JobFields(jobID), zap.Int("chunk_id", chunkID), zap.Int("worker_id", workerID))
}
