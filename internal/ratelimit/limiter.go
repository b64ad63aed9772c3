// Package ratelimit implements C1, the rate limiter the coordinator hosts
// and workers consult before every Target API call.
//
// The primary mechanism is an in-process token bucket (golang.org/x/time/rate)
// sized by ratePerSec/burst, giving FIFO-ish fairness across the goroutines
// that call Acquire concurrently. When a Redis client is configured, the
// limiter additionally enforces a cluster-wide ceiling per window (one second
// by default) using a Redis INCR+EXPIRE counter per window, and degrades to
// "no cluster ceiling" if Redis is unreachable, rather than failing the run.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter gates Target API calls. Acquire blocks until a permit is granted
// or ctx is cancelled.
type Limiter struct {
	local *rate.Limiter

	redis    *redis.Client
	jobID    string
	ceiling  int64
	window   time.Duration
	logger   *zap.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithDistributedCeiling enables the optional Redis-backed cluster-wide
// ceiling. A nil client is accepted and simply disables the ceiling (local
// token bucket still applies) — callers do not need to branch on whether
// Redis is configured.
func WithDistributedCeiling(client *redis.Client, jobID string, ceilingPerWindow int64, window time.Duration) Option {
	return func(l *Limiter) {
		l.redis = client
		l.jobID = jobID
		l.ceiling = ceilingPerWindow
		l.window = window
	}
}

// WithLogger attaches a logger used to report (not fail on) distributed
// ceiling errors.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New builds a Limiter with a local token bucket of the given sustained rate
// and burst size.
func New(ratePerSec float64, burst int, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		local:  rate.NewLimiter(rate.Limit(ratePerSec), burst),
		window: time.Second,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until the caller may issue one Target API call, or returns
// ctx.Err() if the job was cancelled first.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.local.Wait(ctx); err != nil {
		return fmt.Errorf("ratelimit: local wait: %w", err)
	}

	if l.redis == nil {
		return nil
	}

	count, err := l.incrWindow(ctx)
	if err != nil {
		l.logger.Warn("ratelimit: distributed ceiling unavailable, degrading to local-only", zap.Error(err))
		return nil
	}

	if count <= l.ceiling || l.ceiling <= 0 {
		return nil
	}

	// Over the cluster ceiling for this window: wait one full window length
	// and let the caller's next local-bucket wait re-pace it.
	select {
	case <-time.After(l.window):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) key() string {
	secs := int64(l.window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("import:ratelimit:%s:%d", l.jobID, time.Now().Unix()/secs)
}

func (l *Limiter) incrWindow(ctx context.Context) (int64, error) {
	key := l.key()
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ratelimit: incr window: %w", err)
	}
	return incr.Val(), nil
}
