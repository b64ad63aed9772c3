// Package coordinator implements C7: the single goroutine that owns the
// shared caches and rate limiter, spawns a fixed pool of worker goroutines,
// and drives them through the checkpoint's chunk queue until the job
// terminates.
package coordinator

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/checkpoint"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/chunkprocessor"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/csvrow"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errorlog"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/events"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/metrics"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/ratelimit"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/rowprocessor"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/target"
)

const breakerSampleInterval = 5 * time.Second

// Options parameterizes one job run.
type Options struct {
	CSVPath           string
	CheckpointDir     string
	JobID             string
	Resume            bool
	ChunkSize         int
	Workers           int
	Concurrency       int
	Mode              checkpoint.Mode
	OrgID             string // single-org mode only
	RequireMembership bool
	DryRun            bool
	UserRoleMapping   map[string][]string
}

// Coordinator owns the job-lifetime shared state: one OrgCache, one
// RoleCache, one rate limiter, and the checkpoint manager that serializes
// chunk assignment across every worker goroutine. The caches are safe for
// concurrent use on their own (internal mutex plus singleflight
// coalescing), so every worker shares the same pointer rather than carrying
// a worker-local cache that gets merged back after each chunk — simpler,
// and it gives coalescing its intended effect across the whole pool instead
// of only within one worker.
type Coordinator struct {
	opts    Options
	target  *target.Client
	limiter *ratelimit.Limiter
	orgs    *cache.OrgCache
	roles   *cache.RoleCache
	logger  *zap.Logger
	events  *events.Publisher

	mgr    *checkpoint.Manager
	errLog *errorlog.Writer

	warnedMu sync.Mutex
	warned   map[string]bool
}

// New builds a Coordinator from its already-constructed dependencies.
func New(opts Options, tgt *target.Client, limiter *ratelimit.Limiter, orgs *cache.OrgCache, roles *cache.RoleCache, logger *zap.Logger, pub *events.Publisher) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		opts:    opts,
		target:  tgt,
		limiter: limiter,
		orgs:    orgs,
		roles:   roles,
		logger:  logger,
		events:  pub,
		warned:  make(map[string]bool),
	}
}

// Run executes loading -> running -> draining -> terminated and returns the
// job's final summary.
func (c *Coordinator) Run(ctx context.Context) (checkpoint.Summary, error) {
	mgr, err := c.load()
	if err != nil {
		return checkpoint.Summary{}, err
	}
	c.mgr = mgr

	errLog, err := errorlog.Open(mgr.ErrorsPath())
	if err != nil {
		return checkpoint.Summary{}, fmt.Errorf("coordinator: open error log: %w", err)
	}
	c.errLog = errLog
	defer errLog.Close()

	c.events.Publish(ctx, events.Event{Type: events.JobStarted, JobID: mgr.JobID(), Timestamp: time.Now().UTC()})

	if err := c.prewarm(ctx); err != nil {
		c.logger.Warn("coordinator: pre-warm failed, caches will fill lazily", zap.Error(err))
	}

	sampleStop := make(chan struct{})
	go c.sampleBreakerState(sampleStop)
	defer close(sampleStop)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workerCount(); i++ {
		workerID := i
		g.Go(func() error { return c.runWorker(gctx, workerID) })
	}
	runErr := g.Wait()

	now := time.Now().UTC()
	if runErr != nil {
		c.events.Publish(ctx, events.Event{Type: events.JobFailed, JobID: mgr.JobID(), Timestamp: now})
	} else {
		c.events.Publish(ctx, events.Event{Type: events.JobCompleted, JobID: mgr.JobID(), Timestamp: now})
	}

	return mgr.State().Summary, runErr
}

// State returns the checkpoint's final state document. Only meaningful after
// Run has returned.
func (c *Coordinator) State() checkpoint.State {
	if c.mgr == nil {
		return checkpoint.State{}
	}
	return c.mgr.State()
}

// Progress returns the rows completed so far and the job's total row count,
// for a caller polling a progress.Indicator while Run executes in another
// goroutine. Safe to call concurrently with Run.
func (c *Coordinator) Progress() (processed, total int) {
	if c.mgr == nil {
		return 0, 0
	}
	state := c.mgr.State()
	return state.Summary.Successes + state.Summary.Failures, state.TotalRows
}

func (c *Coordinator) workerCount() int {
	if c.opts.Workers < 1 {
		return 1
	}
	return c.opts.Workers
}

// load creates a fresh checkpoint or resumes an existing one, per §4.6's
// create/resume contract.
func (c *Coordinator) load() (*checkpoint.Manager, error) {
	if c.opts.Resume {
		mgr, err := checkpoint.Resume(c.opts.CheckpointDir, c.opts.JobID)
		if err != nil {
			return nil, err
		}
		if warning, drifted := mgr.ResumeWarning(c.opts.CSVPath); drifted {
			c.logger.Warn("coordinator: csv drift detected on resume", zap.String("detail", warning))
			_ = mgr.AddWarning(warning)
		}
		mgr.RestoreCache(c.orgs)
		return mgr, nil
	}

	total, err := countDataRows(c.opts.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("coordinator: count rows: %w", err)
	}
	return checkpoint.Create(c.opts.CheckpointDir, checkpoint.CreateOptions{
		JobID:       c.opts.JobID,
		CSVPath:     c.opts.CSVPath,
		TotalRows:   total,
		ChunkSize:   c.opts.ChunkSize,
		Concurrency: c.opts.Concurrency,
		Mode:        c.opts.Mode,
		OrgID:       c.opts.OrgID,
	})
}

func countDataRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	n := 0
	for {
		if _, err := r.Read(); err == io.EOF {
			break
		} else if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// prewarm scans the CSV once for the distinct organizations it references
// and resolves + warms the role cache for each, so the first row of each
// chunk does not pay a cold-cache lookup (§4.7).
func (c *Coordinator) prewarm(ctx context.Context) error {
	if c.opts.Mode == checkpoint.ModeSingleOrg {
		if c.opts.OrgID == "" {
			return nil
		}
		return c.roles.WarmFromOrganization(ctx, c.opts.OrgID)
	}

	f, err := os.Open(c.opts.CSVPath)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	headerRaw, err := reader.Read()
	if err != nil {
		return err
	}
	header := make([]string, len(headerRaw))
	for i, h := range headerRaw {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "﻿")))
	}

	seen := map[string]bool{}
	recordNumber := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		recordNumber++

		row, err := csvrow.Parse(header, record, recordNumber)
		if err != nil {
			continue // a malformed row is the chunk processor's problem, not pre-warm's
		}
		if row.OrgID == "" && row.OrgExternalID == "" {
			continue
		}
		key := row.OrgID + "\x00" + row.OrgExternalID
		if seen[key] {
			continue
		}
		seen[key] = true

		orgID, err := c.orgs.Resolve(ctx, cache.ResolveParams{
			OrgID:         row.OrgID,
			OrgExternalID: row.OrgExternalID,
		})
		if err != nil || orgID == "" {
			continue // unresolved here just means the row processor resolves it cold
		}
		if err := c.roles.WarmFromOrganization(ctx, orgID); err != nil {
			c.logger.Warn("coordinator: role pre-warm failed", zap.String("org_id", orgID), zap.Error(err))
		}
	}
	return nil
}

// runWorker claims chunks until none remain or the context is cancelled.
func (c *Coordinator) runWorker(ctx context.Context, workerID int) error {
	pctx := &rowprocessor.Context{
		OrgID:             c.opts.OrgID,
		RequireMembership: c.opts.RequireMembership,
		DryRun:            c.opts.DryRun,
		UserRoleMapping:   c.opts.UserRoleMapping,
		RateLimiter:       c.limiter,
		OrgCache:          c.orgs,
		RoleCache:         c.roles,
		Target:            c.target,
		ErrorLog:          c.errLog,
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, ok := c.mgr.ClaimNextChunk()
		if !ok {
			return nil
		}

		c.logger.Info("chunk started", zap.Int("chunk_id", chunk.ChunkID), zap.Int("worker_id", workerID))

		result, err := chunkprocessor.Process(ctx, c.opts.CSVPath, chunk.StartRow, chunk.EndRow, c.opts.Concurrency, pctx, c.warnUnknownColumn)
		if err != nil {
			c.logger.Error("chunk failed", zap.Int("chunk_id", chunk.ChunkID), zap.Error(err))
			_ = c.mgr.MarkChunkFailed(chunk.ChunkID)
			c.events.Publish(ctx, events.Event{Type: events.ChunkFailed, JobID: c.mgr.JobID(), ChunkID: &chunk.ChunkID, Timestamp: time.Now().UTC()})
			return fmt.Errorf("coordinator: chunk %d: %w", chunk.ChunkID, err)
		}

		if err := c.mgr.MarkChunkCompleted(chunk.ChunkID, result); err != nil {
			return fmt.Errorf("coordinator: record chunk %d: %w", chunk.ChunkID, err)
		}
		c.events.Publish(ctx, events.Event{Type: events.ChunkCompleted, JobID: c.mgr.JobID(), ChunkID: &chunk.ChunkID, Timestamp: time.Now().UTC()})

		if err := c.mgr.SerializeCache(c.orgs); err != nil {
			c.logger.Warn("coordinator: checkpoint cache snapshot failed", zap.Error(err))
		}
	}
}

func (c *Coordinator) warnUnknownColumn(column string) {
	c.warnedMu.Lock()
	defer c.warnedMu.Unlock()
	if c.warned[column] {
		return
	}
	c.warned[column] = true
	c.logger.Warn("unrecognized csv column", zap.String("column", column))
}

func (c *Coordinator) sampleBreakerState(stop <-chan struct{}) {
	ticker := time.NewTicker(breakerSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			metrics.CircuitBreakerState.WithLabelValues("target-api").Set(breakerStateValue(c.target.BreakerState()))
		}
	}
}

func breakerStateValue(s interface{ String() string }) float64 {
	switch s.String() {
	case "closed":
		return 0
	case "half-open":
		return 1
	default:
		return 2
	}
}
