// Package reportstore persists a job's summary and error groups to Postgres
// for historical reporting across runs. It is entirely optional: callers
// that never configure a DSN never import this package's Store into their
// critical path.
package reportstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/analyzer"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/checkpoint"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config mirrors the pool-sizing knobs the rest of this codebase exposes for
// its other dependencies (Redis, Target HTTP client).
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a thin wrapper over *sql.DB for the runs/error_groups tables.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, applies pending goose migrations, and returns a
// ready Store. Returns an error if the DSN is unreachable — callers treat a
// reportstore failure as non-fatal to the import job itself (see
// buildEngine in internal/commands).
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("reportstore: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reportstore: ping: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reportstore: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reportstore: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool. Safe on a nil Store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertRun writes the job's current summary, keyed by job id so repeated
// calls across a resumed job converge on the latest snapshot.
func (s *Store) UpsertRun(ctx context.Context, state checkpoint.State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (job_id, csv_path, csv_hash, mode, status, total, successes, failures, started_at, ended_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			successes = EXCLUDED.successes,
			failures = EXCLUDED.failures,
			ended_at = EXCLUDED.ended_at,
			updated_at = now()`,
		state.JobID, state.CSVPath, state.CSVHash, string(state.Mode), string(state.Status),
		state.Summary.Total, state.Summary.Successes, state.Summary.Failures,
		state.Summary.StartedAt, state.Summary.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("reportstore: upsert run: %w", err)
	}
	return nil
}

// UpsertErrorGroups replaces a job's persisted error groups with the
// analyzer's latest report, so a re-run of "analyze" overwrites stale counts
// rather than accumulating duplicates.
func (s *Store) UpsertErrorGroups(ctx context.Context, jobID string, report *analyzer.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reportstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM error_groups WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("reportstore: clear error groups: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO error_groups (job_id, group_id, pattern, error_type, http_status, count, severity, retryable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("reportstore: prepare error group insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range report.Groups {
		if _, err := stmt.ExecContext(ctx, jobID, g.ID, g.Pattern, string(g.ErrorType), g.HTTPStatus, g.Count, string(g.Severity), g.Retryable); err != nil {
			return fmt.Errorf("reportstore: insert error group %s: %w", g.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reportstore: commit: %w", err)
	}
	return nil
}

// RunSummary is a row of historical run data for the "status --history"
// surface.
type RunSummary struct {
	JobID      string
	Mode       string
	Status     string
	Total      int
	Successes  int
	Failures   int
	StartedAt  time.Time
	EndedAt    *time.Time
}

// RecentRuns returns the most recently started runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, mode, status, total, successes, failures, started_at, ended_at
		FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("reportstore: query recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.JobID, &r.Mode, &r.Status, &r.Total, &r.Successes, &r.Failures, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("reportstore: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
