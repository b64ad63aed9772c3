package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/audit"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/checkpoint"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/config"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/coordinator"
	cliErrors "github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errors"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/output"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/progress"
)

// ImportCommand starts (or resumes, with --resume) a bulk CSV-to-Target
// import job.
func ImportCommand() *cobra.Command {
	var (
		csvPath           string
		checkpointDir     string
		mode              string
		orgID             string
		chunkSize         int
		workers           int
		concurrency       int
		rate              float64
		dryRun            bool
		requireMembership bool
		resume            bool
		jobID             string
		format            string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Start or resume a bulk user import job",
		Long: `import reads a CSV of users (and optionally org/role assignments), resolves
each row's organization and role through the shared caches, and creates the
corresponding users and memberships on the Target API. Progress is
checkpointed to --checkpoint-dir so an interrupted run can be resumed with
--resume --job-id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, importArgs{
				csvPath: csvPath, checkpointDir: checkpointDir, mode: mode, orgID: orgID,
				chunkSize: chunkSize, workers: workers, concurrency: concurrency, rate: rate,
				dryRun: dryRun, requireMembership: requireMembership, resume: resume, jobID: jobID, format: format,
			})
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the input CSV file (required)")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory to store checkpoint state (overrides config)")
	cmd.Flags().StringVar(&mode, "mode", "single-org", "Organization resolution mode: single-org, multi-org, user-only")
	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization ID (required for single-org mode)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Rows per checkpointed chunk (overrides config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of worker goroutines (overrides config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Per-worker row concurrency (overrides config)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Target API requests per second (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and log rows without calling the Target API")
	cmd.Flags().BoolVar(&requireMembership, "require-membership", true, "Roll back the created user if membership creation fails")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume an existing job instead of starting a new one")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Job ID (required with --resume; generated if omitted on a fresh run)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, json (overrides config)")

	return cmd
}

type importArgs struct {
	csvPath, checkpointDir, mode, orgID, jobID, format string
	chunkSize, workers, concurrency                    int
	rate                                                float64
	dryRun, requireMembership, resume                   bool
}

func runImport(cmd *cobra.Command, a importArgs) error {
	if a.csvPath == "" {
		return cliErrors.NewUsageError("--csv is required")
	}
	if _, err := os.Stat(a.csvPath); err != nil {
		return cliErrors.NewValidationError(fmt.Sprintf("cannot read CSV file: %v", err), "check the --csv path")
	}

	jobMode, err := parseMode(a.mode)
	if err != nil {
		return err
	}
	if jobMode == checkpoint.ModeSingleOrg && a.orgID == "" {
		return cliErrors.NewUsageError("--org-id is required for --mode single-org")
	}
	if a.resume && a.jobID == "" {
		return cliErrors.NewUsageError("--job-id is required with --resume")
	}

	cfg, err := loadConfigWithFlags(config.FlagOverrides{
		ChunkSize: a.chunkSize, Workers: a.workers, Concurrency: a.concurrency,
		DryRun: &a.dryRun, OutputFormat: a.format,
	})
	if err != nil {
		return err
	}
	if a.checkpointDir != "" {
		cfg.CheckpointDir = a.checkpointDir
	}
	if a.rate > 0 {
		cfg.RatePerSecond = a.rate
	}

	jobID := a.jobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	ctx := cmd.Context()
	eng, err := buildEngine(ctx, cfg, jobID)
	if err != nil {
		return err
	}
	defer eng.Close()

	auditLogger := audit.NewLogger(nil)
	startedAt := time.Now()

	opts := coordinator.Options{
		CSVPath:           a.csvPath,
		CheckpointDir:     cfg.CheckpointDir,
		JobID:             jobID,
		Resume:            a.resume,
		ChunkSize:         cfg.ChunkSize,
		Workers:           cfg.Workers,
		Concurrency:       cfg.Concurrency,
		Mode:              jobMode,
		OrgID:             a.orgID,
		RequireMembership: a.requireMembership,
		DryRun:            cfg.DryRun,
	}

	coord := coordinator.New(opts, eng.target, eng.limiter, eng.orgs, eng.roles, eng.logger, eng.events)

	indicator := progress.NewIndicator(os.Stderr, cfg.OutputFormat)
	progressDone := make(chan struct{})
	go reportProgress(coord, indicator, startedAt, progressDone)

	summary, runErr := coord.Run(ctx)
	close(progressDone)

	_ = auditLogger.LogOperation(audit.Operation{
		Type:       "import",
		Command:    strings.Join(os.Args, " "),
		Outcome:    outcomeOf(runErr),
		Duration:   time.Since(startedAt),
		Error:      runErr,
		Parameters: map[string]interface{}{"job_id": jobID, "csv": a.csvPath, "mode": string(jobMode)},
	})

	if eng.store != nil {
		_ = eng.store.UpsertRun(ctx, coord.State())
	}

	if runErr != nil {
		if summary.Total == 0 || (summary.Successes == 0 && eng.target.BreakerState() == gobreaker.StateOpen) {
			return cliErrors.NewServiceUnavailableError("target-api", cfg.TargetEndpoint)
		}
		return cliErrors.NewOperationError(runErr.Error(), "inspect the job's errors.jsonl, fix the Target or the offending rows, then resume with --resume --job-id "+jobID)
	}

	if err := printImportSummary(cfg.OutputFormat, jobID, summary); err != nil {
		return err
	}

	if summary.Failures > 0 {
		return errCompletedWithFailures()
	}
	return nil
}

func parseMode(raw string) (checkpoint.Mode, error) {
	switch checkpoint.Mode(raw) {
	case checkpoint.ModeSingleOrg, checkpoint.ModeMultiOrg, checkpoint.ModeUserOnly:
		return checkpoint.Mode(raw), nil
	default:
		return "", cliErrors.NewUsageError(fmt.Sprintf("unknown --mode %q: must be single-org, multi-org, or user-only", raw))
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func reportProgress(coord *coordinator.Coordinator, indicator *progress.Indicator, startedAt time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			processed, total := coord.Progress()
			elapsed := time.Since(startedAt)
			if indicator.ShouldShow(elapsed) {
				_ = indicator.Update("import", processed, total, elapsed)
			}
		}
	}
}

func printImportSummary(format, jobID string, summary checkpoint.Summary) error {
	if format == "json" {
		return output.PrintJSON(map[string]interface{}{
			"jobId":                jobID,
			"total":                summary.Total,
			"successes":            summary.Successes,
			"failures":             summary.Failures,
			"usersCreated":         summary.UsersCreated,
			"membershipsCreated":   summary.MembershipsCreated,
			"duplicateUsers":       summary.DuplicateUsers,
			"duplicateMemberships": summary.DuplicateMemberships,
			"rolesAssigned":        summary.RolesAssigned,
		})
	}
	return output.PrintTable(
		[]string{"job_id", "total", "successes", "failures", "users_created", "memberships_created"},
		[][]string{{
			jobID,
			fmt.Sprintf("%d", summary.Total),
			fmt.Sprintf("%d", summary.Successes),
			fmt.Sprintf("%d", summary.Failures),
			fmt.Sprintf("%d", summary.UsersCreated),
			fmt.Sprintf("%d", summary.MembershipsCreated),
		}},
	)
}
