package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/audit"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/checkpoint"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/config"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/coordinator"
	cliErrors "github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errors"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/progress"
)

// ResumeCommand resumes an interrupted job from its checkpoint. Unlike
// `import --resume`, it fails fast (exit code 2) when no checkpoint exists
// for the given job ID rather than silently starting a fresh job.
func ResumeCommand() *cobra.Command {
	var (
		jobID         string
		checkpointDir string
		format        string
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an in-progress or interrupted import job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd, jobID, checkpointDir, format)
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "Job ID to resume (required)")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory containing the job's checkpoint (overrides config)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, json (overrides config)")

	return cmd
}

func runResume(cmd *cobra.Command, jobID, checkpointDir, format string) error {
	if jobID == "" {
		return cliErrors.NewUsageError("--job-id is required")
	}

	cfg, err := loadConfigWithFlags(config.FlagOverrides{OutputFormat: format})
	if err != nil {
		return err
	}
	if checkpointDir != "" {
		cfg.CheckpointDir = checkpointDir
	}

	jobDir := filepath.Join(cfg.CheckpointDir, jobID)
	if _, err := os.Stat(filepath.Join(jobDir, "checkpoint.json")); err != nil {
		return cliErrors.NewValidationError(
			fmt.Sprintf("no checkpoint found for job %q under %s", jobID, cfg.CheckpointDir),
			"verify --job-id and --checkpoint-dir, or start a new job with import",
		)
	}

	ctx := cmd.Context()
	eng, err := buildEngine(ctx, cfg, jobID)
	if err != nil {
		return err
	}
	defer eng.Close()

	mgr, err := checkpoint.Resume(cfg.CheckpointDir, jobID)
	if err != nil {
		return cliErrors.NewCheckpointError(err.Error())
	}
	state := mgr.State()

	auditLogger := audit.NewLogger(nil)
	startedAt := time.Now()

	opts := coordinator.Options{
		CSVPath:           state.CSVPath,
		CheckpointDir:     cfg.CheckpointDir,
		JobID:             jobID,
		Resume:            true,
		ChunkSize:         state.ChunkSize,
		Workers:           cfg.Workers,
		Concurrency:       state.Concurrency,
		Mode:              state.Mode,
		OrgID:             state.OrgID,
		RequireMembership: cfg.RequireMembership,
		DryRun:            cfg.DryRun,
	}

	coord := coordinator.New(opts, eng.target, eng.limiter, eng.orgs, eng.roles, eng.logger, eng.events)

	indicator := progress.NewIndicator(os.Stderr, cfg.OutputFormat)
	progressDone := make(chan struct{})
	go reportProgress(coord, indicator, startedAt, progressDone)

	summary, runErr := coord.Run(ctx)
	close(progressDone)

	_ = auditLogger.LogOperation(audit.Operation{
		Type:       "resume",
		Command:    strings.Join(os.Args, " "),
		Outcome:    outcomeOf(runErr),
		Duration:   time.Since(startedAt),
		Error:      runErr,
		Parameters: map[string]interface{}{"job_id": jobID},
	})

	if eng.store != nil {
		_ = eng.store.UpsertRun(ctx, coord.State())
	}

	if runErr != nil {
		if summary.Successes == 0 && eng.target.BreakerState() == gobreaker.StateOpen {
			return cliErrors.NewServiceUnavailableError("target-api", cfg.TargetEndpoint)
		}
		return cliErrors.NewOperationError(runErr.Error(), "inspect the job's errors.jsonl and resume again once fixed")
	}

	if err := printImportSummary(cfg.OutputFormat, jobID, summary); err != nil {
		return err
	}
	if summary.Failures > 0 {
		return errCompletedWithFailures()
	}
	return nil
}
