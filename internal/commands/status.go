package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/checkpoint"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/config"
	cliErrors "github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errors"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/output"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/reportstore"
)

// StatusCommand prints a job's current checkpoint summary without mutating
// anything on disk. With --history it instead lists recent runs from the
// durable reportstore, if one is configured.
func StatusCommand() *cobra.Command {
	var (
		jobID         string
		checkpointDir string
		format        string
		history       bool
		historyLimit  int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a job's checkpoint summary, or recent run history with --history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if history {
				return runStatusHistory(cmd, format, historyLimit)
			}
			return runStatus(jobID, checkpointDir, format)
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "Job ID (required unless --history)")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory containing the job's checkpoint (overrides config)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, json (overrides config)")
	cmd.Flags().BoolVar(&history, "history", false, "List recent runs from the reportstore instead of one job's checkpoint")
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list with --history")

	return cmd
}

func runStatusHistory(cmd *cobra.Command, format string, limit int) error {
	cfg, err := loadConfigWithFlags(config.FlagOverrides{OutputFormat: format})
	if err != nil {
		return err
	}
	if cfg.ReportStoreDSN == "" {
		return cliErrors.NewValidationError("--history requires a reportstore", "set reportstore.dsn in the config file or WORKOS_IMPORT_REPORTSTORE_DSN")
	}

	store, err := reportstore.Open(cmd.Context(), reportstore.Config{
		DSN: cfg.ReportStoreDSN, MaxOpenConns: cfg.ReportStoreMaxOpenConns, MaxIdleConns: cfg.ReportStoreMaxIdleConns,
	})
	if err != nil {
		return cliErrors.NewServiceUnavailableError("reportstore", cfg.ReportStoreDSN)
	}
	defer store.Close()

	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return cliErrors.NewOperationError(fmt.Sprintf("query run history: %v", err), "")
	}

	if cfg.OutputFormat == "json" || format == "json" {
		return output.PrintJSON(runs)
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.JobID, r.Mode, r.Status, fmt.Sprintf("%d", r.Total),
			fmt.Sprintf("%d", r.Successes), fmt.Sprintf("%d", r.Failures), r.StartedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return output.PrintTable([]string{"job_id", "mode", "status", "total", "successes", "failures", "started_at"}, rows)
}

func runStatus(jobID, checkpointDir, format string) error {
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

	mgr, err := checkpoint.Resume(cfg.CheckpointDir, jobID)
	if err != nil {
		return cliErrors.NewValidationError(
			fmt.Sprintf("no checkpoint found for job %q: %v", jobID, err),
			"verify --job-id and --checkpoint-dir",
		)
	}
	state := mgr.State()

	pending, inProgress, completed, failed := 0, 0, 0, 0
	for _, c := range state.Chunks {
		switch c.Status {
		case checkpoint.ChunkPending:
			pending++
		case checkpoint.ChunkInProgress:
			inProgress++
		case checkpoint.ChunkCompleted:
			completed++
		case checkpoint.ChunkFailed:
			failed++
		}
	}

	if cfg.OutputFormat == "json" || format == "json" {
		return output.PrintJSON(map[string]interface{}{
			"jobId":     state.JobID,
			"status":    state.Status,
			"mode":      state.Mode,
			"totalRows": state.TotalRows,
			"summary":   state.Summary,
			"chunks":    map[string]int{"pending": pending, "inProgress": inProgress, "completed": completed, "failed": failed},
			"warnings":  state.Summary.Warnings,
			"updatedAt": state.UpdatedAt,
		})
	}

	return output.PrintTable(
		[]string{"job_id", "status", "total", "successes", "failures", "chunks_pending", "chunks_in_progress", "chunks_completed", "chunks_failed"},
		[][]string{{
			state.JobID, string(state.Status), fmt.Sprintf("%d", state.TotalRows),
			fmt.Sprintf("%d", state.Summary.Successes), fmt.Sprintf("%d", state.Summary.Failures),
			fmt.Sprintf("%d", pending), fmt.Sprintf("%d", inProgress), fmt.Sprintf("%d", completed), fmt.Sprintf("%d", failed),
		}},
	)
}
