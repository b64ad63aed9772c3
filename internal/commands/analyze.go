package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/analyzer"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/config"
	cliErrors "github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errors"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/output"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/reportstore"
)

// AnalyzeCommand runs C9 against a job's error log: it normalizes and groups
// the errors, classifies each group's retryability, and optionally writes a
// retry CSV and a JSON report.
func AnalyzeCommand() *cobra.Command {
	var (
		jobID             string
		checkpointDir     string
		includeDuplicates bool
		retryCSVPath      string
		reportPath        string
		format            string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a job's error log and group failures by pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, jobID, checkpointDir, includeDuplicates, retryCSVPath, reportPath, format)
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "Job ID to analyze (required)")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory containing the job's checkpoint (overrides config)")
	cmd.Flags().BoolVar(&includeDuplicates, "include-duplicates", false, "Keep every retryable row in the retry CSV instead of deduplicating by email")
	cmd.Flags().StringVar(&retryCSVPath, "retry-csv", "", "Write a deduplicated retry CSV to this path")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the full JSON report to this path (defaults to stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, json (overrides config)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, jobID, checkpointDir string, includeDuplicates bool, retryCSVPath, reportPath, format string) error {
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

	errorsPath := filepath.Join(cfg.CheckpointDir, jobID, "errors.jsonl")
	if _, err := os.Stat(errorsPath); err != nil {
		return cliErrors.NewValidationError(
			fmt.Sprintf("no error log found for job %q: %v", jobID, err),
			"verify --job-id and --checkpoint-dir point at a job that has run at least one chunk",
		)
	}

	report, err := analyzer.Analyze(errorsPath)
	if err != nil {
		return cliErrors.NewOperationError(err.Error(), "the error log may be corrupt; inspect it directly")
	}

	if retryCSVPath != "" {
		n, err := analyzer.WriteRetryCSV(errorsPath, retryCSVPath, includeDuplicates)
		if err != nil {
			return cliErrors.NewOperationError(fmt.Sprintf("write retry CSV: %v", err), "")
		}
		if !cfg.Quiet {
			fmt.Fprintf(os.Stderr, "wrote %d retryable rows to %s\n", n, retryCSVPath)
		}
	}

	if cfg.ReportStoreDSN != "" {
		if store, err := reportstore.Open(cmd.Context(), reportstore.Config{
			DSN: cfg.ReportStoreDSN, MaxOpenConns: cfg.ReportStoreMaxOpenConns, MaxIdleConns: cfg.ReportStoreMaxIdleConns,
		}); err == nil {
			defer store.Close()
			_ = store.UpsertErrorGroups(cmd.Context(), jobID, report)
		}
	}

	if reportPath != "" {
		f, err := os.OpenFile(reportPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return cliErrors.NewOperationError(fmt.Sprintf("write report: %v", err), "")
		}
		defer f.Close()
		if err := output.NewJSONFormatter(f).WriteSuccess("analyze", report, nil); err != nil {
			return err
		}
	} else if cfg.OutputFormat == "json" || format == "json" {
		if err := output.PrintJSON(report); err != nil {
			return err
		}
	} else {
		rows := make([][]string, 0, len(report.Groups))
		for _, g := range report.Groups {
			rows = append(rows, []string{
				g.ID, string(g.ErrorType), fmt.Sprintf("%d", g.Count), string(g.Severity), fmt.Sprintf("%t", g.Retryable), g.Pattern,
			})
		}
		if err := output.PrintTable([]string{"group_id", "error_type", "count", "severity", "retryable", "pattern"}, rows); err != nil {
			return err
		}
	}

	if report.Retryability.NonRetryable.Count > 0 {
		return errCompletedWithFailures()
	}
	return nil
}
