package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/client"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/config"
	cliErrors "github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errors"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/output"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/roledefs"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/target"
)

// RolesCommand groups role-related subcommands. Today that's just `apply`,
// which runs C10 against a role-definitions CSV.
func RolesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage Target role definitions",
	}
	cmd.AddCommand(rolesApplyCommand())
	return cmd
}

func rolesApplyCommand() *cobra.Command {
	var (
		csvPath string
		orgID   string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update roles and permissions from a role-definitions CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRolesApply(cmd, csvPath, orgID, format)
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the role-definitions CSV (required)")
	cmd.Flags().StringVar(&orgID, "org-id", "", "Default organization ID for rows that omit one")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, json (overrides config)")

	return cmd
}

func runRolesApply(cmd *cobra.Command, csvPath, orgID, format string) error {
	if csvPath == "" {
		return cliErrors.NewUsageError("--csv is required")
	}
	if _, err := os.Stat(csvPath); err != nil {
		return cliErrors.NewValidationError(fmt.Sprintf("cannot read CSV file: %v", err), "check the --csv path")
	}

	cfg, err := loadConfigWithFlags(config.FlagOverrides{OutputFormat: format})
	if err != nil {
		return err
	}

	defs, err := roledefs.ParseCSV(csvPath)
	if err != nil {
		return cliErrors.NewCsvParseError(err.Error())
	}
	for i := range defs {
		if defs[i].OrgID == "" {
			defs[i].OrgID = orgID
		}
	}

	tgt := target.New(cfg.TargetEndpoint, cfg.TargetAPIKey, cfg.RequestTimeout, client.RetryConfig{
		MaxAttempts: cfg.RetryMaxAttempts, InitialDelay: cfg.RetryInitialDelay, MaxDelay: cfg.RetryMaxDelay, Timeout: cfg.RetryTimeout,
	})
	roleCache := cache.NewRoleCache(tgt, 1000)

	results := roledefs.Process(cmd.Context(), defs, roleCache, tgt)

	failures := 0
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		errMsg := ""
		if r.Err != nil {
			failures++
			errMsg = r.Err.Error()
		}
		rows = append(rows, []string{r.Definition.RoleSlug, r.Definition.OrgID, string(r.Outcome), errMsg})
	}

	if cfg.OutputFormat == "json" || format == "json" {
		if err := output.PrintJSON(results); err != nil {
			return err
		}
	} else if err := output.PrintTable([]string{"role", "org_id", "outcome", "error"}, rows); err != nil {
		return err
	}

	if failures > 0 {
		return errCompletedWithFailures()
	}
	return nil
}
