// Command workos-import is the entrypoint for the bulk CSV-to-Target user
// import engine: import, resume, analyze, roles apply, and status.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/commands"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errors"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:   "workos-import",
		Short: "Bulk CSV-to-Target user and membership import engine",
		Long: `workos-import migrates users, organization memberships, and roles from a
CSV file into the Target API, checkpointing progress so an interrupted run
can be resumed without reprocessing completed rows.`,
		Version: fmt.Sprintf("%s (built %s, commit %s)", version, buildTime, gitCommit),
	}

	rootCmd.AddCommand(commands.ImportCommand())
	rootCmd.AddCommand(commands.ResumeCommand())
	rootCmd.AddCommand(commands.AnalyzeCommand())
	rootCmd.AddCommand(commands.RolesCommand())
	rootCmd.AddCommand(commands.StatusCommand())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if cliErr, ok := err.(*errors.CLIError); ok {
			fmt.Fprintf(os.Stderr, "%v\n", cliErr)
			os.Exit(cliErr.ExitCode)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
