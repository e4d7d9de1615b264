// cleanup.go implements the "devsession cleanup" command.
//
// The cleanup command terminates leftover development processes by name
// and frees the session's ports. It is meant to run before a session and
// from package scripts, so it always exits 0; problems are reported but
// never fail the caller.

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type cleanupFlags struct {
	force bool
}

// NewCleanupCommand creates the "cleanup" cobra command.
func NewCleanupCommand() *cobra.Command {
	flags := &cleanupFlags{}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Terminate leftover development processes and free ports",
		Long: `Terminate leftover development processes and free the session's ports.

Processes listed under cleanup.processes are terminated by name first,
then whatever listens on the configured ports. With cleanup.stopContainers
set, Docker containers publishing those ports are stopped too.

This command always exits 0.

Examples:
  devsession cleanup
  devsession cleanup --force`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			runCleanup(cmd.Context(), flags)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Kill instead of asking processes to terminate")
	return cmd
}

func runCleanup(ctx context.Context, flags *cleanupFlags) {
	ws, err := openWorkspace(ctx, true)
	if err != nil {
		printError("cleanup skipped", err)
		return
	}
	defer ws.Close()

	ws.logger.Info("cleaning up development processes")
	report := ws.reaper(flags.force).CleanupSession(ctx, ws.cleanupPlan())

	if IsJSONOutput() {
		printJSON(report)
		return
	}

	if report.Empty() {
		fmt.Println(okStyle.Render("Nothing to clean up"))
		return
	}
	for _, name := range report.NamesKilled {
		fmt.Printf("Terminated %s processes\n", name)
	}
	if len(report.PortsCleared) > 0 {
		fmt.Printf("Freed ports %s\n", FormatPortsList(report.PortsCleared))
	}
	if report.Containers > 0 {
		fmt.Printf("Stopped %d container(s)\n", report.Containers)
	}
	fmt.Println(okStyle.Render("Cleanup complete"))
}
