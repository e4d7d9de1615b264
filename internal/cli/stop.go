// stop.go implements the "devsession stop" command.
//
// The stop command ends the session recorded in the project's state
// directory. A live session is asked to stop by signalling its
// orchestrator; a session that died without cleaning up has its leftover
// services terminated directly.

package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/session"
)

type stopFlags struct {
	// force sends SIGKILL instead of SIGTERM.
	force bool
}

// NewStopCommand creates the "stop" cobra command.
func NewStopCommand() *cobra.Command {
	flags := &stopFlags{}

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running session",
		Long: `Stop the session running for this project.

Exits with code 6 when no session is running.

Examples:
  devsession stop
  devsession stop --force`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Kill instead of asking services to terminate")
	return cmd
}

func runStop(ctx context.Context, flags *stopFlags) error {
	ws, err := openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer ws.Close()

	var sig os.Signal = syscall.SIGTERM
	if flags.force {
		sig = os.Kill
	}

	result, err := session.Stop(ws.stateStore(), sig, logging.Named(ws.logger, "stop"))
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(result)
		return nil
	}

	if result.Stale {
		fmt.Printf("Session %s was no longer running; stopped %d leftover service(s)\n",
			result.SessionID, len(result.Children))
		return nil
	}
	fmt.Printf("Asked session %s (pid %d) to stop\n", result.SessionID, result.OrchestratorPID)
	return nil
}
