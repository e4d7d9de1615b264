// start.go implements the "devsession start" command, which
// is also what the bare root command runs.
//
// The start command checks for conflicts, cleans them up, allocates
// ports, launches every configured service and supervises them until
// Ctrl+C. A fatal configuration problem is the only failure; everything
// else is narrated and the session carries on.

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/session"
)

// startFlags holds the flag values for the start command.
type startFlags struct {
	// exclusive refuses to start while another session of the project is
	// running instead of stopping it.
	exclusive bool
}

func bindStartFlags(cmd *cobra.Command, flags *startFlags) {
	cmd.Flags().BoolVar(&flags.exclusive, "exclusive", false,
		"Fail with exit code 5 if a session is already running instead of taking it over")
}

// NewStartCommand creates the "start" cobra command.
func NewStartCommand() *cobra.Command {
	flags := &startFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start every service as one session (default)",
		Long: `Start every configured service as one development session.

Ports and processes left over from an earlier session are cleaned up
first. When a preferred port is still taken, the first free fallback port
is used and passed to the service as PORT. Ctrl+C stops every service.

Examples:
  devsession
  devsession start --exclusive
  devsession start --config config/ports.json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), flags)
		},
	}

	bindStartFlags(cmd, flags)
	return cmd
}

// runStart wires the orchestrator to the project and runs it until the
// session stops.
func runStart(ctx context.Context, flags *startFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Subscribe before anything is spawned so an early Ctrl+C is queued
	// rather than killing the orchestrator outright.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	ws, err := openWorkspace(ctx, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	orch := session.New(session.Deps{
		Config:    ws.config,
		Detector:  ws.detector(),
		Reaper:    ws.reaper(false),
		Allocator: ws.allocator(),
		Spawner:   session.ExecSpawner{},
		Store:     ws.stateStore(),
		Exclusive: flags.exclusive,
		Logger:    logging.Named(ws.logger, "session"),
	})

	if err := orch.Run(ctx, signals); err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(orch.Snapshot())
	}
	return nil
}
