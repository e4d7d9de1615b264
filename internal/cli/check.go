// check.go implements the "devsession check" command.
//
// The check command reports the conflicts a session start would clean up:
// configured ports already in use and more runtime processes than the
// session would launch. It changes nothing and exits 0 either way.

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devsession/internal/conflict"
	"github.com/shinji-kodama/devsession/internal/model"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report ports and processes that would conflict with a session",
		Long: `Report ports and processes that would conflict with a new session.

Examples:
  devsession check
  devsession check --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context())
		},
	}
}

func runCheck(ctx context.Context) error {
	ws, err := openWorkspace(ctx, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg := ws.config
	conflicts := ws.detector().Detect(ctx, conflict.Checks(cfg.Services), cfg.Sentinel, cfg.Expected())

	held, err := ws.stateStore().Held()
	if err != nil {
		ws.logger.Debug("could not check session lock", "err", err)
	}
	if held {
		active := model.ConflictRecord{Kind: model.ConflictSessionActive}
		if rec, err := ws.stateStore().Load(); err == nil {
			active.PID = rec.PID
		}
		conflicts = append([]model.ConflictRecord{active}, conflicts...)
	}

	if IsJSONOutput() {
		printJSON(struct {
			Conflicts []model.ConflictRecord `json:"conflicts"`
		}{Conflicts: append(make([]model.ConflictRecord, 0, len(conflicts)), conflicts...)})
		return nil
	}

	if len(conflicts) == 0 {
		fmt.Println(okStyle.Render("No conflicts found"))
		return nil
	}

	fmt.Println(warnStyle.Render("Found conflicts:"))
	for _, c := range conflicts {
		fmt.Println(FormatConflict(c))
	}
	fmt.Println()
	fmt.Println(mutedStyle.Render(`Run "devsession cleanup" to fix them, or just start the session.`))
	return nil
}
