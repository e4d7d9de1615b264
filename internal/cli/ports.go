// ports.go implements the "devsession ports" command.
//
// For every service whose preferred port is taken, the ports command
// suggests the first free fallback port. With --strict it exits 4 when a
// service has no free candidate left, which lets scripts fail early.

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devsession/internal/model"
)

type portsFlags struct {
	strict bool
}

// NewPortsCommand creates the "ports" cobra command.
func NewPortsCommand() *cobra.Command {
	flags := &portsFlags{}

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Suggest fallback ports for services whose port is taken",
		Long: `Check every preferred port and suggest the first free fallback for those
that are taken.

Examples:
  devsession ports
  devsession ports --strict`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPorts(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Exit with code 4 when a service has no free port")
	return cmd
}

func runPorts(ctx context.Context, flags *portsFlags) error {
	ws, err := openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg := ws.config
	resolved := ws.allocator().ResolveAll(cfg.Services, cfg.FallbackPorts)

	var exhausted []string
	for _, rp := range resolved {
		if !rp.IsResolved() {
			exhausted = append(exhausted, rp.Service)
		}
	}

	if IsJSONOutput() {
		printJSON(struct {
			Ports []model.ResolvedPort `json:"ports"`
		}{Ports: resolved})
	} else {
		printPortsText(cfg.Services, resolved)
	}

	if flags.strict && len(exhausted) > 0 {
		return model.NewCLIError(model.ExitPortAllocationFailed,
			fmt.Sprintf("no free port for %v", exhausted))
	}
	return nil
}

func printPortsText(services []model.ServiceDescriptor, resolved []model.ResolvedPort) {
	byKey := make(map[string]model.ServiceDescriptor, len(services))
	for _, svc := range services {
		byKey[svc.Key] = svc
	}

	busy := 0
	for _, rp := range resolved {
		if rp.Port == rp.Preferred {
			continue
		}
		busy++
		fmt.Print(warnStyle.Render(FormatSuggestion(byKey[rp.Service], rp.Port)))
	}
	if busy == 0 {
		fmt.Println(okStyle.Render("All preferred ports are available"))
	}
}
