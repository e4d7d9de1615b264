// status.go implements the "devsession status" command.
//
// The status command shows the project root and, for each configured
// service, whether its preferred port is free and what holds it otherwise.
// It also lists busy configured ports, the sentinel runtime processes
// currently running, and the session recorded for the project.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devsession/internal/model"
	"github.com/shinji-kodama/devsession/internal/session"
)

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service ports, runtime processes and the running session",
		Long: `Show the port status of every configured service, the sentinel runtime
processes (node by default) and the session running for this project.

Examples:
  devsession status
  devsession status --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}

// serviceStatusJSON is one service row of the status output.
type serviceStatusJSON struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Port        int    `json:"port,omitempty"`
	Available   *bool  `json:"available,omitempty"`
	Holder      string `json:"holder,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

type projectJSON struct {
	Root     string `json:"root"`
	Config   string `json:"config"`
	Worktree bool   `json:"worktree"`
}

type statusJSON struct {
	Project   projectJSON         `json:"project"`
	Services  []serviceStatusJSON `json:"services"`
	BusyPorts []int               `json:"busyPorts"`
	Sentinel  string              `json:"sentinel,omitempty"`
	Processes []model.ProcessInfo `json:"processes"`
	Session   *session.Record     `json:"session,omitempty"`
	Running   bool                `json:"running"`
}

func runStatus(ctx context.Context) error {
	ws, err := openWorkspace(ctx, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg := ws.config
	result := statusJSON{
		Project: projectJSON{
			Root:     ws.project.Root,
			Config:   cfg.Path,
			Worktree: ws.project.Worktree,
		},
		Services:  make([]serviceStatusJSON, 0, len(cfg.Services)),
		BusyPorts: []int{},
		Sentinel:  cfg.Sentinel,
		Processes: []model.ProcessInfo{},
	}

	// Preferred and fallback ports that cannot be bound right now.
	busy := make(map[int]bool)
	for _, p := range ws.scanner.UsedPorts(cfg.AllPorts()) {
		busy[p] = true
		result.BusyPorts = append(result.BusyPorts, p)
	}

	for _, svc := range cfg.Services {
		row := serviceStatusJSON{
			Key:         svc.Key,
			Name:        svc.DisplayName(),
			Port:        svc.Port,
			Description: svc.Description,
			URL:         svc.URL,
		}
		if svc.HasPort() {
			free := !busy[svc.Port] && !ws.inspector.IsPortHeld(ctx, svc.Port)
			row.Available = &free
			if !free {
				row.Holder = ws.inspector.DescribeHolder(ctx, svc.Port)
			}
		}
		result.Services = append(result.Services, row)
	}

	if cfg.Sentinel != "" {
		if procs := ws.inspector.Processes(ctx, cfg.Sentinel); procs != nil {
			result.Processes = procs
		}
	}

	store := ws.stateStore()
	if held, err := store.Held(); err == nil {
		result.Running = held
	}
	rec, err := store.Load()
	switch {
	case err == nil:
		result.Session = rec
	case !errors.Is(err, os.ErrNotExist):
		ws.logger.Warn("could not read session state", "err", err)
	}

	if IsJSONOutput() {
		printJSON(result)
		return nil
	}
	printStatusText(result)
	return nil
}

func printStatusText(s statusJSON) {
	fmt.Println(headingStyle.Render("Project"))
	fmt.Printf("  %s\n", FormatProjectRoot(s.Project.Root, s.Project.Worktree))
	fmt.Printf("  %s\n", mutedStyle.Render(s.Project.Config))
	fmt.Println()

	fmt.Println(headingStyle.Render("Services"))
	for _, row := range s.Services {
		state := portNone
		if row.Available != nil {
			state = portBusy
			if *row.Available {
				state = portFree
			}
		}

		fmt.Printf("  %-20s %-30s %s", row.Name, FormatServiceAddress(model.ServiceDescriptor{Port: row.Port, URL: row.URL}), portLabel(state))
		if row.Holder != "" {
			fmt.Printf(" %s", mutedStyle.Render("("+row.Holder+")"))
		}
		fmt.Println()
		if row.Description != "" {
			fmt.Printf("  %-20s %s\n", "", mutedStyle.Render(row.Description))
		}
	}

	fmt.Printf("  %s %s\n", mutedStyle.Render("busy ports:"), FormatPortsList(s.BusyPorts))

	if s.Sentinel != "" {
		fmt.Println()
		fmt.Println(headingStyle.Render(fmt.Sprintf("%s processes: %d", s.Sentinel, len(s.Processes))))
		for i, p := range s.Processes {
			fmt.Printf("  %d. pid %d\n", i+1, p.PID)
		}
	}

	fmt.Println()
	switch {
	case s.Session != nil && s.Running:
		fmt.Printf("%s %s (pid %d, since %s)\n", okStyle.Render("Session running:"),
			s.Session.ID, s.Session.PID, s.Session.StartedAt.Local().Format("15:04:05"))
		for _, c := range s.Session.Children {
			fmt.Printf("  %-20s pid %-8d %s\n", c.Service, c.PID, FormatPortsList(nonZero(c.Port)))
		}
	case s.Session != nil:
		fmt.Println(warnStyle.Render(`A previous session did not shut down cleanly; run "devsession stop"`))
	case s.Running:
		fmt.Println(okStyle.Render("Session starting"))
	default:
		fmt.Println(mutedStyle.Render("No session running"))
	}
}

func nonZero(p int) []int {
	if p == 0 {
		return nil
	}
	return []int{p}
}
