// compose.go implements the "devsession compose" command.
//
// The compose command is a thin wrapper around docker compose using the
// compose files configured for the dev or prod environment. The clean
// action prunes unused containers, images, networks and volumes through
// the Docker API instead.

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devsession/internal/docker"
	"github.com/shinji-kodama/devsession/internal/model"
)

type composeFlags struct {
	env string
}

// NewComposeCommand creates the "compose" cobra command.
func NewComposeCommand() *cobra.Command {
	flags := &composeFlags{}

	cmd := &cobra.Command{
		Use:   "compose <up|build|down|logs|clean>",
		Short: "Run docker compose with the project's compose files",
		Long: `Run docker compose with the compose files configured for an environment.

  up     build and start the containers (alias: start)
  build  rebuild the images without cache
  down   stop and remove the containers (alias: stop)
  logs   follow container logs
  clean  prune unused containers, images, networks and volumes

Examples:
  devsession compose up
  devsession compose down --env prod
  devsession compose clean`,

		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "build", "down", "logs", "clean", "start", "stop"},

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.env, "env", "e", "dev", "Compose environment: dev or prod")
	return cmd
}

func runCompose(ctx context.Context, actionArg string, flags *composeFlags) error {
	action, err := docker.ParseComposeAction(actionArg)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid compose action", err)
	}
	env, err := model.ParseComposeEnv(flags.env)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --env", err)
	}

	if action == docker.ComposeClean {
		return runPrune(ctx)
	}

	ws, err := openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer ws.Close()

	files := ws.config.ComposeFiles(env)
	ws.logger.Info("running docker compose", "action", action, "env", env, "files", files)

	return docker.RunCompose(ctx, action, docker.ComposeOptions{
		ProjectDir: ws.config.Root,
		Files:      files,
	})
}

func runPrune(ctx context.Context) error {
	cli, err := docker.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	report, err := docker.Prune(ctx, cli)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(report)
		return nil
	}
	fmt.Printf("Removed %d container(s), %d image(s), %d network(s), %d volume(s); reclaimed %s\n",
		report.Containers, report.Images, report.Networks, report.Volumes, formatBytes(report.SpaceReclaimed))
	return nil
}

// formatBytes renders n with a binary unit suffix.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
