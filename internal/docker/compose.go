package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/docker/docker/api/types/filters"

	"github.com/shinji-kodama/devsession/internal/model"
)

// ComposeAction is one of the compose wrapper's verbs.
type ComposeAction string

const (
	ComposeUp    ComposeAction = "up"
	ComposeBuild ComposeAction = "build"
	ComposeDown  ComposeAction = "down"
	ComposeLogs  ComposeAction = "logs"
	ComposeClean ComposeAction = "clean"
)

// ParseComposeAction accepts the wrapper verbs plus "start" and "stop" as
// aliases of up and down.
func ParseComposeAction(s string) (ComposeAction, error) {
	switch a := ComposeAction(strings.ToLower(s)); a {
	case ComposeUp, ComposeBuild, ComposeDown, ComposeLogs, ComposeClean:
		return a, nil
	case "start":
		return ComposeUp, nil
	case "stop":
		return ComposeDown, nil
	default:
		return "", fmt.Errorf("unknown compose action %q (valid: up, build, down, logs, clean)", s)
	}
}

// ComposeOptions controls a compose invocation.
type ComposeOptions struct {
	// ProjectDir is the working directory; compose resolves relative
	// paths in the files against it.
	ProjectDir string

	// Files are passed with -f in order; later files override earlier
	// ones.
	Files []string

	// Stdout and Stderr receive compose's output. Nil means the
	// corresponding stream of this process.
	Stdout io.Writer
	Stderr io.Writer
}

// ComposeArgs returns the docker CLI arguments for action. Clean has no
// compose form and returns nil.
func ComposeArgs(action ComposeAction, files []string) []string {
	args := make([]string, 0, len(files)*2+3)
	args = append(args, "compose")
	for _, f := range files {
		args = append(args, "-f", f)
	}

	switch action {
	case ComposeUp:
		return append(args, "up", "--build")
	case ComposeBuild:
		return append(args, "build", "--no-cache")
	case ComposeDown:
		return append(args, "down")
	case ComposeLogs:
		return append(args, "logs", "-f")
	default:
		return nil
	}
}

// RunCompose runs "docker compose" for action in the foreground with
// output streamed. up and logs run until interrupted; cancelling ctx
// kills the docker process.
func RunCompose(ctx context.Context, action ComposeAction, opts ComposeOptions) error {
	args := ComposeArgs(action, opts.Files)
	if args == nil {
		return fmt.Errorf("compose action %q has no docker compose form", action)
	}

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = opts.ProjectDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("docker %s failed", strings.Join(args, " ")),
			err,
		)
	}
	return nil
}

// PruneReport summarizes a Prune pass.
type PruneReport struct {
	Containers     int    `json:"containers"`
	Images         int    `json:"images"`
	Networks       int    `json:"networks"`
	Volumes        int    `json:"volumes"`
	SpaceReclaimed uint64 `json:"spaceReclaimed"`
}

// Prune removes stopped containers, dangling images, unused networks and
// unused anonymous volumes, in that order.
func Prune(ctx context.Context, cli *Client) (PruneReport, error) {
	var report PruneReport
	none := filters.NewArgs()

	containers, err := cli.Inner().ContainersPrune(ctx, none)
	if err != nil {
		return report, wrapPrune("containers", err)
	}
	report.Containers = len(containers.ContainersDeleted)
	report.SpaceReclaimed += containers.SpaceReclaimed

	images, err := cli.Inner().ImagesPrune(ctx, none)
	if err != nil {
		return report, wrapPrune("images", err)
	}
	report.Images = len(images.ImagesDeleted)
	report.SpaceReclaimed += images.SpaceReclaimed

	networks, err := cli.Inner().NetworksPrune(ctx, none)
	if err != nil {
		return report, wrapPrune("networks", err)
	}
	report.Networks = len(networks.NetworksDeleted)

	volumes, err := cli.Inner().VolumesPrune(ctx, none)
	if err != nil {
		return report, wrapPrune("volumes", err)
	}
	report.Volumes = len(volumes.VolumesDeleted)
	report.SpaceReclaimed += volumes.SpaceReclaimed

	return report, nil
}

func wrapPrune(what string, err error) error {
	return model.WrapCLIError(model.ExitDockerNotRunning, "failed to prune "+what, err)
}
