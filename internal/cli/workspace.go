package cli

import (
	"context"
	"os"

	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/devsession/internal/config"
	"github.com/shinji-kodama/devsession/internal/conflict"
	"github.com/shinji-kodama/devsession/internal/docker"
	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/osproc"
	"github.com/shinji-kodama/devsession/internal/port"
	"github.com/shinji-kodama/devsession/internal/process"
	"github.com/shinji-kodama/devsession/internal/project"
	"github.com/shinji-kodama/devsession/internal/session"
)

// workspace bundles the project, its configuration and the collaborators
// every command builds from them.
type workspace struct {
	project project.Project
	config  *config.Config
	logger  *log.Logger

	scanner   *port.Scanner
	system    *osproc.System
	inspector *process.Inspector

	// docker is nil when Docker is disabled or not reachable.
	docker *docker.Client
	owners *docker.PortOwners
}

// openWorkspace locates the project from the working directory, loads its
// configuration (or the file named by --config) and wires the OS and
// Docker collaborators. Docker is only contacted when withDocker is set.
func openWorkspace(ctx context.Context, withDocker bool) (*workspace, error) {
	logger := newLogger()

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	proj, err := project.Locate(wd)
	if err != nil {
		return nil, err
	}

	path := configPath
	root := ""
	if path == "" {
		searchRoot := ""
		if proj.InGit {
			searchRoot = proj.Root
		}
		if path, err = config.Find(wd, searchRoot); err != nil {
			return nil, err
		}
		root = proj.Root
	}

	cfg, err := config.Load(path, root)
	if err != nil {
		return nil, err
	}
	if root == "" {
		// An explicit --config decides the project root.
		proj.Root = cfg.Root
		proj.Worktree = project.IsWorktree(cfg.Root)
	}
	logger.Debug("loaded configuration", "path", cfg.Path, "root", cfg.Root, "services", len(cfg.Services))

	ws := &workspace{
		project: proj,
		config:  cfg,
		logger:  logger,
		scanner: port.NewScanner(),
	}
	ws.system = osproc.NewSystem(ws.scanner)
	ws.inspector = process.NewInspector(ws.system, logging.Named(logger, "inspect"))

	if !withDocker {
		return ws, nil
	}
	if err := ws.connectDocker(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

// connectDocker attaches the Docker daemon according to docker.enabled.
// In auto mode an unreachable daemon is not an error.
func (w *workspace) connectDocker(ctx context.Context) error {
	switch w.config.Docker.Mode {
	case config.DockerOff:
		return nil

	case config.DockerOn:
		cli, err := docker.Connect(ctx)
		if err != nil {
			return err
		}
		w.attachDocker(cli)
		return nil

	default:
		cli, err := docker.Connect(ctx)
		if err != nil {
			w.logger.Debug("docker not available, skipping container checks", "err", err)
			return nil
		}
		w.attachDocker(cli)
		return nil
	}
}

func (w *workspace) attachDocker(cli *docker.Client) {
	w.docker = cli
	w.owners = docker.NewPortOwners(cli)
	w.inspector.WithContainers(w.owners)
}

// Close releases the Docker client.
func (w *workspace) Close() {
	_ = w.docker.Close()
}

// reaper builds a Reaper. Containers are only stopped when the
// configuration asks for it and Docker is attached.
func (w *workspace) reaper(force bool) *process.Reaper {
	opts := []process.ReaperOption{process.WithForce(force)}
	if w.config.Cleanup.StopContainers && w.owners != nil {
		opts = append(opts, process.WithContainerStopper(w.owners))
	}
	return process.NewReaper(w.system, w.inspector, logging.Named(w.logger, "reaper"), opts...)
}

func (w *workspace) detector() *conflict.Detector {
	return conflict.NewDetector(w.inspector, w.scanner, logging.Named(w.logger, "conflict"))
}

func (w *workspace) allocator() *port.Allocator {
	return port.NewAllocator(w.scanner, logging.Named(w.logger, "ports"))
}

func (w *workspace) stateStore() *session.StateStore {
	return session.NewStateStore(w.project.StateDir())
}

// cleanupPlan is the configured cleanup target list.
func (w *workspace) cleanupPlan() process.CleanupPlan {
	return process.CleanupPlan{
		Processes: w.config.Cleanup.Processes,
		Ports:     w.config.CleanupPorts(),
	}
}
