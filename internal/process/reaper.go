package process

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/osproc"
)

// ContainerStopper stops a container by ID. docker.PortOwners implements
// it.
type ContainerStopper interface {
	StopContainer(ctx context.Context, containerID string) error
}

// CleanupPlan is what a session cleanup targets: stale helper processes
// by name, then whatever holds the session's ports.
type CleanupPlan struct {
	Processes []string
	Ports     []int
}

// CleanupReport summarizes a CleanupSession pass.
type CleanupReport struct {
	// NamesKilled lists the process names for which termination was
	// requested.
	NamesKilled []string `json:"namesKilled"`

	// PortsCleared lists the ports whose holders were terminated.
	PortsCleared []int `json:"portsCleared"`

	// Containers is the number of containers stopped.
	Containers int `json:"containers"`
}

// Empty reports whether the pass found nothing to terminate.
func (r CleanupReport) Empty() bool {
	return len(r.NamesKilled) == 0 && len(r.PortsCleared) == 0 && r.Containers == 0
}

// Reaper terminates processes by name, by port, or by pid.
type Reaper struct {
	prims     osproc.Primitives
	inspector *Inspector
	stopper   ContainerStopper
	signal    os.Signal
	self      int
	logger    *log.Logger
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithSignal sets the termination signal. The default is SIGTERM.
func WithSignal(sig os.Signal) ReaperOption {
	return func(r *Reaper) {
		if sig != nil {
			r.signal = sig
		}
	}
}

// WithForce makes the Reaper send SIGKILL instead of SIGTERM.
func WithForce(force bool) ReaperOption {
	return func(r *Reaper) {
		if force {
			r.signal = os.Kill
		}
	}
}

// WithContainerStopper lets KillByPort stop containers that publish the
// port, in addition to terminating listening processes.
func WithContainerStopper(s ContainerStopper) ReaperOption {
	return func(r *Reaper) {
		r.stopper = s
	}
}

// NewReaper creates a Reaper. It never terminates the calling process.
func NewReaper(prims osproc.Primitives, inspector *Inspector, logger *log.Logger, opts ...ReaperOption) *Reaper {
	if logger == nil {
		logger = logging.Discard()
	}
	if inspector == nil {
		inspector = NewInspector(prims, logger)
	}
	r := &Reaper{
		prims:     prims,
		inspector: inspector,
		signal:    syscall.SIGTERM,
		self:      os.Getpid(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// KillByName requests termination of every process named name. It returns
// true when at least one match was found and at least one request went
// out.
func (r *Reaper) KillByName(ctx context.Context, name string) bool {
	procs := r.inspector.Processes(ctx, name)
	if len(procs) == 0 {
		return false
	}

	issued := false
	for _, p := range procs {
		if p.PID == r.self {
			continue
		}
		if r.terminate(p.PID, "name", name) {
			issued = true
		}
	}
	if issued {
		r.logger.Info("terminated processes", "name", name, "count", len(procs))
	}
	return issued
}

// KillByPort requests termination of every process listening on port and,
// when a container stopper is configured, stops containers publishing it.
// It returns true when any of those made progress. A port with no owner
// is a no-op that returns false.
func (r *Reaper) KillByPort(ctx context.Context, port int) bool {
	procs, containers := r.clearPort(ctx, port)
	return procs || containers > 0
}

// KillPID requests termination of a single pid.
func (r *Reaper) KillPID(_ context.Context, pid int) bool {
	if pid <= 0 || pid == r.self {
		return false
	}
	return r.terminate(pid, "pid", pid)
}

// CleanupSession kills plan.Processes by name, then clears plan.Ports.
// Running it when nothing matches is a no-op.
func (r *Reaper) CleanupSession(ctx context.Context, plan CleanupPlan) CleanupReport {
	var report CleanupReport

	for _, name := range plan.Processes {
		if r.KillByName(ctx, name) {
			report.NamesKilled = append(report.NamesKilled, name)
		}
	}

	for _, p := range plan.Ports {
		procs, containers := r.clearPort(ctx, p)
		report.Containers += containers
		if procs || containers > 0 {
			report.PortsCleared = append(report.PortsCleared, p)
		}
	}

	return report
}

// clearPort terminates the processes listening on port and stops the
// containers publishing it.
func (r *Reaper) clearPort(ctx context.Context, port int) (bool, int) {
	procs := false
	for _, pid := range r.inspector.FindOwningProcessIDs(ctx, port) {
		if pid == r.self {
			continue
		}
		if r.terminate(pid, "port", port) {
			procs = true
		}
	}

	containers := r.stopContainers(ctx, port)
	if procs || containers > 0 {
		r.logger.Info("port cleared", "port", port)
	}
	return procs, containers
}

// terminate sends the configured signal to pid. An already-exited target
// counts as success.
func (r *Reaper) terminate(pid int, key string, value any) bool {
	err := r.prims.Terminate(pid, r.signal)
	switch {
	case err == nil:
		r.logger.Debug("termination requested", "pid", pid, key, value, "signal", r.signal)
		return true
	case errors.Is(err, osproc.ErrProcessGone):
		r.logger.Info("process already exited", "pid", pid, key, value)
		return true
	default:
		r.logger.Info("could not terminate process", "pid", pid, key, value, "err", err)
		return false
	}
}

func (r *Reaper) stopContainers(ctx context.Context, port int) int {
	if r.stopper == nil {
		return 0
	}

	stopped := 0
	for _, c := range r.inspector.PortContainers(ctx, port) {
		if err := r.stopper.StopContainer(ctx, c.ContainerID); err != nil {
			r.logger.Info("could not stop container", "container", c.ContainerName, "port", port, "err", err)
			continue
		}
		r.logger.Info("stopped container", "container", c.ContainerName, "port", port)
		stopped++
	}
	return stopped
}
