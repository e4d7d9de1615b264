package process

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/model"
	"github.com/shinji-kodama/devsession/internal/osproc"
)

// ContainerSource lists running containers that publish a host port.
// docker.PortOwners implements it.
type ContainerSource interface {
	PortPublishers(ctx context.Context, port int) ([]model.ContainerInfo, error)
}

// Inspector queries the process and socket tables.
type Inspector struct {
	prims      osproc.Primitives
	containers ContainerSource
	logger     *log.Logger
}

// NewInspector creates an Inspector over prims. A nil logger discards
// output.
func NewInspector(prims osproc.Primitives, logger *log.Logger) *Inspector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Inspector{prims: prims, logger: logger}
}

// WithContainers attaches a container source used to attribute ports to
// Docker containers. A nil source disables container lookups.
func (i *Inspector) WithContainers(src ContainerSource) *Inspector {
	i.containers = src
	return i
}

// Processes lists the processes whose executable name equals name.
func (i *Inspector) Processes(ctx context.Context, name string) []model.ProcessInfo {
	procs, err := i.prims.ListProcessesByName(ctx, name)
	if err != nil {
		i.logger.Debug("process listing failed", "name", name, "err", err)
		return nil
	}
	return procs
}

// IsProcessRunning reports whether at least one process named name exists.
func (i *Inspector) IsProcessRunning(ctx context.Context, name string) bool {
	return len(i.Processes(ctx, name)) > 0
}

// CountProcesses returns the number of processes named name.
func (i *Inspector) CountProcesses(ctx context.Context, name string) int {
	return len(i.Processes(ctx, name))
}

// Listeners returns the socket table entries listening on port.
func (i *Inspector) Listeners(ctx context.Context, port int) []model.Listener {
	listeners, err := i.prims.ListListenersByPort(ctx, port)
	if err != nil {
		i.logger.Debug("listener lookup failed", "port", port, "err", err)
		return nil
	}
	return listeners
}

// IsPortHeld reports whether at least one process is listening on port.
func (i *Inspector) IsPortHeld(ctx context.Context, port int) bool {
	return len(i.Listeners(ctx, port)) > 0
}

// FindOwningProcessIDs returns the distinct pids listening on port, in
// ascending order. A port may have several owners.
func (i *Inspector) FindOwningProcessIDs(ctx context.Context, port int) []int {
	return osproc.DedupePIDs(i.Listeners(ctx, port))
}

// PortContainers returns running containers publishing port, or nil when
// no container source is attached.
func (i *Inspector) PortContainers(ctx context.Context, port int) []model.ContainerInfo {
	if i.containers == nil {
		return nil
	}
	containers, err := i.containers.PortPublishers(ctx, port)
	if err != nil {
		i.logger.Debug("container lookup failed", "port", port, "err", err)
		return nil
	}
	return containers
}

// DescribeHolder names whatever holds port, e.g. "node (pid 123)" or
// "container api-1". It returns "" when nothing could be attributed.
func (i *Inspector) DescribeHolder(ctx context.Context, port int) string {
	var parts []string

	for _, l := range i.Listeners(ctx, port) {
		if l.Process != "" {
			parts = append(parts, fmt.Sprintf("%s (pid %d)", l.Process, l.PID))
		} else {
			parts = append(parts, fmt.Sprintf("pid %d", l.PID))
		}
	}
	for _, c := range i.PortContainers(ctx, port) {
		parts = append(parts, "container "+c.ContainerName)
	}

	return strings.Join(dedupeStrings(parts), ", ")
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
