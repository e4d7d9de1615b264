package docker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/shinji-kodama/devsession/internal/model"
)

// composeServiceLabel is set by docker compose on every container it
// creates.
const composeServiceLabel = "com.docker.compose.service"

// PortPublishers returns the running containers that publish host port
// port. The daemon filters server-side with the "publish" filter.
func PortPublishers(ctx context.Context, cli *Client, port int) ([]model.ContainerInfo, error) {
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("publish", strconv.Itoa(port))),
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker containers", err)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// containerToInfo maps an API container to model.ContainerInfo. Names
// lose their leading "/", and published ports are deduplicated since the
// API lists IPv4 and IPv6 bindings separately.
func containerToInfo(c types.Container) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	seen := make(map[int]bool)
	var published []int
	for _, p := range c.Ports {
		public := int(p.PublicPort)
		if public == 0 || seen[public] {
			continue
		}
		seen[public] = true
		published = append(published, public)
	}
	sort.Ints(published)

	return model.ContainerInfo{
		ContainerID:    c.ID,
		ContainerName:  name,
		ServiceName:    c.Labels[composeServiceLabel],
		Status:         c.State,
		PublishedPorts: published,
	}
}

// StopContainer stops a container, letting the daemon apply its default
// grace period before SIGKILL.
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// PortOwners adapts a Client to the process package's ContainerSource and
// ContainerStopper interfaces.
type PortOwners struct {
	cli *Client
}

// NewPortOwners returns a PortOwners backed by cli.
func NewPortOwners(cli *Client) *PortOwners {
	return &PortOwners{cli: cli}
}

// PortPublishers lists running containers publishing port.
func (o *PortOwners) PortPublishers(ctx context.Context, port int) ([]model.ContainerInfo, error) {
	return PortPublishers(ctx, o.cli, port)
}

// StopContainer stops the container with containerID.
func (o *PortOwners) StopContainer(ctx context.Context, containerID string) error {
	return StopContainer(ctx, o.cli, containerID)
}
