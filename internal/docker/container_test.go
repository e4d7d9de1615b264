package docker

import (
	"encoding/json"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeContainer builds an API container from the JSON the daemon
// returns for GET /containers/json.
func decodeContainer(t *testing.T, raw string) types.Container {
	t.Helper()
	var c types.Container
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	return c
}

func TestContainerToInfo_ComposeContainer(t *testing.T) {
	c := decodeContainer(t, `{
		"Id": "4f66ad9a0b2e5c8d7e6f5a4b3c2d1e0f",
		"Names": ["/campaign-api-1"],
		"State": "running",
		"Labels": {"com.docker.compose.service": "api"},
		"Ports": [
			{"IP": "0.0.0.0", "PrivatePort": 4000, "PublicPort": 4000, "Type": "tcp"},
			{"IP": "::", "PrivatePort": 4000, "PublicPort": 4000, "Type": "tcp"},
			{"PrivatePort": 9229, "Type": "tcp"}
		]
	}`)

	info := containerToInfo(c)

	assert.Equal(t, "campaign-api-1", info.ContainerName)
	assert.Equal(t, "api", info.ServiceName)
	assert.Equal(t, "running", info.Status)
	assert.Equal(t, []int{4000}, info.PublishedPorts, "IPv4/IPv6 bindings collapse, unpublished ports are dropped")
	assert.Equal(t, "4f66ad9a0b2e", info.ShortID())
}

func TestContainerToInfo_Plain(t *testing.T) {
	c := decodeContainer(t, `{"Id": "abc", "Names": [], "State": "running",
		"Ports": [{"PrivatePort": 80, "PublicPort": 8080, "Type": "tcp"}, {"PrivatePort": 443, "PublicPort": 5432, "Type": "tcp"}]}`)

	info := containerToInfo(c)

	assert.Empty(t, info.ContainerName)
	assert.Empty(t, info.ServiceName)
	assert.Equal(t, []int{5432, 8080}, info.PublishedPorts)
}
