// Package docker is devsession's Docker integration.
//
// It covers three things:
//   - finding the running containers that publish a host port, so a port
//     conflict can name the container holding it (PortOwners)
//   - stopping those containers during cleanup
//   - the compose wrapper (up, build, down, logs) and resource pruning
//
// The Docker Engine SDK (github.com/docker/docker/client) is used for
// queries, stop and prune, with API version negotiation enabled. Compose
// runs through the docker CLI plugin because the SDK has no compose API.
package docker
