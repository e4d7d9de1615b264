package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the raw on-disk configuration. Both the YAML form and the
// JSON-with-comments form decode into it.
type File struct {
	Services    ServiceList `yaml:"services"`
	Development Development `yaml:"development"`
	Cleanup     CleanupFile `yaml:"cleanup"`
	Docker      DockerFile  `yaml:"docker"`
}

// ServiceEntry is one entry of the services mapping.
type ServiceEntry struct {
	Key         string            `yaml:"-"`
	Name        string            `yaml:"name"`
	Port        int               `yaml:"port"`
	Description string            `yaml:"description"`
	URL         string            `yaml:"url"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Dir         string            `yaml:"dir"`
	Env         map[string]string `yaml:"env"`
}

// ServiceList is the services mapping in declaration order. A plain Go
// map would lose the order, and spawn order follows it.
type ServiceList []ServiceEntry

// UnmarshalYAML decodes a mapping node pair by pair.
func (l *ServiceList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: services must be a mapping", node.Line)
	}

	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var entry ServiceEntry
		if err := valueNode.Decode(&entry); err != nil {
			return fmt.Errorf("service %q: %w", keyNode.Value, err)
		}
		if seen[keyNode.Value] {
			return fmt.Errorf("line %d: duplicate service %q", keyNode.Line, keyNode.Value)
		}
		seen[keyNode.Value] = true

		entry.Key = keyNode.Value
		*l = append(*l, entry)
	}
	return nil
}

// Development holds session-wide development settings.
type Development struct {
	FallbackPorts map[string][]int  `yaml:"fallbackPorts"`
	Env           map[string]string `yaml:"env"`

	// Sentinel is the runtime executable counted by conflict detection.
	// Absent means "node"; an explicit empty string disables the count.
	Sentinel *string `yaml:"sentinel"`

	ExpectedProcesses int    `yaml:"expectedProcesses"`
	VerifyCleanup     bool   `yaml:"verifyCleanup"`
	Launch            Launch `yaml:"launch"`
}

// Launch is the default command for services that declare none.
type Launch struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// CleanupFile lists what "cleanup" terminates.
type CleanupFile struct {
	Processes      []string `yaml:"processes"`
	Ports          []int    `yaml:"ports"`
	StopContainers bool     `yaml:"stopContainers"`
}

// DockerFile configures container integration.
type DockerFile struct {
	Enabled      DockerMode          `yaml:"enabled"`
	ComposeFiles map[string][]string `yaml:"composeFiles"`
}

// DockerMode selects whether the Docker daemon is consulted.
type DockerMode string

const (
	// DockerAuto uses Docker when the daemon answers a ping.
	DockerAuto DockerMode = "auto"

	// DockerOn requires Docker.
	DockerOn DockerMode = "true"

	// DockerOff never contacts Docker.
	DockerOff DockerMode = "false"
)

// UnmarshalYAML accepts booleans as well as the string "auto".
func (m *DockerMode) UnmarshalYAML(node *yaml.Node) error {
	switch v := strings.ToLower(strings.TrimSpace(node.Value)); v {
	case "", "auto":
		*m = DockerAuto
	case "true", "yes", "on":
		*m = DockerOn
	case "false", "no", "off":
		*m = DockerOff
	default:
		return fmt.Errorf("line %d: docker.enabled must be auto, true or false, got %q", node.Line, node.Value)
	}
	return nil
}
