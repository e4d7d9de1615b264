// Package config loads the devsession configuration file.
//
// Two formats are accepted: devsession.yaml (or .yml) and the JSON form
// config/ports.json, which may carry // and /* */ comments. JSON input is
// stripped with github.com/tidwall/jsonc and then decoded by yaml.v3 like
// the YAML form, since JSON is valid YAML and yaml.v3 preserves the order
// of the services mapping.
//
// A missing or unreadable file is the one fatal error of a session; Load
// and Find report it as a model.CLIError with ExitConfigError.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/devsession/internal/model"
)

// SearchPaths are the config locations tried in each directory, in order.
var SearchPaths = []string{
	"devsession.yaml",
	"devsession.yml",
	filepath.Join("config", "ports.json"),
}

const (
	defaultSentinel   = "node"
	defaultLaunchCmd  = "npm"
	devMarkerVariable = "NODE_ENV"
	devMarkerValue    = "development"
)

var (
	defaultLaunchArgs       = []string{"run", "dev"}
	defaultCleanupProcesses = []string{"ts-node", "nodemon"}
	defaultComposeFiles     = map[model.ComposeEnv][]string{
		model.ComposeDev:  {"docker-compose.dev.yml"},
		model.ComposeProd: {"docker-compose.yml"},
	}
)

// Config is the validated, resolved configuration of one project.
type Config struct {
	// Path is the file the configuration was read from.
	Path string

	// Root is the project root; relative service directories and compose
	// files are resolved against it.
	Root string

	// Services in declaration order.
	Services []model.ServiceDescriptor

	// FallbackPorts maps service keys to their fallback candidates.
	FallbackPorts map[string][]int

	// Env is added to every child's environment. It always carries the
	// development-mode marker unless the file overrides it.
	Env map[string]string

	// Sentinel is the executable counted by conflict detection; empty
	// disables the count.
	Sentinel string

	// ExpectedProcesses is the excess-process baseline.
	ExpectedProcesses int

	// VerifyCleanup re-runs conflict detection after cleanup.
	VerifyCleanup bool

	Cleanup CleanupSettings
	Docker  DockerSettings
}

// CleanupSettings lists what a cleanup pass targets.
type CleanupSettings struct {
	Processes      []string
	Ports          []int
	StopContainers bool
}

// DockerSettings configures the container integration.
type DockerSettings struct {
	Mode         DockerMode
	ComposeFiles map[model.ComposeEnv][]string
}

// Find looks for a config file in dir and each parent up to root. When
// root is empty only dir is searched.
func Find(dir, root string) (string, error) {
	dir = filepath.Clean(dir)
	if root != "" {
		root = filepath.Clean(root)
	}

	for {
		for _, rel := range SearchPaths {
			candidate := filepath.Join(dir, rel)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if root == "" || dir == root || parent == dir || !strings.HasPrefix(parent, root) {
			break
		}
		dir = parent
	}

	return "", model.NewCLIError(
		model.ExitConfigError,
		fmt.Sprintf("no configuration file found (searched %s)", strings.Join(SearchPaths, ", ")),
	)
}

// Load reads, validates and resolves the configuration at path. root is
// the project root; when empty the directory containing path is used,
// or its parent for config/ports.json.
func Load(path, root string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("configuration not found: %s", path), err)
		}
		return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("failed to read configuration: %s", path), err)
	}

	file, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("invalid configuration %s", path), err)
	}

	if root == "" {
		root = defaultRoot(path)
	}

	cfg, err := resolve(file, path, root)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("invalid configuration %s", path), err)
	}
	return cfg, nil
}

// Parse decodes configuration bytes. ext selects JSON-with-comments
// handling for ".json" and ".jsonc"; anything else is read as YAML.
func Parse(data []byte, ext string) (*File, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if err := Validate(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks the raw file for errors that would make the session
// ambiguous. All problems are reported together.
func Validate(f *File) error {
	var errs []error

	if len(f.Services) == 0 {
		errs = append(errs, errors.New("no services configured"))
	}

	keys := make(map[string]bool, len(f.Services))
	ports := make(map[int]string)
	for _, svc := range f.Services {
		keys[svc.Key] = true
		if err := model.ValidateKey(svc.Key); err != nil {
			errs = append(errs, err)
		}
		if svc.Port != 0 {
			if err := model.ValidatePort(svc.Port); err != nil {
				errs = append(errs, fmt.Errorf("service %q: %w", svc.Key, err))
			} else if other, dup := ports[svc.Port]; dup {
				errs = append(errs, fmt.Errorf("services %q and %q share port %d", other, svc.Key, svc.Port))
			} else {
				ports[svc.Port] = svc.Key
			}
		}
	}
	for _, svc := range f.Services {
		if svc.Command == "" && svc.Dir == "" {
			errs = append(errs, fmt.Errorf("service %q: dir is required when the service has no command of its own", svc.Key))
		}
	}
	if f.Development.Launch.Command == "" && len(f.Development.Launch.Args) > 0 {
		errs = append(errs, errors.New("development.launch: args given without a command"))
	}

	fallbackKeys := make([]string, 0, len(f.Development.FallbackPorts))
	for key := range f.Development.FallbackPorts {
		fallbackKeys = append(fallbackKeys, key)
	}
	sort.Strings(fallbackKeys)

	for _, key := range fallbackKeys {
		if !keys[key] {
			errs = append(errs, fmt.Errorf("fallbackPorts: unknown service %q", key))
			continue
		}
		seen := make(map[int]bool)
		for _, svc := range f.Services {
			if svc.Key == key && svc.Port != 0 {
				seen[svc.Port] = true
			}
		}
		for _, p := range f.Development.FallbackPorts[key] {
			if err := model.ValidatePort(p); err != nil {
				errs = append(errs, fmt.Errorf("fallbackPorts.%s: %w", key, err))
				continue
			}
			if seen[p] {
				errs = append(errs, fmt.Errorf("fallbackPorts.%s: port %d listed twice", key, p))
			}
			seen[p] = true
		}
	}

	for _, p := range f.Cleanup.Ports {
		if err := model.ValidatePort(p); err != nil {
			errs = append(errs, fmt.Errorf("cleanup.ports: %w", err))
		}
	}

	if f.Development.ExpectedProcesses < 0 {
		errs = append(errs, errors.New("development.expectedProcesses must not be negative"))
	}

	for env := range f.Docker.ComposeFiles {
		if _, err := model.ParseComposeEnv(env); err != nil {
			errs = append(errs, fmt.Errorf("docker.composeFiles: %w", err))
		}
	}

	return errors.Join(errs...)
}

func resolve(f *File, path, root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	cfg := &Config{
		Path:              path,
		Root:              absRoot,
		FallbackPorts:     make(map[string][]int, len(f.Development.FallbackPorts)),
		Env:               map[string]string{devMarkerVariable: devMarkerValue},
		Sentinel:          defaultSentinel,
		ExpectedProcesses: f.Development.ExpectedProcesses,
		VerifyCleanup:     f.Development.VerifyCleanup,
		Cleanup: CleanupSettings{
			Processes:      f.Cleanup.Processes,
			Ports:          f.Cleanup.Ports,
			StopContainers: f.Cleanup.StopContainers,
		},
		Docker: DockerSettings{
			Mode:         f.Docker.Enabled,
			ComposeFiles: make(map[model.ComposeEnv][]string, len(defaultComposeFiles)),
		},
	}

	// The dev marker stays unless the file names it explicitly.
	for k, v := range f.Development.Env {
		cfg.Env[k] = v
	}
	if f.Development.Sentinel != nil {
		cfg.Sentinel = *f.Development.Sentinel
	}
	if cfg.Cleanup.Processes == nil {
		cfg.Cleanup.Processes = defaultCleanupProcesses
	}
	if cfg.Docker.Mode == "" {
		cfg.Docker.Mode = DockerAuto
	}
	for env, files := range defaultComposeFiles {
		cfg.Docker.ComposeFiles[env] = files
	}
	for env, files := range f.Docker.ComposeFiles {
		parsed, _ := model.ParseComposeEnv(env)
		cfg.Docker.ComposeFiles[parsed] = files
	}
	for key, ports := range f.Development.FallbackPorts {
		cfg.FallbackPorts[key] = ports
	}

	launch := f.Development.Launch
	if launch.Command == "" {
		launch = Launch{Command: defaultLaunchCmd, Args: defaultLaunchArgs}
	}

	for _, entry := range f.Services {
		svc := model.ServiceDescriptor{
			Key:         entry.Key,
			Name:        entry.Name,
			Command:     entry.Command,
			Args:        entry.Args,
			Dir:         entry.Dir,
			Port:        entry.Port,
			Description: entry.Description,
			URL:         entry.URL,
			Env:         entry.Env,
		}
		if svc.Command == "" {
			svc.Command = launch.Command
			svc.Args = launch.Args
		}
		switch {
		case svc.Dir == "":
			svc.Dir = absRoot
		case !filepath.IsAbs(svc.Dir):
			svc.Dir = filepath.Join(absRoot, svc.Dir)
		}
		cfg.Services = append(cfg.Services, svc)
	}

	return cfg, nil
}

// defaultRoot derives the project root from the config location.
func defaultRoot(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == "config" && filepath.Base(path) == "ports.json" {
		return filepath.Dir(dir)
	}
	return dir
}

// Service returns the service with the given key.
func (c *Config) Service(key string) (model.ServiceDescriptor, bool) {
	for _, svc := range c.Services {
		if svc.Key == key {
			return svc, true
		}
	}
	return model.ServiceDescriptor{}, false
}

// Candidates returns the port candidate set of the service with key.
func (c *Config) Candidates(key string) model.PortCandidates {
	svc, _ := c.Service(key)
	return model.PortCandidates{Preferred: svc.Port, Fallbacks: c.FallbackPorts[key]}
}

// AllPorts returns every preferred and fallback port in declaration
// order, without duplicates.
func (c *Config) AllPorts() []int {
	seen := make(map[int]bool)
	var ports []int
	for _, svc := range c.Services {
		for _, p := range c.Candidates(svc.Key).All() {
			if p > 0 && !seen[p] {
				seen[p] = true
				ports = append(ports, p)
			}
		}
	}
	return ports
}

// CleanupPorts returns the ports a cleanup pass clears: cleanup.ports
// when set, otherwise every configured port.
func (c *Config) CleanupPorts() []int {
	if len(c.Cleanup.Ports) > 0 {
		return c.Cleanup.Ports
	}
	return c.AllPorts()
}

// Expected returns the excess-process baseline: the configured value, or
// the number of services this session launches.
func (c *Config) Expected() int {
	if c.ExpectedProcesses > 0 {
		return c.ExpectedProcesses
	}
	return len(c.Services)
}

// ComposeFiles returns the compose files for env, resolved against the
// project root.
func (c *Config) ComposeFiles(env model.ComposeEnv) []string {
	files := c.Docker.ComposeFiles[env]
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(c.Root, f)
		}
		out = append(out, f)
	}
	return out
}
