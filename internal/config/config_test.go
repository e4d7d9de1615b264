package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/devsession/internal/model"
)

// writeFile creates path (and its parents) under dir with content.
func writeFile(t *testing.T, dir, path, content string) string {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestLoad_YAML(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("testdata", "yaml"))
	require.NoError(t, err)

	cfg, err := Load(filepath.Join(root, "devsession.yaml"), "")
	require.NoError(t, err)

	require.Len(t, cfg.Services, 3)
	assert.Equal(t, "frontend", cfg.Services[0].Key, "declaration order is preserved")
	assert.Equal(t, "api", cfg.Services[1].Key)
	assert.Equal(t, "discordBot", cfg.Services[2].Key)

	api := cfg.Services[1]
	assert.Equal(t, "API Server", api.Name)
	assert.Equal(t, 4000, api.Port)
	assert.Equal(t, filepath.Join(root, "apps", "api"), api.Dir)
	assert.Equal(t, "npm", api.Command)
	assert.Equal(t, []string{"run", "dev"}, api.Args)
	assert.Equal(t, map[string]string{"LOG_LEVEL": "debug"}, api.Env)

	bot := cfg.Services[2]
	assert.Equal(t, []string{"run", "bot"}, bot.Args)
	assert.False(t, bot.HasPort())

	assert.Equal(t, model.PortCandidates{Preferred: 4000, Fallbacks: []int{4001, 4002}}, cfg.Candidates("api"))
	assert.Equal(t, map[string]string{"NODE_ENV": "development"}, cfg.Env)
	assert.Equal(t, "node", cfg.Sentinel)
	assert.Equal(t, 3, cfg.Expected())
	assert.True(t, cfg.VerifyCleanup)

	assert.Equal(t, []string{"ts-node"}, cfg.Cleanup.Processes)
	assert.True(t, cfg.Cleanup.StopContainers)
	assert.Equal(t, []int{5173, 5174, 4000, 4001, 4002}, cfg.CleanupPorts())

	assert.Equal(t, DockerOff, cfg.Docker.Mode)
	assert.Equal(t, []string{filepath.Join(root, "compose", "dev.yml")}, cfg.ComposeFiles(model.ComposeDev))
	assert.Equal(t, []string{filepath.Join(root, "docker-compose.yml")}, cfg.ComposeFiles(model.ComposeProd))
}

func TestLoad_JSONWithComments(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("testdata", "legacy"))
	require.NoError(t, err)

	cfg, err := Load(filepath.Join(root, "config", "ports.json"), "")
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root, "config/ports.json lives one level below the project root")
	require.Len(t, cfg.Services, 3)
	assert.Equal(t, []string{"api", "frontend", "discordBot"},
		[]string{cfg.Services[0].Key, cfg.Services[1].Key, cfg.Services[2].Key})
	assert.Equal(t, "http://localhost:4000/graphql", cfg.Services[0].URL)
	assert.Equal(t, []int{5174, 5175}, cfg.FallbackPorts["frontend"])
	assert.Equal(t, []string{"ts-node", "nodemon"}, cfg.Cleanup.Processes)
	assert.Equal(t, DockerAuto, cfg.Docker.Mode)
	assert.Equal(t, filepath.Join(root, "apps", "discord-bot"), cfg.Services[2].Dir)
	assert.Equal(t, "npm", cfg.Services[2].Command)
}

func TestLoad_DevMarkerOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "devsession.yaml", `
services:
  api: {port: 4000, command: node, args: [server.js]}
development:
  env: {NODE_ENV: test, LOG_LEVEL: debug}
`)

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"NODE_ENV": "test", "LOG_LEVEL": "debug"}, cfg.Env)
}

func TestLoad_InheritedLaunchNeedsDir(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, filepath.Join("config", "ports.json"), `{
  // no command and no dir: every service would run "npm run dev" in the root
  "services": {
    "api": {"name": "API Server", "port": 4000},
    "frontend": {"name": "Frontend", "port": 5173, "dir": "apps/frontend"},
  }
}`)

	_, err := Load(path, "")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
	assert.Contains(t, err.Error(), `service "api": dir is required`)
	assert.NotContains(t, err.Error(), `service "frontend"`)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "devsession.yaml"), "")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

func TestLoad_Corrupt(t *testing.T) {
	path := writeFile(t, t.TempDir(), "devsession.yaml", "services: [unclosed")

	_, err := Load(path, "")
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "devsession.yaml", `
services:
  api: {port: 4000, dir: apps/api}
development:
  env: {APP_ENV: dev}
  sentinel: ""
  expectedProcesses: 7
  launch: {command: yarn, args: [dev]}
cleanup:
  processes: []
  ports: [9229]
docker:
  enabled: auto
`)

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"APP_ENV": "dev", "NODE_ENV": "development"}, cfg.Env,
		"unrelated variables keep the development marker")
	assert.Equal(t, "", cfg.Sentinel)
	assert.Equal(t, 7, cfg.Expected())
	assert.Equal(t, "yarn", cfg.Services[0].Command)
	assert.Equal(t, []string{"dev"}, cfg.Services[0].Args)
	assert.Empty(t, cfg.Cleanup.Processes)
	assert.Equal(t, []int{9229}, cfg.CleanupPorts())
	assert.Equal(t, DockerAuto, cfg.Docker.Mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no services",
			yaml:    "services: {}",
			wantErr: "no services configured",
		},
		{
			name:    "fallback for unknown service",
			yaml:    "services: {api: {port: 4000}}\ndevelopment: {fallbackPorts: {web: [3000]}}",
			wantErr: `unknown service "web"`,
		},
		{
			name:    "fallback repeats preferred",
			yaml:    "services: {api: {port: 4000}}\ndevelopment: {fallbackPorts: {api: [4001, 4000]}}",
			wantErr: "port 4000 listed twice",
		},
		{
			name:    "port out of range",
			yaml:    "services: {api: {port: 70000}}",
			wantErr: "out of range",
		},
		{
			name:    "shared preferred port",
			yaml:    "services: {api: {port: 4000}, web: {port: 4000}}",
			wantErr: "share port 4000",
		},
		{
			name:    "bad key",
			yaml:    "services: {1api: {port: 4000}}",
			wantErr: "1api",
		},
		{
			name:    "bad docker mode",
			yaml:    "services: {api: {}}\ndocker: {enabled: sometimes}",
			wantErr: "docker.enabled",
		},
		{
			name:    "duplicate service",
			yaml:    "services:\n  api: {}\n  api: {}",
			wantErr: "api",
		},
		{
			name:    "inherited launch without dir",
			yaml:    "services: {api: {port: 4000}}",
			wantErr: `service "api": dir is required`,
		},
		{
			name:    "unknown compose env",
			yaml:    "services: {api: {}}\ndocker: {composeFiles: {staging: [a.yml]}}",
			wantErr: "staging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), ".yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "apps", "api")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	t.Run("not found", func(t *testing.T) {
		_, err := Find(nested, root)
		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitConfigError, cliErr.Code)
	})

	legacy := writeFile(t, root, filepath.Join("config", "ports.json"), `{"services": {"api": {"port": 4000}}}`)

	t.Run("walks up to the root", func(t *testing.T) {
		found, err := Find(nested, root)
		require.NoError(t, err)
		assert.Equal(t, legacy, found)
	})

	preferred := writeFile(t, root, "devsession.yaml", "services: {api: {port: 4000}}")

	t.Run("yaml wins over ports.json", func(t *testing.T) {
		found, err := Find(root, root)
		require.NoError(t, err)
		assert.Equal(t, preferred, found)
	})

	t.Run("no root searches one directory", func(t *testing.T) {
		_, err := Find(nested, "")
		require.Error(t, err)
	})
}
