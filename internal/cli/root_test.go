package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/devsession/internal/model"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"start", "stop", "cleanup", "check", "status", "ports", "compose"} {
		assert.Contains(t, names, want)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("json"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.Flags().Lookup("exclusive"), "bare invocation starts a session")
}

// writeConfig writes a one-service configuration using port and returns
// its path.
func writeConfig(t *testing.T, port int) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "devsession.yaml")
	content := "services:\n  api:\n    name: API Server\n    port: " + strconv.Itoa(port) + "\n    command: npm\n    args: [run, dev]\ndocker:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPorts_StrictFailsWhenExhausted(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close()
	busy := l.Addr().(*net.TCPAddr).Port

	path := writeConfig(t, busy)
	t.Cleanup(func() { configPath = "" })

	// NewRootCommand resets the flag variables, so the path goes through
	// the command line only.
	root := NewRootCommand()
	root.SetArgs([]string{"ports", "--strict", "--config", path})
	err = root.Execute()
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitPortAllocationFailed, cliErr.Code)
}

func TestPorts_MissingConfig(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"ports", "--config", filepath.Join(t.TempDir(), "devsession.yaml")})
	t.Cleanup(func() { configPath = "" })

	err := root.Execute()
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

func TestCompose_InvalidAction(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"compose", "restart"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid compose action")
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = orig })

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.Bytes()
	}()

	fn()
	require.NoError(t, w.Close())
	os.Stdout = orig
	return <-done
}

func TestStatus_JSONReportsProjectAndBusyPorts(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close()
	busy := l.Addr().(*net.TCPAddr).Port

	path := writeConfig(t, busy)
	t.Cleanup(func() {
		configPath = ""
		jsonOutput = false
	})

	root := NewRootCommand()
	root.SetArgs([]string{"status", "--json", "--config", path})
	out := captureStdout(t, func() {
		require.NoError(t, root.Execute())
	})

	var got statusJSON
	require.NoError(t, json.Unmarshal(out, &got), string(out))

	assert.Equal(t, filepath.Dir(path), got.Project.Root)
	assert.Equal(t, path, got.Project.Config)
	assert.False(t, got.Project.Worktree, "a temp directory is not a linked worktree")
	assert.Contains(t, got.BusyPorts, busy)

	require.Len(t, got.Services, 1)
	require.NotNil(t, got.Services[0].Available)
	assert.False(t, *got.Services[0].Available)
}
