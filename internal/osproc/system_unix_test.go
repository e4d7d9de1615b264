//go:build !windows

package osproc

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/devsession/internal/port"
)

// fakeRun records invocations and returns canned output keyed by the full
// command line or, failing that, the command name.
type fakeRun struct {
	outputs map[string][]byte
	calls   []string
}

func (f *fakeRun) run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, line)
	if out, ok := f.outputs[line]; ok {
		return out, nil
	}
	if out, ok := f.outputs[name]; ok {
		return out, nil
	}
	return nil, errors.New("unexpected command " + name)
}

func lookupOnly(available ...string) func(string) (string, error) {
	return func(file string) (string, error) {
		for _, a := range available {
			if a == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestSystem_ListProcessesByName(t *testing.T) {
	f := &fakeRun{outputs: map[string][]byte{"ps": []byte("10 node\n11 bash\n")}}
	s := &System{scanner: port.NewScanner(), run: f.run, lookup: lookupOnly()}

	procs, err := s.ListProcessesByName(context.Background(), "node")
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, 10, procs[0].PID)
	assert.Equal(t, []string{"ps -A -o pid=,comm="}, f.calls)
}

func TestSystem_ListProcessesByName_LongName(t *testing.T) {
	f := &fakeRun{outputs: map[string][]byte{
		"ps -A -o pid=,comm=":     []byte("20 webpack-dev-se\n21 node\n"),
		"ps -A -ww -o pid=,args=": []byte("20 /usr/local/bin/webpack-dev-server --port 5173\n21 node server.js\n"),
	}}
	s := &System{scanner: port.NewScanner(), run: f.run, lookup: lookupOnly()}

	procs, err := s.ListProcessesByName(context.Background(), "webpack-dev-server")
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, 20, procs[0].PID)
	assert.Equal(t, "webpack-dev-server", procs[0].Name)
	assert.Equal(t, []string{"ps -A -o pid=,comm=", "ps -A -ww -o pid=,args="}, f.calls)
}

func TestSystem_ListListenersByPort_Lsof(t *testing.T) {
	f := &fakeRun{outputs: map[string][]byte{"lsof": []byte("p42\ncnode\n")}}
	s := &System{scanner: port.NewScanner(), run: f.run, lookup: lookupOnly("lsof", "ss")}

	listeners, err := s.ListListenersByPort(context.Background(), 4000)
	require.NoError(t, err)
	require.Len(t, listeners, 1)
	assert.Equal(t, 42, listeners[0].PID)
	assert.Equal(t, []string{"lsof -nP -iTCP:4000 -sTCP:LISTEN -Fpc"}, f.calls)
}

func TestSystem_ListListenersByPort_SSFallback(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ss fallback is Linux only")
	}
	f := &fakeRun{outputs: map[string][]byte{
		"ss": []byte(`LISTEN 0 511 0.0.0.0:4000 0.0.0.0:* users:(("node",pid=7,fd=3))` + "\n"),
	}}
	s := &System{scanner: port.NewScanner(), run: f.run, lookup: lookupOnly("ss")}

	listeners, err := s.ListListenersByPort(context.Background(), 4000)
	require.NoError(t, err)
	require.Len(t, listeners, 1)
	assert.Equal(t, 7, listeners[0].PID)
}

func TestSystem_ListListenersByPort_NoTool(t *testing.T) {
	s := &System{scanner: port.NewScanner(), run: (&fakeRun{}).run, lookup: lookupOnly()}

	_, err := s.ListListenersByPort(context.Background(), 4000)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSystem_Terminate(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	s := NewSystem(nil)
	require.NoError(t, s.Terminate(pid, syscall.SIGTERM))

	err := cmd.Wait()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.Equal(t, syscall.SIGTERM, status.Signal())

	assert.ErrorIs(t, s.Terminate(pid, os.Interrupt), ErrProcessGone)
}
