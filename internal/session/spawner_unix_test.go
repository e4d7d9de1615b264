//go:build unix

package session

import (
	"bytes"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecSpawner_ExitCodeAndEnv(t *testing.T) {
	var out bytes.Buffer
	sp := ExecSpawner{Stdout: &out, Stderr: &out}

	child, err := sp.Spawn(SpawnSpec{
		Service: "api",
		Command: "sh",
		Args:    []string{"-c", `echo "port=$PORT"; exit 3`},
		Dir:     t.TempDir(),
		Env:     BuildEnv([]string{"PATH=" + os.Getenv("PATH")}, map[string]string{"PORT": "4001"}),
	})
	require.NoError(t, err)
	assert.Positive(t, child.PID())

	code, err := child.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "port=4001\n", out.String())
}

func TestExecSpawner_MissingCommand(t *testing.T) {
	_, err := ExecSpawner{}.Spawn(SpawnSpec{Service: "api", Command: "devsession-no-such-command"})
	assert.Error(t, err)
}

func TestExecSpawner_SignalReachesGroup(t *testing.T) {
	// The shell stands in for a launcher; its sleep must die with it.
	child, err := ExecSpawner{}.Spawn(SpawnSpec{
		Service: "frontend",
		Command: "sh",
		Args:    []string{"-c", "sleep 30 & wait"},
		Env:     []string{"PATH=" + os.Getenv("PATH")},
	})
	require.NoError(t, err)

	pgid, err := syscall.Getpgid(child.PID())
	require.NoError(t, err)
	assert.Equal(t, child.PID(), pgid, "child must lead its own process group")

	done := make(chan int, 1)
	go func() {
		code, _ := child.Wait()
		done <- code
	}()

	require.NoError(t, child.Signal(syscall.SIGTERM))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit after SIGTERM")
	}

	assert.Eventually(t, func() bool {
		return syscall.Kill(-pgid, 0) != nil
	}, 5*time.Second, 20*time.Millisecond, "process group must be empty")
}

func TestSignalGroup_Gone(t *testing.T) {
	child, err := ExecSpawner{}.Spawn(SpawnSpec{Command: "true", Env: []string{"PATH=" + os.Getenv("PATH")}})
	require.NoError(t, err)
	_, _ = child.Wait()

	assert.ErrorIs(t, SignalGroup(child.PID(), syscall.SIGTERM), os.ErrProcessDone)
	assert.False(t, Alive(child.PID()))
}

func TestAlive(t *testing.T) {
	assert.True(t, Alive(os.Getpid()))
	assert.False(t, Alive(0))
	assert.False(t, Alive(-1))
}
