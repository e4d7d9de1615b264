package session

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// SpawnSpec is everything needed to launch one service.
type SpawnSpec struct {
	Service string
	Command string
	Args    []string
	Dir     string

	// Env is the complete environment of the child.
	Env []string
}

// Child is a launched service process.
type Child interface {
	PID() int

	// Signal delivers sig to the child's whole process group, so the
	// tools a launcher such as npm starts receive it too.
	Signal(sig os.Signal) error

	// Wait blocks until the child exits and returns its exit code.
	Wait() (int, error)
}

// Spawner launches children. ExecSpawner is the real implementation;
// tests substitute fakes.
type Spawner interface {
	Spawn(spec SpawnSpec) (Child, error)
}

// ExecSpawner launches children with os/exec. Standard output and error
// are inherited unless overridden; standard input is never attached,
// since a child in its own process group reading the terminal would be
// stopped by SIGTTIN.
type ExecSpawner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn starts spec in its own process group.
func (s ExecSpawner) Spawn(spec SpawnSpec) (Child, error) {
	// #nosec G204 -- command and args come from the project's own config
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execChild{cmd: cmd}, nil
}

type execChild struct {
	cmd *exec.Cmd
}

func (c *execChild) PID() int {
	return c.cmd.Process.Pid
}

func (c *execChild) Signal(sig os.Signal) error {
	return SignalGroup(c.cmd.Process.Pid, sig)
}

func (c *execChild) Wait() (int, error) {
	err := c.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// BuildEnv overlays each map onto base in order. Existing keys are
// replaced in place; new keys are appended in sorted order so the result
// is deterministic.
func BuildEnv(base []string, overlays ...map[string]string) []string {
	env := make([]string, len(base))
	copy(env, base)

	index := make(map[string]int, len(env))
	for i, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		index[envKey(key)] = i
	}

	for _, overlay := range overlays {
		keys := make([]string, 0, len(overlay))
		for k := range overlay {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			kv := k + "=" + overlay[k]
			if i, ok := index[envKey(k)]; ok {
				env[i] = kv
				continue
			}
			index[envKey(k)] = len(env)
			env = append(env, kv)
		}
	}
	return env
}
