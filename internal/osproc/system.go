package osproc

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/shinji-kodama/devsession/internal/model"
	"github.com/shinji-kodama/devsession/internal/port"
)

var (
	// ErrProcessGone is returned by Terminate when the target process no
	// longer exists. Callers treat it as benign.
	ErrProcessGone = errors.New("process already exited")

	// ErrUnsupported is returned when no query tool exists on this host.
	ErrUnsupported = errors.New("no process inspection tool available")
)

// Primitives abstracts the OS process/socket tables.
type Primitives interface {
	ListProcessesByName(ctx context.Context, name string) ([]model.ProcessInfo, error)
	ListListenersByPort(ctx context.Context, port int) ([]model.Listener, error)
	Terminate(pid int, sig os.Signal) error
	CheckPort(port int) (bool, error)
}

// runFunc executes a command and returns its standard output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// System is the real Primitives implementation for the current OS.
type System struct {
	scanner *port.Scanner
	run     runFunc
	lookup  func(file string) (string, error)
}

// NewSystem creates a System that checks ports with scanner. A nil
// scanner checks on all interfaces.
func NewSystem(scanner *port.Scanner) *System {
	if scanner == nil {
		scanner = port.NewScanner()
	}
	return &System{
		scanner: scanner,
		run:     runCommand,
		lookup:  exec.LookPath,
	}
}

// CheckPort reports whether the port can be bound right now.
func (s *System) CheckPort(p int) (bool, error) {
	return s.scanner.CanBind(p)
}

// runCommand runs name with args and returns stdout. A non-zero exit with
// no output is reported as (nil, nil): lsof and findstr-style tools exit 1
// when nothing matches, which is an empty result, not a failure.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(out) == 0 && len(exitErr.Stderr) == 0 {
			return nil, nil
		}
		return out, err
	}
	return out, nil
}

var _ Primitives = (*System)(nil)
