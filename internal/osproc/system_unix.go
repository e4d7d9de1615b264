//go:build !windows

package osproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/shinji-kodama/devsession/internal/model"
)

// ListProcessesByName lists processes whose executable name equals name.
// Linux cuts comm at 15 characters, so longer names are also matched
// against the base name of argv[0].
func (s *System) ListProcessesByName(ctx context.Context, name string) ([]model.ProcessInfo, error) {
	out, err := s.run(ctx, "ps", "-A", "-o", "pid=,comm=")
	if err != nil {
		return nil, fmt.Errorf("ps: %w", err)
	}
	procs := parsePSOutput(out, name)
	if len(name) <= commMaxLen {
		return procs, nil
	}

	out, err = s.run(ctx, "ps", "-A", "-ww", "-o", "pid=,args=")
	if err != nil {
		return nil, fmt.Errorf("ps: %w", err)
	}
	return mergeProcesses(procs, parsePSArgsOutput(out, name)), nil
}

// ListListenersByPort lists processes with a TCP socket listening on port.
// lsof is preferred; on Linux hosts without it, ss is used instead.
func (s *System) ListListenersByPort(ctx context.Context, port int) ([]model.Listener, error) {
	if _, err := s.lookup("lsof"); err == nil {
		out, err := s.run(ctx, "lsof", "-nP", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN", "-Fpc")
		if err != nil {
			return nil, fmt.Errorf("lsof: %w", err)
		}
		return parseLsofOutput(out, port), nil
	}

	if runtime.GOOS == "linux" {
		if _, err := s.lookup("ss"); err == nil {
			out, err := s.run(ctx, "ss", "-H", "-ltnp", "sport", "=", ":"+strconv.Itoa(port))
			if err != nil {
				return nil, fmt.Errorf("ss: %w", err)
			}
			return parseSSOutput(out, port), nil
		}
	}

	return nil, ErrUnsupported
}

// Terminate sends sig to pid. Signals other than syscall.Signal values
// fall back to SIGTERM. A missing process yields ErrProcessGone.
func (s *System) Terminate(pid int, sig os.Signal) error {
	signal, ok := sig.(syscall.Signal)
	if !ok {
		signal = syscall.SIGTERM
	}

	if err := unix.Kill(pid, signal); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return ErrProcessGone
		}
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}
