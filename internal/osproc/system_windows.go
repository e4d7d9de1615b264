//go:build windows

package osproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shinji-kodama/devsession/internal/model"
)

// imageName appends ".exe" when name has no extension, so configuration
// can say "node" on every platform.
func imageName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".exe"
}

// ListProcessesByName lists processes whose image name equals name.
func (s *System) ListProcessesByName(ctx context.Context, name string) ([]model.ProcessInfo, error) {
	image := imageName(name)
	out, err := s.run(ctx, "tasklist", "/FO", "CSV", "/NH", "/FI", "IMAGENAME eq "+image)
	if err != nil {
		return nil, fmt.Errorf("tasklist: %w", err)
	}
	return parseTasklistCSV(out, image), nil
}

// ListListenersByPort lists processes with a TCP socket listening on port.
func (s *System) ListListenersByPort(ctx context.Context, port int) ([]model.Listener, error) {
	out, err := s.run(ctx, "netstat", "-ano", "-p", "TCP")
	if err != nil {
		return nil, fmt.Errorf("netstat: %w", err)
	}
	listeners := parseNetstatOutput(out, port)

	v6, err := s.run(ctx, "netstat", "-ano", "-p", "TCPv6")
	if err == nil {
		listeners = append(listeners, parseNetstatOutput(v6, port)...)
	}
	return listeners, nil
}

// Terminate force-kills pid. Windows has no signal delivery to arbitrary
// processes, so sig is ignored.
func (s *System) Terminate(pid int, _ os.Signal) error {
	out, err := s.run(context.Background(), "taskkill", "/F", "/PID", strconv.Itoa(pid))
	if err != nil {
		msg := string(out)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg += string(exitErr.Stderr)
		}
		if strings.Contains(strings.ToLower(msg), "not found") {
			return ErrProcessGone
		}
		return fmt.Errorf("taskkill %d: %w", pid, err)
	}
	return nil
}
