//go:build unix

package session

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// SignalGroup sends sig to the process group led by pid, falling back to
// pid alone when no such group exists. A missing process is reported as
// os.ErrProcessDone.
func SignalGroup(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		s = syscall.SIGTERM
	}

	err := unix.Kill(-pid, s)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, s)
	}
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// signalProcess sends sig to pid only.
func signalProcess(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		s = syscall.SIGTERM
	}
	return unix.Kill(pid, s)
}

// Alive reports whether a process with pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// envKey normalizes an environment variable name for comparison.
func envKey(k string) string {
	return k
}
