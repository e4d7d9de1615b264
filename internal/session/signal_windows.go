package session

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// SignalGroup force-kills pid and its descendants with taskkill /T.
// Windows cannot deliver POSIX signals, so sig is ignored.
func SignalGroup(pid int, _ os.Signal) error {
	out, err := exec.CommandContext(context.Background(), "taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil && strings.Contains(strings.ToLower(string(out)), "not found") {
		return os.ErrProcessDone
	}
	return err
}

// signalProcess stops pid. Without POSIX signals the orchestrator cannot
// forward anything, so its whole tree is killed instead.
func signalProcess(pid int, sig os.Signal) error {
	return SignalGroup(pid, sig)
}

// Alive reports whether a process with pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	out, err := exec.Command("tasklist", "/FO", "CSV", "/NH", "/FI", "PID eq "+strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), `"`+strconv.Itoa(pid)+`"`)
}

// envKey normalizes an environment variable name for comparison;
// Windows names are case-insensitive.
func envKey(k string) string {
	return strings.ToUpper(k)
}
