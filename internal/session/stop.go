package session

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/model"
)

// StopResult describes what Stop did.
type StopResult struct {
	// SessionID of the stopped session, when a state file existed.
	SessionID string `json:"sessionId,omitempty"`

	// OrchestratorPID is set when a live orchestrator was signalled.
	OrchestratorPID int `json:"orchestratorPid,omitempty"`

	// Stale is true when the session had died and its children were
	// signalled directly.
	Stale bool `json:"stale"`

	// Children lists the child pids signalled directly.
	Children []int `json:"children,omitempty"`
}

// Stop ends the session recorded in store. A live session (lock held) is
// asked to stop by signalling its orchestrator, which then forwards the
// signal to its children. A stale session (state file but no lock) has
// its recorded children signalled directly and the file removed. With no
// session at all, Stop returns a CLIError with ExitNoSession.
func Stop(store *StateStore, sig os.Signal, logger *log.Logger) (StopResult, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if sig == nil {
		sig = syscall.SIGTERM
	}

	held, err := store.Held()
	if err != nil {
		return StopResult{}, err
	}

	rec, err := store.Load()
	switch {
	case errors.Is(err, os.ErrNotExist):
		if held {
			return StopResult{}, model.NewCLIError(model.ExitGeneralError,
				"a session holds the lock but has not written its state yet, try again")
		}
		return StopResult{}, model.NewCLIError(model.ExitNoSession, "no session is running")
	case err != nil:
		return StopResult{}, err
	}

	result := StopResult{SessionID: rec.ID}

	if held {
		if err := signalProcess(rec.PID, sig); err != nil {
			return result, fmt.Errorf("signal orchestrator %d: %w", rec.PID, err)
		}
		result.OrchestratorPID = rec.PID
		logger.Info("asked session to stop", "id", rec.ID, "pid", rec.PID)
		return result, nil
	}

	result.Stale = true
	for _, c := range rec.Children {
		if !Alive(c.PID) {
			continue
		}
		if err := SignalGroup(c.PID, sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Info("could not signal service", "service", c.Service, "pid", c.PID, "err", err)
			continue
		}
		result.Children = append(result.Children, c.PID)
		logger.Info("stopped leftover service", "service", c.Service, "pid", c.PID)
	}

	if err := store.Remove(); err != nil {
		logger.Warn("could not remove stale session state", "err", err)
	}
	return result, nil
}
