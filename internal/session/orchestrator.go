package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/devsession/internal/config"
	"github.com/shinji-kodama/devsession/internal/conflict"
	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/model"
	"github.com/shinji-kodama/devsession/internal/process"
)

// takeoverTimeout bounds how long the orchestrator waits for a previous
// session to release the lock after being told to stop.
const takeoverTimeout = 10 * time.Second

// Detector finds pre-existing conflicts. *conflict.Detector implements it.
type Detector interface {
	Detect(ctx context.Context, checks []conflict.PortCheck, sentinel string, expected int) []model.ConflictRecord
}

// Reaper terminates stale processes. *process.Reaper implements it.
type Reaper interface {
	CleanupSession(ctx context.Context, plan process.CleanupPlan) process.CleanupReport
	KillPID(ctx context.Context, pid int) bool
}

// Allocator resolves runtime ports. *port.Allocator implements it.
type Allocator interface {
	ResolveAll(services []model.ServiceDescriptor, fallbacks map[string][]int) []model.ResolvedPort
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Config    *config.Config
	Detector  Detector
	Reaper    Reaper
	Allocator Allocator
	Spawner   Spawner

	// Store guards against concurrent sessions of one project. Nil
	// disables locking and the state file.
	Store *StateStore

	// Exclusive makes a running session a startup fault instead of a
	// conflict to clean up.
	Exclusive bool

	// Environ is the inherited environment. Nil means os.Environ().
	Environ []string

	Logger *log.Logger
}

// Snapshot is a point-in-time copy of the orchestrator's state.
type Snapshot struct {
	SessionID string                 `json:"sessionId,omitempty"`
	State     model.SessionState     `json:"state"`
	Conflicts []model.ConflictRecord `json:"conflicts,omitempty"`
	Ports     []model.ResolvedPort   `json:"ports,omitempty"`
	Children  []model.ChildHandle    `json:"children,omitempty"`
}

// exitEvent is sent by a waiter goroutine when its child exits.
type exitEvent struct {
	index int
	code  int
	err   error
}

// Orchestrator runs one development session through its lifecycle:
//
//	init → conflict-check → (clean | conflicted → cleanup → clean)
//	     → allocating → spawning → running → terminating → stopped
//
// All child handles are owned by the goroutine calling Run; waiter
// goroutines only report exits over a channel. The mutex guards the
// fields Snapshot reads.
type Orchestrator struct {
	deps   Deps
	logger *log.Logger

	mu        sync.Mutex
	state     model.SessionState
	conflicts []model.ConflictRecord
	ports     []model.ResolvedPort
	handles   []model.ChildHandle

	children []Child
	exits    chan exitEvent
	locked   bool
	record   *Record
}

// New creates an Orchestrator in the init state.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if deps.Spawner == nil {
		deps.Spawner = ExecSpawner{}
	}
	return &Orchestrator{
		deps:   deps,
		logger: logger,
		state:  model.StateInit,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() model.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns a copy of the current state, conflicts, ports and
// child handles.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State:     o.state,
		Conflicts: append([]model.ConflictRecord(nil), o.conflicts...),
		Ports:     append([]model.ResolvedPort(nil), o.ports...),
		Children:  append([]model.ChildHandle(nil), o.handles...),
	}
	if o.record != nil {
		snap.SessionID = o.record.ID
	}
	return snap
}

// Run drives the whole lifecycle and returns once the session is
// stopped. A signal on signals or ctx being cancelled stops a running
// session; the signal is forwarded to every live child (SIGTERM for
// cancellation). The only error returns are startup faults.
func (o *Orchestrator) Run(ctx context.Context, signals <-chan os.Signal) error {
	defer o.release()

	conflicts, err := o.CheckConflicts(ctx)
	if err != nil {
		o.transition(model.StateStopped)
		return err
	}

	if len(conflicts) > 0 {
		if err := o.Cleanup(ctx, conflicts); err != nil {
			o.transition(model.StateStopped)
			return err
		}
	}
	o.transition(model.StateClean)

	o.Allocate()
	o.Spawn()
	o.Supervise(ctx, signals)
	return nil
}

// CheckConflicts moves to conflict-check, takes the session lock when a
// store is configured, and runs the detector over every configured port.
// A lock held by another orchestrator becomes a session-active conflict,
// or an ExitSessionActive error when Exclusive is set.
func (o *Orchestrator) CheckConflicts(ctx context.Context) ([]model.ConflictRecord, error) {
	o.transition(model.StateConflictCheck)
	o.logger.Info("checking for existing processes")

	var conflicts []model.ConflictRecord

	if record, err := o.lockSession(); err != nil {
		return nil, err
	} else if record != nil {
		conflicts = append(conflicts, *record)
	}

	cfg := o.deps.Config
	conflicts = append(conflicts,
		o.deps.Detector.Detect(ctx, conflict.Checks(cfg.Services), cfg.Sentinel, cfg.Expected())...)

	o.mu.Lock()
	o.conflicts = conflicts
	o.mu.Unlock()

	if len(conflicts) == 0 {
		o.logger.Info("no conflicts found")
	}
	return conflicts, nil
}

// lockSession takes the session lock. It returns a session-active record
// when another orchestrator holds it.
func (o *Orchestrator) lockSession() (*model.ConflictRecord, error) {
	store := o.deps.Store
	if store == nil {
		return nil, nil
	}

	ok, err := store.TryAcquire()
	if err != nil {
		o.logger.Warn("session lock unavailable, continuing without it", "err", err)
		return nil, nil
	}
	if ok {
		o.locked = true
		return nil, nil
	}

	record := &model.ConflictRecord{Kind: model.ConflictSessionActive}
	if rec, err := store.Load(); err == nil {
		record.PID = rec.PID
	}

	if o.deps.Exclusive {
		return nil, model.NewCLIError(model.ExitSessionActive, record.String())
	}
	o.logger.Warn(record.String())
	return record, nil
}

// Cleanup moves through cleanup: it stops a previous session that holds
// the lock, then runs the reaper over the configured names and ports.
// Cleanup success is assumed unless VerifyCleanup is set, in which case
// detection runs once more and anything left is reported.
func (o *Orchestrator) Cleanup(ctx context.Context, conflicts []model.ConflictRecord) error {
	o.transition(model.StateConflicted)
	o.transition(model.StateCleanup)
	o.logger.Warn("found conflicts, cleaning up", "count", len(conflicts))

	for _, c := range conflicts {
		if c.Kind != model.ConflictSessionActive {
			continue
		}
		if c.PID > 0 {
			o.deps.Reaper.KillPID(ctx, c.PID)
		}
		if err := o.takeOver(ctx); err != nil {
			return err
		}
	}

	cfg := o.deps.Config
	report := o.deps.Reaper.CleanupSession(ctx, process.CleanupPlan{
		Processes: cfg.Cleanup.Processes,
		Ports:     cfg.CleanupPorts(),
	})
	o.logger.Info("cleanup complete",
		"processes", report.NamesKilled, "ports", report.PortsCleared, "containers", report.Containers)

	if cfg.VerifyCleanup {
		remaining := o.deps.Detector.Detect(ctx, conflict.Checks(cfg.Services), cfg.Sentinel, cfg.Expected())
		for _, c := range remaining {
			o.logger.Warn("still present after cleanup", "conflict", c.String())
		}
	}
	return nil
}

// takeOver waits for the previous orchestrator to release the lock.
func (o *Orchestrator) takeOver(ctx context.Context) error {
	if o.deps.Store == nil || o.locked {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, takeoverTimeout)
	defer cancel()

	if err := o.deps.Store.Acquire(waitCtx, 100*time.Millisecond); err != nil {
		return model.WrapCLIError(model.ExitSessionActive, "previous session did not stop", err)
	}
	o.locked = true
	o.logger.Info("previous session stopped")
	return nil
}

// Allocate moves to allocating and resolves every service's port. A
// service whose candidates are all busy is reported and later spawned
// without a PORT override.
func (o *Orchestrator) Allocate() []model.ResolvedPort {
	o.transition(model.StateAllocating)

	cfg := o.deps.Config
	resolved := o.deps.Allocator.ResolveAll(cfg.Services, cfg.FallbackPorts)

	for _, rp := range resolved {
		svc, _ := cfg.Service(rp.Service)
		switch {
		case !rp.IsResolved():
			o.logger.Error("no free port available", "service", svc.DisplayName(), "preferred", rp.Preferred)
		case rp.IsFallback():
			o.logger.Warn(fmt.Sprintf("port %d is in use, using %d", rp.Preferred, rp.Port), "service", svc.DisplayName())
		default:
			o.logger.Debug("port resolved", "service", svc.DisplayName(), "port", rp.Port)
		}
	}

	o.mu.Lock()
	o.ports = resolved
	o.mu.Unlock()
	return resolved
}

// Spawn moves to spawning and launches every service in declaration
// order. A service that fails to start is logged and recorded as failed;
// its siblings are still started.
func (o *Orchestrator) Spawn() []model.ChildHandle {
	o.transition(model.StateSpawning)

	cfg := o.deps.Config
	environ := o.deps.Environ
	if environ == nil {
		environ = os.Environ()
	}

	ports := make(map[string]int)
	o.mu.Lock()
	for _, rp := range o.ports {
		if rp.IsResolved() {
			ports[rp.Service] = rp.Port
		}
	}
	o.mu.Unlock()

	o.exits = make(chan exitEvent, len(cfg.Services))
	handles := make([]model.ChildHandle, 0, len(cfg.Services))

	for _, svc := range cfg.Services {
		handle := model.ChildHandle{Service: svc.Key, Name: svc.DisplayName(), Port: ports[svc.Key]}

		overlay := map[string]string{}
		if handle.Port > 0 {
			overlay["PORT"] = fmt.Sprint(handle.Port)
		}
		spec := SpawnSpec{
			Service: svc.Key,
			Command: svc.Command,
			Args:    svc.Args,
			Dir:     svc.Dir,
			Env:     BuildEnv(environ, cfg.Env, overlay, svc.Env),
		}

		o.logger.Info("starting", "service", handle.Name, "port", handle.Port)
		child, err := o.deps.Spawner.Spawn(spec)
		if err != nil {
			o.logger.Error("failed to start", "service", handle.Name, "err", err)
			handle.State = model.ChildFailed
			handles = append(handles, handle)
			o.children = append(o.children, nil)
			continue
		}

		handle.PID = child.PID()
		handle.State = model.ChildRunning
		handles = append(handles, handle)

		index := len(o.children)
		o.children = append(o.children, child)
		go func() {
			code, err := child.Wait()
			o.exits <- exitEvent{index: index, code: code, err: err}
		}()
	}

	o.mu.Lock()
	o.handles = handles
	o.mu.Unlock()

	o.saveRecord(handles)
	return handles
}

func (o *Orchestrator) saveRecord(handles []model.ChildHandle) {
	if o.deps.Store == nil || !o.locked {
		return
	}

	rec := NewRecord()
	for _, h := range handles {
		if h.State == model.ChildRunning {
			rec.Children = append(rec.Children, ChildRecord{Service: h.Service, PID: h.PID, Port: h.Port})
		}
	}
	if err := o.deps.Store.Save(rec); err != nil {
		o.logger.Warn("could not write session state", "err", err)
		return
	}
	o.mu.Lock()
	o.record = rec
	o.mu.Unlock()
	o.logger.Debug("session state written", "id", rec.ID, "path", o.deps.Store.StatePath())
}

// Supervise moves to running and handles child exits until a signal
// arrives, ctx is cancelled, or no live child remains. A child exiting,
// even with a non-zero code, never affects its siblings.
func (o *Orchestrator) Supervise(ctx context.Context, signals <-chan os.Signal) {
	o.transition(model.StateRunning)

	if o.liveCount() == 0 {
		o.logger.Error("no services are running")
		o.transition(model.StateStopped)
		return
	}
	o.logger.Info("all services started, press Ctrl+C to stop")

	for {
		select {
		case ev := <-o.exits:
			o.handleExit(ev)
			if o.liveCount() == 0 {
				o.logger.Info("all services have exited")
				o.transition(model.StateStopped)
				return
			}

		case sig := <-signals:
			o.terminate(sig)
			return

		case <-ctx.Done():
			o.terminate(syscall.SIGTERM)
			return
		}
	}
}

func (o *Orchestrator) handleExit(ev exitEvent) {
	o.mu.Lock()
	h := &o.handles[ev.index]
	if h.State != model.ChildRunning {
		o.mu.Unlock()
		return
	}
	h.State = model.ChildExited
	h.ExitCode = ev.code
	name := h.Name
	o.mu.Unlock()

	switch {
	case ev.err != nil:
		o.logger.Error("lost track of service", "service", name, "err", ev.err)
	case ev.code != 0:
		o.logger.Error(fmt.Sprintf("exited with code %d", ev.code), "service", name)
	default:
		o.logger.Info("exited", "service", name)
	}
}

// terminate moves to terminating, sends sig once to every live child and
// moves to stopped without waiting for any of them.
func (o *Orchestrator) terminate(sig os.Signal) {
	o.transition(model.StateTerminating)
	o.logger.Info("stopping all services", "signal", sig)

	for i, child := range o.children {
		o.mu.Lock()
		live := child != nil && o.handles[i].IsLive()
		if live {
			o.handles[i].State = model.ChildTerminated
		}
		name := o.handles[i].Name
		o.mu.Unlock()

		if !live {
			continue
		}
		if err := child.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			o.logger.Info("could not signal service", "service", name, "err", err)
		}
	}

	o.transition(model.StateStopped)
}

func (o *Orchestrator) liveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, h := range o.handles {
		if h.IsLive() {
			n++
		}
	}
	return n
}

func (o *Orchestrator) transition(next model.SessionState) {
	o.mu.Lock()
	prev := o.state
	if prev == next {
		o.mu.Unlock()
		return
	}
	if !prev.CanTransitionTo(next) {
		o.logger.Warn("unexpected state transition", "from", prev, "to", next)
	}
	o.state = next
	o.mu.Unlock()

	o.logger.Debug("session state", "from", prev, "to", next)
}

func (o *Orchestrator) release() {
	if o.deps.Store == nil || !o.locked {
		return
	}
	if err := o.deps.Store.Release(); err != nil {
		o.logger.Debug("releasing session lock", "err", err)
	}
	o.locked = false
}
