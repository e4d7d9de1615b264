package model

import (
	"fmt"
	"regexp"
	"strings"
)

// SessionState represents a phase of the session lifecycle.
// The state transitions are:
//
//	init → conflict-check → clean → allocating → spawning → running → terminating → stopped
//	                      ↘ conflicted → cleanup → clean
//
// running may also move straight to stopped when every child has exited.
type SessionState string

const (
	StateInit          SessionState = "init"
	StateConflictCheck SessionState = "conflict-check"
	StateConflicted    SessionState = "conflicted"
	StateCleanup       SessionState = "cleanup"
	StateClean         SessionState = "clean"
	StateAllocating    SessionState = "allocating"
	StateSpawning      SessionState = "spawning"
	StateRunning       SessionState = "running"
	StateTerminating   SessionState = "terminating"

	// StateStopped is terminal. The process hosting the orchestrator
	// exits once it is reached.
	StateStopped SessionState = "stopped"
)

// sessionTransitions lists the legal successor states of each state.
var sessionTransitions = map[SessionState][]SessionState{
	StateInit:          {StateConflictCheck, StateStopped},
	StateConflictCheck: {StateClean, StateConflicted, StateStopped},
	StateConflicted:    {StateCleanup, StateStopped},
	StateCleanup:       {StateClean, StateStopped},
	StateClean:         {StateAllocating, StateStopped},
	StateAllocating:    {StateSpawning, StateStopped},
	StateSpawning:      {StateRunning, StateTerminating, StateStopped},
	StateRunning:       {StateTerminating, StateStopped},
	StateTerminating:   {StateStopped},
}

// String returns the string representation of SessionState.
func (s SessionState) String() string {
	return string(s)
}

// IsValid checks whether the SessionState value is one of the
// predefined lifecycle states.
func (s SessionState) IsValid() bool {
	if s == StateStopped {
		return true
	}
	_, ok := sessionTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s SessionState) IsTerminal() bool {
	return s == StateStopped
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	for _, candidate := range sessionTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ChildState is the liveness state of a spawned service process.
type ChildState string

const (
	// ChildRunning means the process was started and no exit has been
	// observed yet.
	ChildRunning ChildState = "running"

	// ChildExited means the process exited on its own.
	ChildExited ChildState = "exited"

	// ChildTerminated means a termination signal was sent by the
	// orchestrator. Exit confirmation is never awaited.
	ChildTerminated ChildState = "terminated"

	// ChildFailed means the process could not be started at all.
	ChildFailed ChildState = "failed"
)

// String returns the string representation of ChildState.
func (s ChildState) String() string {
	return string(s)
}

// ServiceDescriptor is the static description of one launchable child
// service. Descriptors are created when configuration is loaded and are
// read-only afterwards; the allocator and orchestrator share them.
type ServiceDescriptor struct {
	// Key is the identifier used in configuration (e.g. "api"). Fallback
	// port lists are keyed by it.
	Key string `json:"key" yaml:"key"`

	// Name is the display label (e.g. "API Server").
	Name string `json:"name" yaml:"name"`

	// Command is the executable to launch.
	Command string `json:"command" yaml:"command"`

	// Args are passed to Command unchanged.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Dir is the working directory. Relative paths have already been
	// resolved against the project root by the config loader.
	Dir string `json:"dir" yaml:"dir"`

	// Port is the preferred port. Zero means the service declares no port
	// and skips allocation.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Description is free text shown by the status command.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// URL is an optional address shown by the status command.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Env holds extra variables added to the child's environment.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// DisplayName returns Name, falling back to Key.
func (d *ServiceDescriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Key
}

// HasPort reports whether the service declares a preferred port.
func (d *ServiceDescriptor) HasPort() bool {
	return d.Port > 0
}

// keyRegex validates service keys: letters, digits, '-' and '_', starting
// with a letter.
var keyRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateKey checks if the given string is a valid service key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("service key must not be empty")
	}
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("invalid service key %q: must start with a letter and contain only letters, digits, '-' or '_'", key)
	}
	return nil
}

// ValidatePort checks that port is a usable TCP port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", port)
	}
	return nil
}

// PortCandidates is the ordered set of ports tried for one service:
// the preferred port first, then fallbacks in priority order.
type PortCandidates struct {
	Preferred int   `json:"preferred"`
	Fallbacks []int `json:"fallbacks,omitempty"`
}

// All returns the candidates in checking order.
func (c PortCandidates) All() []int {
	all := make([]int, 0, len(c.Fallbacks)+1)
	if c.Preferred > 0 {
		all = append(all, c.Preferred)
	}
	return append(all, c.Fallbacks...)
}

// ResolvedPort is the port chosen for a service in this session. Once the
// allocation phase is over it is frozen and injected into the child's
// environment; it is never reassigned even if the OS port state changes.
type ResolvedPort struct {
	// Service is the service key.
	Service string `json:"service"`

	// Port is the chosen port, or zero when no candidate was available.
	Port int `json:"port"`

	// Preferred is the port the service asked for.
	Preferred int `json:"preferred"`
}

// IsResolved reports whether a usable port was found.
func (r ResolvedPort) IsResolved() bool {
	return r.Port > 0
}

// IsFallback reports whether the chosen port differs from the preferred one.
func (r ResolvedPort) IsFallback() bool {
	return r.IsResolved() && r.Port != r.Preferred
}

// String returns "service:port" or "service:none".
func (r ResolvedPort) String() string {
	if !r.IsResolved() {
		return r.Service + ":none"
	}
	return fmt.Sprintf("%s:%d", r.Service, r.Port)
}

// ConflictKind tags a ConflictRecord.
type ConflictKind string

const (
	// ConflictPortInUse means a configured port is already held.
	ConflictPortInUse ConflictKind = "port-in-use"

	// ConflictExcessProcesses means more sentinel runtime processes are
	// running than this session will launch, usually the leftovers of a
	// previous session.
	ConflictExcessProcesses ConflictKind = "excess-process-count"

	// ConflictSessionActive means another orchestrator holds the session
	// lock for this project.
	ConflictSessionActive ConflictKind = "session-active"
)

// ConflictRecord is one pre-existing condition found before startup.
// Records are produced by the conflict detector and consumed immediately;
// they are never persisted. Only the fields relevant to Kind are set.
type ConflictRecord struct {
	Kind ConflictKind `json:"kind"`

	// Port and Service are set for ConflictPortInUse. Service is the
	// configured owner of the port, Holder describes what actually holds
	// it when that could be determined.
	Port    int    `json:"port,omitempty"`
	Service string `json:"service,omitempty"`
	Holder  string `json:"holder,omitempty"`

	// Executable, Observed and Expected are set for
	// ConflictExcessProcesses.
	Executable string `json:"executable,omitempty"`
	Observed   int    `json:"observed,omitempty"`
	Expected   int    `json:"expected,omitempty"`

	// PID is set for ConflictSessionActive.
	PID int `json:"pid,omitempty"`
}

// String returns a one-line human-readable description.
func (c ConflictRecord) String() string {
	switch c.Kind {
	case ConflictPortInUse:
		msg := fmt.Sprintf("port %d (%s) is in use", c.Port, c.Service)
		if c.Holder != "" {
			msg += " by " + c.Holder
		}
		return msg
	case ConflictExcessProcesses:
		return fmt.Sprintf("found %d %s processes (expected %d or fewer)", c.Observed, c.Executable, c.Expected)
	case ConflictSessionActive:
		if c.PID > 0 {
			return fmt.Sprintf("another session is active (pid %d)", c.PID)
		}
		return "another session is active"
	default:
		return string(c.Kind)
	}
}

// ChildHandle is the runtime record of one spawned service. It is owned
// exclusively by the orchestrator.
type ChildHandle struct {
	Service  string     `json:"service"`
	Name     string     `json:"name"`
	PID      int        `json:"pid,omitempty"`
	Port     int        `json:"port,omitempty"`
	State    ChildState `json:"state"`
	ExitCode int        `json:"exitCode,omitempty"`
}

// IsLive reports whether the handle still refers to a process that should
// receive a termination signal.
func (h *ChildHandle) IsLive() bool {
	return h.State == ChildRunning
}

// ProcessInfo is one entry of the OS process table.
type ProcessInfo struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
}

// Listener is one entry of the OS socket table: a process listening on a
// port.
type Listener struct {
	Port    int    `json:"port"`
	PID     int    `json:"pid"`
	Process string `json:"process,omitempty"`
}

// ContainerInfo holds runtime information about a Docker container.
// This data is fetched dynamically from the Docker API, not persisted.
type ContainerInfo struct {
	// ContainerID is the unique Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// ServiceName is the Docker Compose service name, if applicable.
	ServiceName string `json:"serviceName,omitempty"`

	// Status is the Docker container state (e.g. "running", "exited").
	Status string `json:"status"`

	// PublishedPorts lists host ports the container publishes.
	PublishedPorts []int `json:"publishedPorts,omitempty"`
}

// ShortID returns the first 12 characters of the container ID.
func (c ContainerInfo) ShortID() string {
	if len(c.ContainerID) > 12 {
		return c.ContainerID[:12]
	}
	return c.ContainerID
}

// ComposeEnv selects which compose file set the compose command uses.
type ComposeEnv string

const (
	ComposeDev  ComposeEnv = "dev"
	ComposeProd ComposeEnv = "prod"
)

// ParseComposeEnv converts a string to a ComposeEnv. An empty string
// means dev.
func ParseComposeEnv(s string) (ComposeEnv, error) {
	switch env := ComposeEnv(strings.ToLower(s)); env {
	case "":
		return ComposeDev, nil
	case ComposeDev, ComposeProd:
		return env, nil
	default:
		return "", fmt.Errorf("invalid compose environment: %q (valid: dev, prod)", s)
	}
}

// ExitCode defines the CLI's process exit codes.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the configuration file is missing or
	// unreadable. This is the only fault that aborts a session.
	ExitConfigError ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitPortAllocationFailed indicates a service has no usable port
	// (only reported by "ports --strict").
	ExitPortAllocationFailed ExitCode = 4

	// ExitSessionActive indicates another session holds the project lock
	// and --exclusive was requested.
	ExitSessionActive ExitCode = 5

	// ExitNoSession indicates "stop" found no session to stop.
	ExitNoSession ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
