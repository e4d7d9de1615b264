package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	lockFileName  = "session.lock"
	stateFileName = "session.yaml"
)

// Record is the persisted description of a running session. It is
// written once children are spawned and removed on shutdown.
type Record struct {
	ID        string        `yaml:"id" json:"id"`
	PID       int           `yaml:"pid" json:"pid"`
	StartedAt time.Time     `yaml:"startedAt" json:"startedAt"`
	Children  []ChildRecord `yaml:"children" json:"children"`
}

// ChildRecord is one spawned service in a Record.
type ChildRecord struct {
	Service string `yaml:"service" json:"service"`
	PID     int    `yaml:"pid" json:"pid"`
	Port    int    `yaml:"port,omitempty" json:"port,omitempty"`
}

// NewRecord creates a Record for the current process with a fresh id.
func NewRecord() *Record {
	return &Record{
		ID:        uuid.NewString(),
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// StateStore guards one project's session with an advisory file lock and
// stores its Record next to it. The lock is held for the whole life of
// the orchestrator, so a held lock means a live session; a state file
// without a held lock is left over from a session that died.
type StateStore struct {
	dir  string
	lock *flock.Flock
}

// NewStateStore creates a store in dir. Nothing is touched on disk until
// the lock is acquired.
func NewStateStore(dir string) *StateStore {
	return &StateStore{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}
}

// Dir returns the state directory.
func (s *StateStore) Dir() string { return s.dir }

// StatePath returns the path of the state file.
func (s *StateStore) StatePath() string {
	return filepath.Join(s.dir, stateFileName)
}

// TryAcquire takes the session lock without blocking. It returns false
// when another process holds it.
func (s *StateStore) TryAcquire() (bool, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return false, fmt.Errorf("create state directory: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire session lock: %w", err)
	}
	return ok, nil
}

// Acquire takes the session lock, retrying every retryDelay until ctx is
// done.
func (s *StateStore) Acquire(ctx context.Context, retryDelay time.Duration) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	ok, err := s.lock.TryLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return errors.New("session lock is still held")
	}
	return nil
}

// Held reports whether the session lock is currently held by another
// process. It must not be called by the lock holder itself.
func (s *StateStore) Held() (bool, error) {
	if _, err := os.Stat(s.dir); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	other := flock.New(filepath.Join(s.dir, lockFileName))
	ok, err := other.TryLock()
	if err != nil {
		return false, fmt.Errorf("check session lock: %w", err)
	}
	if ok {
		_ = other.Unlock()
		return false, nil
	}
	return true, nil
}

// Save writes rec atomically.
func (s *StateStore) Save(rec *Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, stateFileName+".*")
	if err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.StatePath()); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// Load reads the state file. A missing file yields an error satisfying
// errors.Is(err, os.ErrNotExist).
func (s *StateStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.StatePath())
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session state %s: %w", s.StatePath(), err)
	}
	return &rec, nil
}

// Remove deletes the state file. A missing file is not an error.
func (s *StateStore) Remove() error {
	if err := os.Remove(s.StatePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Release removes the state file and drops the lock.
func (s *StateStore) Release() error {
	errRemove := s.Remove()
	var errUnlock error
	if s.lock.Locked() {
		errUnlock = s.lock.Unlock()
	}
	return errors.Join(errRemove, errUnlock)
}
