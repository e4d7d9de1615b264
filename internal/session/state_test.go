package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	rec := NewRecord()

	_, err := uuid.Parse(rec.ID)
	assert.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
	assert.False(t, rec.StartedAt.IsZero())
	assert.NotEqual(t, rec.ID, NewRecord().ID)
}

func TestStateStore_SaveLoad(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), ".devsession"))

	_, err := store.Load()
	require.ErrorIs(t, err, os.ErrNotExist)

	rec := &Record{
		ID:        "3f0c9a52-0000-4000-8000-000000000001",
		PID:       321,
		StartedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Children: []ChildRecord{
			{Service: "frontend", PID: 400, Port: 5173},
			{Service: "discordBot", PID: 402},
		},
	}
	require.NoError(t, store.Save(rec))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "session.yaml", entries[0].Name())
}

func TestStateStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewStateStore(dir)
	require.NoError(t, os.WriteFile(store.StatePath(), []byte("children: [unterminated"), 0o644))

	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode session state")
}

func TestStateStore_Lock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	held, err := NewStateStore(dir).Held()
	require.NoError(t, err)
	assert.False(t, held, "missing directory means no session")

	first := NewStateStore(dir)
	ok, err := first.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)

	second := NewStateStore(dir)
	ok, err = second.TryAcquire()
	require.NoError(t, err)
	assert.False(t, ok)

	held, err = second.Held()
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, first.Save(NewRecord()))
	require.NoError(t, first.Release())

	_, err = first.Load()
	assert.ErrorIs(t, err, os.ErrNotExist, "release removes the state file")

	held, err = second.Held()
	require.NoError(t, err)
	assert.False(t, held)

	ok, err = second.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release())
}

func TestStateStore_AcquireWaits(t *testing.T) {
	dir := t.TempDir()

	first := NewStateStore(dir)
	ok, err := first.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = first.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	second := NewStateStore(dir)
	require.NoError(t, second.Acquire(ctx, 10*time.Millisecond))
	require.NoError(t, second.Release())
}

func TestStateStore_AcquireTimeout(t *testing.T) {
	dir := t.TempDir()

	first := NewStateStore(dir)
	ok, err := first.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer first.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, NewStateStore(dir).Acquire(ctx, 10*time.Millisecond))
}

func TestStateStore_RemoveMissing(t *testing.T) {
	assert.NoError(t, NewStateStore(t.TempDir()).Remove())
}
