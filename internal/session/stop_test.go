package session

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/devsession/internal/model"
)

func TestStop_NoSession(t *testing.T) {
	_, err := Stop(NewStateStore(t.TempDir()), syscall.SIGTERM, nil)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitNoSession, cliErr.Code)
}

func TestStop_HeldWithoutRecord(t *testing.T) {
	dir := t.TempDir()
	owner := NewStateStore(dir)
	ok, err := owner.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer owner.Release()

	_, err = Stop(NewStateStore(dir), syscall.SIGTERM, nil)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
}

func TestStop_StaleSession(t *testing.T) {
	dir := t.TempDir()
	store := NewStateStore(dir)

	// pid 0 children are never alive, so nothing is signalled.
	require.NoError(t, store.Save(&Record{
		ID:       "stale",
		PID:      999999,
		Children: []ChildRecord{{Service: "api", PID: 0, Port: 4000}},
	}))

	result, err := Stop(store, syscall.SIGTERM, nil)
	require.NoError(t, err)
	assert.True(t, result.Stale)
	assert.Equal(t, "stale", result.SessionID)
	assert.Empty(t, result.Children)
	assert.Zero(t, result.OrchestratorPID)

	_, err = store.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
