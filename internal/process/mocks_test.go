package process

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/shinji-kodama/devsession/internal/model"
)

// mockPrimitives is a testify mock of osproc.Primitives.
type mockPrimitives struct {
	mock.Mock
}

func (m *mockPrimitives) ListProcessesByName(ctx context.Context, name string) ([]model.ProcessInfo, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProcessInfo), args.Error(1)
}

func (m *mockPrimitives) ListListenersByPort(ctx context.Context, port int) ([]model.Listener, error) {
	args := m.Called(ctx, port)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Listener), args.Error(1)
}

func (m *mockPrimitives) Terminate(pid int, sig os.Signal) error {
	args := m.Called(pid, sig)
	return args.Error(0)
}

func (m *mockPrimitives) CheckPort(port int) (bool, error) {
	args := m.Called(port)
	return args.Bool(0), args.Error(1)
}

// mockContainers is a testify mock of ContainerSource and ContainerStopper.
type mockContainers struct {
	mock.Mock
}

func (m *mockContainers) PortPublishers(ctx context.Context, port int) ([]model.ContainerInfo, error) {
	args := m.Called(ctx, port)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ContainerInfo), args.Error(1)
}

func (m *mockContainers) StopContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}
