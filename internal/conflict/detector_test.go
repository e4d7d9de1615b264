package conflict

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/devsession/internal/model"
	"github.com/shinji-kodama/devsession/internal/port"
)

// fakeInspector answers from fixed tables.
type fakeInspector struct {
	held    map[int]string
	counts  map[string]int
	queried []int
}

func (f *fakeInspector) IsPortHeld(_ context.Context, p int) bool {
	f.queried = append(f.queried, p)
	_, ok := f.held[p]
	return ok
}

func (f *fakeInspector) CountProcesses(_ context.Context, name string) int {
	return f.counts[name]
}

func (f *fakeInspector) DescribeHolder(_ context.Context, p int) string {
	return f.held[p]
}

type busyChecker map[int]bool

func (b busyChecker) IsAvailable(p int) bool { return !b[p] }

func TestChecks(t *testing.T) {
	services := []model.ServiceDescriptor{
		{Key: "api", Name: "API Server", Port: 4000},
		{Key: "discordBot", Name: "Discord Bot"},
		{Key: "frontend", Port: 5173},
	}

	assert.Equal(t, []PortCheck{
		{Service: "api", Name: "API Server", Port: 4000},
		{Service: "frontend", Name: "frontend", Port: 5173},
	}, Checks(services))
}

func TestDetect_Clean(t *testing.T) {
	d := NewDetector(&fakeInspector{}, busyChecker{}, nil)

	conflicts := d.Detect(context.Background(), []PortCheck{{Service: "api", Name: "API", Port: 4000}}, "node", 3)
	assert.Empty(t, conflicts)
}

func TestDetect_PortAndExcess(t *testing.T) {
	insp := &fakeInspector{
		held:   map[int]string{5173: "node (pid 12)"},
		counts: map[string]int{"node": 5},
	}
	d := NewDetector(insp, busyChecker{}, nil)

	checks := []PortCheck{
		{Service: "api", Name: "API Server", Port: 4000},
		{Service: "frontend", Name: "Frontend", Port: 5173},
	}
	conflicts := d.Detect(context.Background(), checks, "node", 3)

	require.Len(t, conflicts, 2)
	assert.Equal(t, model.ConflictRecord{
		Kind: model.ConflictPortInUse, Port: 5173, Service: "Frontend", Holder: "node (pid 12)",
	}, conflicts[0])
	assert.Equal(t, model.ConflictRecord{
		Kind: model.ConflictExcessProcesses, Executable: "node", Observed: 5, Expected: 3,
	}, conflicts[1])
	assert.Equal(t, []int{4000, 5173}, insp.queried)
}

func TestDetect_CountAtBaselineIsFine(t *testing.T) {
	insp := &fakeInspector{counts: map[string]int{"node": 3}}
	d := NewDetector(insp, nil, nil)

	assert.Empty(t, d.Detect(context.Background(), nil, "node", 3))
	assert.Empty(t, d.Detect(context.Background(), nil, "", 0))
}

func TestDetect_BindCheckerCatchesInvisibleHolder(t *testing.T) {
	d := NewDetector(&fakeInspector{}, busyChecker{4000: true}, nil)

	conflicts := d.Detect(context.Background(), []PortCheck{{Service: "api", Name: "API", Port: 4000}}, "", 0)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 4000, conflicts[0].Port)
	assert.Empty(t, conflicts[0].Holder)
}

func TestDetect_RealListener(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	busy := ln.Addr().(*net.TCPAddr).Port

	d := NewDetector(&fakeInspector{}, port.NewScanner(), nil)
	conflicts := d.Detect(context.Background(), []PortCheck{{Service: "api", Name: "API", Port: busy}}, "", 0)

	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictPortInUse, conflicts[0].Kind)
}
