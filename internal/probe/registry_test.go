package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/target"
)

type fakeProbe struct {
	kind      cfg.ContainerType
	available bool
	pid       int
	found     bool
	err       error
}

func (f fakeProbe) Type() cfg.ContainerType { return f.kind }
func (f fakeProbe) Available() bool         { return f.available }
func (f fakeProbe) Resolve(context.Context, string) (target.Process, bool, error) {
	if f.err != nil {
		return target.Process{}, false, f.err
	}
	if !f.found {
		return target.Process{}, false, nil
	}
	return target.Process{PID: f.pid, ContainerType: f.kind}, true, nil
}

func newTestRegistry(probes ...Probe) *Registry {
	r := &Registry{probes: map[cfg.ContainerType]Probe{}}
	for _, p := range probes {
		r.Register(p)
	}
	return r
}

func TestResolveReturnsSingleMatch(t *testing.T) {
	r := newTestRegistry(fakeProbe{kind: cfg.ContainerTypeDocker, available: true, found: true, pid: 42})
	proc, err := r.Resolve(context.Background(), "web", nil)
	require.NoError(t, err)
	require.Equal(t, 42, proc.PID)
}

func TestResolveNotFound(t *testing.T) {
	r := newTestRegistry(fakeProbe{kind: cfg.ContainerTypeDocker, available: true, found: false})
	_, err := r.Resolve(context.Background(), "web", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "NOT_FOUND")
}

func TestResolveAmbiguousAcrossRuntimes(t *testing.T) {
	r := newTestRegistry(
		fakeProbe{kind: cfg.ContainerTypeDocker, available: true, found: true, pid: 1},
		fakeProbe{kind: cfg.ContainerTypeContainerd, available: true, found: true, pid: 2},
	)
	_, err := r.Resolve(context.Background(), "web", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "AMBIGUOUS")
}

func TestResolveAgreeingRuntimesIsNotAmbiguous(t *testing.T) {
	r := newTestRegistry(
		fakeProbe{kind: cfg.ContainerTypeDocker, available: true, found: true, pid: 7},
		fakeProbe{kind: cfg.ContainerTypeContainerd, available: true, found: true, pid: 7},
	)
	proc, err := r.Resolve(context.Background(), "web", nil)
	require.NoError(t, err)
	require.Equal(t, 7, proc.PID)
}

func TestResolveExplicitTypeRuntimeUnavailable(t *testing.T) {
	r := newTestRegistry(fakeProbe{kind: cfg.ContainerTypeDocker, available: false})
	_, err := r.Resolve(context.Background(), "web", []cfg.ContainerType{cfg.ContainerTypeDocker})
	require.Error(t, err)
	require.Contains(t, err.Error(), "RUNTIME_UNAVAILABLE")
}

func TestResolveExplicitTypeOnlyRunsThatProbe(t *testing.T) {
	r := newTestRegistry(
		fakeProbe{kind: cfg.ContainerTypeDocker, available: true, found: false},
		fakeProbe{kind: cfg.ContainerTypeContainerd, available: true, found: true, pid: 99},
	)
	_, err := r.Resolve(context.Background(), "web", []cfg.ContainerType{cfg.ContainerTypeDocker})
	require.Error(t, err)
	require.Contains(t, err.Error(), "NOT_FOUND")
}

func TestResolveProcessIDFallback(t *testing.T) {
	r := newTestRegistry(newProcessIDProbe())
	proc, err := r.Resolve(context.Background(), "4242", []cfg.ContainerType{cfg.ContainerTypeProcessID})
	require.NoError(t, err)
	require.Equal(t, 4242, proc.PID)
}
