// Package probe resolves a container identifier (name, id or PID) to a
// running process by asking each supported container runtime in turn.
package probe

import (
	"context"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/cntrerr"
	"github.com/cntrtool/cntr/internal/target"
)

// Probe inspects one container runtime and attempts to resolve id to a
// running process. It returns (zero, false, nil) when the runtime
// itself is healthy but has no container matching id, letting the
// registry fall through to the next probe; it returns a non-nil error
// only when the runtime's tooling failed (e.g. the CLI exists but
// returned malformed output). A lookup naming that single type fails
// with the error; auto mode records it, moves on to the next probe, and
// reports it only if no probe matched.
type Probe interface {
	Type() cfg.ContainerType
	Available() bool
	Resolve(ctx context.Context, id string) (target.Process, bool, error)
}

// Registry holds every probe cntr knows about, keyed by type.
type Registry struct {
	probes map[cfg.ContainerType]Probe
	order  []cfg.ContainerType
}

// NewRegistry builds the default registry with every built-in probe.
func NewRegistry() *Registry {
	r := &Registry{probes: map[cfg.ContainerType]Probe{}}
	for _, p := range []Probe{
		newContainerdProbe(),
		newDockerProbe(),
		newRuncProbe(),
		newNspawnProbe(),
		newProcessIDProbe(),
	} {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the probe for its type, appending to the
// default probe order if it's new. Tests use this to substitute fakes.
func (r *Registry) Register(p Probe) {
	if _, exists := r.probes[p.Type()]; !exists {
		r.order = append(r.order, p.Type())
	}
	r.probes[p.Type()] = p
}

// Resolve tries each of the given types in order (or every registered
// type, if types is empty, i.e. "auto") and returns the first match.
//
// A single explicitly-named type (--type docker) runs only that probe:
// if its tooling is missing this fails with RUNTIME_UNAVAILABLE instead
// of falling through to another runtime, matching end-to-end scenario 6
// of the design notes. Auto mode runs every probe and requires the
// matches to agree: zero matches is NOT_FOUND, and two probes resolving
// the same id to different processes is AMBIGUOUS rather than silently
// picking one.
func (r *Registry) Resolve(ctx context.Context, id string, types []cfg.ContainerType) (target.Process, error) {
	explicit := len(types) == 1
	if len(types) == 0 {
		types = r.order
	}

	if explicit {
		p, ok := r.probes[types[0]]
		if !ok {
			return target.Process{}, cntrerr.E(cntrerr.Probe, nil, "unknown container type %q", types[0])
		}
		if !p.Available() {
			return target.Process{}, cntrerr.E(cntrerr.Probe, nil, "RUNTIME_UNAVAILABLE: %s tooling not found on host", types[0])
		}
		proc, found, err := p.Resolve(ctx, id)
		if err != nil {
			return target.Process{}, cntrerr.E(cntrerr.Probe, err, "%s probe failed for %q", types[0], id)
		}
		if !found {
			return target.Process{}, cntrerr.E(cntrerr.Probe, nil, "NOT_FOUND: no %s container named %q", types[0], id)
		}
		return proc, nil
	}

	var matches []target.Process
	var lastErr error
	for _, t := range types {
		p, ok := r.probes[t]
		if !ok || !p.Available() {
			continue
		}
		proc, found, err := p.Resolve(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		if found {
			matches = append(matches, proc)
		}
	}

	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1:
		for _, m := range matches[1:] {
			if m.PID != matches[0].PID {
				return target.Process{}, cntrerr.E(cntrerr.Probe, nil, "AMBIGUOUS: %q resolves to different processes across runtimes", id)
			}
		}
		return matches[0], nil
	case lastErr != nil:
		return target.Process{}, cntrerr.E(cntrerr.Probe, lastErr, "no container runtime resolved %q", id)
	default:
		return target.Process{}, cntrerr.E(cntrerr.Probe, nil, "NOT_FOUND: no container named %q found among %v", id, types)
	}
}
