package probe

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/target"
)

// runcProbe asks runc for a container's state, then reads the OCI
// bundle's config.json (named by the state's "bundle" field) to learn
// the configured Root.Path, so the attach child can skip the
// /proc/<pid>/root indirection and bind-mount the bundle rootfs directly.
type runcProbe struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func newRuncProbe() *runcProbe {
	return &runcProbe{lookPath: exec.LookPath, run: runCommand}
}

func (*runcProbe) Type() cfg.ContainerType { return cfg.ContainerTypeRunc }

func (p *runcProbe) Available() bool {
	_, err := p.lookPath("runc")
	return err == nil
}

type runcState struct {
	Pid    int    `json:"pid"`
	Bundle string `json:"bundle"`
}

func (p *runcProbe) Resolve(ctx context.Context, id string) (target.Process, bool, error) {
	if _, err := p.lookPath("runc"); err != nil {
		return target.Process{}, false, nil
	}
	out, err := p.run(ctx, "runc", "state", id)
	if err != nil {
		return target.Process{}, false, nil
	}
	var state runcState
	if err := json.Unmarshal(out, &state); err != nil || state.Pid == 0 {
		return target.Process{}, false, nil
	}
	proc := target.Process{PID: state.Pid, ContainerType: cfg.ContainerTypeRunc, ID: id}
	if root := bundleRoot(state.Bundle); root != "" {
		proc.RootOverride = root
	}
	return proc, true, nil
}

// bundleRoot reads config.json from the bundle directory and resolves
// its Root.Path relative to the bundle, matching runc's own behavior.
func bundleRoot(bundle string) string {
	if bundle == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(bundle, "config.json"))
	if err != nil {
		return ""
	}
	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil || spec.Root == nil || spec.Root.Path == "" {
		return ""
	}
	if filepath.IsAbs(spec.Root.Path) {
		return spec.Root.Path
	}
	return filepath.Join(bundle, spec.Root.Path)
}
