package probe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/cntrerr"
	"github.com/cntrtool/cntr/internal/target"
)

// containerdProbe drives the ctr CLI shipped alongside containerd. It is
// tried before docker since a docker-managed container is itself a
// containerd task, and ctr reports the real init PID directly.
type containerdProbe struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func newContainerdProbe() *containerdProbe {
	return &containerdProbe{lookPath: exec.LookPath, run: runCommand}
}

func (*containerdProbe) Type() cfg.ContainerType { return cfg.ContainerTypeContainerd }

func (p *containerdProbe) Available() bool {
	_, err := p.lookPath("ctr")
	return err == nil
}

type ctrTask struct {
	ID  string `json:"ID"`
	Pid int    `json:"Pid"`
}

func (p *containerdProbe) Resolve(ctx context.Context, id string) (target.Process, bool, error) {
	if _, err := p.lookPath("ctr"); err != nil {
		return target.Process{}, false, nil
	}
	out, err := p.run(ctx, "ctr", "tasks", "list", "--format", "json")
	if err != nil {
		return target.Process{}, false, nil
	}
	var tasks []ctrTask
	if err := json.Unmarshal(out, &tasks); err != nil {
		// Older ctr builds don't support --format json; treat as "not
		// found here" rather than failing the whole lookup.
		return target.Process{}, false, nil
	}
	for _, t := range tasks {
		if t.ID == id || strings.HasPrefix(t.ID, id) {
			if t.Pid == 0 {
				return target.Process{}, false, cntrerr.E(cntrerr.Probe, nil, "containerd task %s has no running pid", t.ID)
			}
			return target.Process{PID: t.Pid, ContainerType: cfg.ContainerTypeContainerd, ID: t.ID}, true, nil
		}
	}
	return target.Process{}, false, nil
}
