package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/cntrerr"
	"github.com/cntrtool/cntr/internal/target"
)

// dockerProbe shells out to the docker CLI, the same way the rest of
// cntr treats every runtime it doesn't link a client library for: these
// tools change their on-disk state format across versions far more
// often than their CLI output, so driving `docker inspect` is the
// stable integration point.
type dockerProbe struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func newDockerProbe() *dockerProbe {
	return &dockerProbe{lookPath: exec.LookPath, run: runCommand}
}

func (*dockerProbe) Type() cfg.ContainerType { return cfg.ContainerTypeDocker }

func (p *dockerProbe) Available() bool {
	_, err := p.lookPath("docker")
	return err == nil
}

type dockerInspectEntry struct {
	State struct {
		Pid int `json:"Pid"`
	} `json:"State"`
}

func (p *dockerProbe) Resolve(ctx context.Context, id string) (target.Process, bool, error) {
	if _, err := p.lookPath("docker"); err != nil {
		return target.Process{}, false, nil
	}
	out, err := p.run(ctx, "docker", "inspect", "--type", "container", id)
	if err != nil {
		return target.Process{}, false, nil
	}
	var entries []dockerInspectEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return target.Process{}, false, cntrerr.E(cntrerr.Probe, err, "parse docker inspect output for %q", id)
	}
	if len(entries) == 0 || entries[0].State.Pid == 0 {
		return target.Process{}, false, nil
	}
	return target.Process{PID: entries[0].State.Pid, ContainerType: cfg.ContainerTypeDocker, ID: id}, true, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}
