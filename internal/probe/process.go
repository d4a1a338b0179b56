package probe

import (
	"context"
	"strconv"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/target"
)

// processIDProbe treats id as a literal PID. It's the fallback of last
// resort: every positive integer id "matches", regardless of whether the process
// actually belongs to a container.
type processIDProbe struct{}

func newProcessIDProbe() *processIDProbe { return &processIDProbe{} }

func (*processIDProbe) Type() cfg.ContainerType { return cfg.ContainerTypeProcessID }

func (*processIDProbe) Available() bool { return true }

func (*processIDProbe) Resolve(_ context.Context, id string) (target.Process, bool, error) {
	pid, err := strconv.Atoi(id)
	if err != nil || pid <= 0 {
		return target.Process{}, false, nil
	}
	return target.Process{PID: pid, ContainerType: cfg.ContainerTypeProcessID, ID: id}, true, nil
}
