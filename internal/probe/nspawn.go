package probe

import (
	"context"

	godbus "github.com/godbus/dbus/v5"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/cntrerr"
	"github.com/cntrtool/cntr/internal/target"
)

const (
	machinedDest = "org.freedesktop.machine1"
	machinedPath = "/org/freedesktop/machine1"
)

// nspawnProbe queries systemd-machined over D-Bus for a machine's
// leader pid, the same mechanism `machinectl status` uses. It talks to
// the org.freedesktop.machine1 interface directly rather than shelling
// out, since machined is always reachable over the system bus when
// systemd-nspawn manages the container.
type nspawnProbe struct {
	connect func() (*godbus.Conn, error)
}

func newNspawnProbe() *nspawnProbe {
	return &nspawnProbe{connect: godbus.SystemBus}
}

func (*nspawnProbe) Type() cfg.ContainerType { return cfg.ContainerTypeNspawn }

func (p *nspawnProbe) Available() bool {
	conn, err := p.connect()
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (p *nspawnProbe) Resolve(ctx context.Context, id string) (target.Process, bool, error) {
	conn, err := p.connect()
	if err != nil {
		// machined/D-Bus unavailable; not an error, just "not found here".
		return target.Process{}, false, nil
	}
	defer conn.Close()

	manager := conn.Object(machinedDest, godbus.ObjectPath(machinedPath))

	var machinePath godbus.ObjectPath
	if err := manager.CallWithContext(ctx, machinedDest+".Manager.GetMachine", 0, id).Store(&machinePath); err != nil {
		return target.Process{}, false, nil
	}

	machine := conn.Object(machinedDest, machinePath)
	leader, err := machine.GetProperty(machinedDest + ".Machine.Leader")
	if err != nil {
		return target.Process{}, false, cntrerr.E(cntrerr.Probe, err, "read Leader property of machine %q", id)
	}
	pid, ok := leader.Value().(uint32)
	if !ok || pid == 0 {
		return target.Process{}, false, cntrerr.E(cntrerr.Probe, nil, "machine %q has no leader process", id)
	}
	return target.Process{PID: int(pid), ContainerType: cfg.ContainerTypeNspawn, ID: id}, true, nil
}
