// Package target describes the process a probe resolves an identifier
// to: the attach coordinator's view of "the container" boils down to
// this one struct for the rest of the attach flow.
package target

import (
	"fmt"

	"github.com/cntrtool/cntr/cfg"
)

// Process is everything the attach coordinator needs about the
// container it resolved, independent of which runtime produced it.
type Process struct {
	// PID is the target's main (usually init) process id, the pid whose
	// namespaces cntr joins.
	PID int

	// ContainerType names the probe that resolved this process.
	ContainerType cfg.ContainerType

	// ID is the identifier the probe matched against, normally the same
	// string the operator passed on the command line.
	ID string

	// RootOverride, when set by a probe that already knows the
	// container's rootfs path (runc reads it from the OCI bundle), is
	// used instead of the /proc/<pid>/root indirection.
	RootOverride string
}

// Root returns the path cntr should treat as the container's root
// filesystem: the probe's override if it provided one, otherwise the
// process's own /proc/<pid>/root, which the kernel resolves through the
// target's mount namespace regardless of which runtime owns it.
func (p Process) Root() string {
	if p.RootOverride != "" {
		return p.RootOverride
	}
	return fmt.Sprintf("/proc/%d/root", p.PID)
}
