// Package capset manages the POSIX capability set cntr needs while
// joining namespaces and serving the synthesized filesystem, and drops
// everything else before exec'ing the attached command.
package capset

import (
	"github.com/syndtr/gocapability/capability"

	"github.com/cntrtool/cntr/internal/cntrerr"
)

// Required lists the capabilities cntr's privileged helper process needs
// while it is setting up namespaces and serving CntrFs. CAP_SYS_ADMIN
// covers setns/mount, CAP_SYS_CHROOT covers chroot, CAP_SYS_PTRACE lets
// it read another process's /proc/<pid>/ns/* and /proc/<pid>/root even
// when not a ptrace-parent, CAP_DAC_READ_SEARCH lets it open
// arbitrary files by descriptor for the host side of the mount, and
// CAP_SETUID/CAP_SETGID let it switch to the container's uid/gid before
// exec'ing the attached command.
var Required = []capability.Cap{
	capability.CAP_SYS_ADMIN,
	capability.CAP_SYS_CHROOT,
	capability.CAP_SYS_PTRACE,
	capability.CAP_DAC_READ_SEARCH,
	capability.CAP_SETUID,
	capability.CAP_SETGID,
}

// Ensure verifies the running process holds every capability in
// Required in its effective set, returning a Permission error naming the
// first one missing.
func Ensure() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return cntrerr.E(cntrerr.Internal, err, "load process capabilities")
	}
	if err := caps.Load(); err != nil {
		return cntrerr.E(cntrerr.Internal, err, "load process capabilities")
	}
	for _, c := range Required {
		if !caps.Get(capability.EFFECTIVE, c) {
			return cntrerr.E(cntrerr.Permission, nil, "missing capability %s; install cntr with CAP_SYS_ADMIN,CAP_SYS_CHROOT,CAP_SYS_PTRACE,CAP_DAC_READ_SEARCH,CAP_SETUID,CAP_SETGID via setcap", c)
		}
	}
	return nil
}

// DropAll clears every capability set before cntr exec's the caller's
// command inside the container, so the attached shell runs with exactly
// the privileges the container itself grants it.
func DropAll() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return cntrerr.E(cntrerr.Internal, err, "load process capabilities")
	}
	if err := caps.Load(); err != nil {
		return cntrerr.E(cntrerr.Internal, err, "load process capabilities")
	}
	caps.Clear(capability.CAPS | capability.BOUNDS | capability.AMBS)
	if err := caps.Apply(capability.CAPS | capability.BOUNDS | capability.AMBS); err != nil {
		return cntrerr.E(cntrerr.Permission, err, "drop capabilities")
	}
	return nil
}
