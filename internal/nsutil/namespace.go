// Package nsutil opens and joins Linux kernel namespaces through their
// /proc/<pid>/ns/<kind> entries.
package nsutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/cntrtool/cntr/internal/cntrerr"
)

// Kind names one of the namespace types cntr cares about joining.
type Kind string

const (
	Mount  Kind = "mnt"
	PID    Kind = "pid"
	Net    Kind = "net"
	User   Kind = "user"
	UTS    Kind = "uts"
	IPC    Kind = "ipc"
	Cgroup Kind = "cgroup"
)

// AllKinds is every kind cntr is able to join, in the order they should
// be entered: user before the others that might depend on it, mount
// last since entering it can make the other /proc entries disappear.
var AllKinds = []Kind{User, UTS, IPC, Net, PID, Cgroup, Mount}

// Handle is an open reference to one namespace, identified by an open
// file descriptor on its /proc/<pid>/ns/<kind> entry (or, for Net, a
// netns.NsHandle wrapping the same descriptor).
type Handle struct {
	kind Kind
	file *os.File
}

// OpenFor opens handles for the given kinds of target's namespaces. On
// any failure it closes the handles it already opened before returning.
func OpenFor(pid int, kinds []Kind) ([]*Handle, error) {
	handles := make([]*Handle, 0, len(kinds))
	for _, k := range kinds {
		h, err := open(pid, k)
		if err != nil {
			closeAll(handles)
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// FromFd wraps an already-open namespace descriptor, used by the side of
// an IPC hand-off that received the fd instead of opening it directly.
func FromFd(kind Kind, fd uintptr) *Handle {
	return &Handle{kind: kind, file: os.NewFile(fd, string(kind)+"-ns")}
}

// Self opens a handle to the caller's own namespace of the given kind,
// used to remember the original namespace before Apply replaces it so
// it can be restored later.
func Self(kind Kind) (*Handle, error) {
	return open(0, kind)
}

func open(pid int, kind Kind) (*Handle, error) {
	path := nsPath(pid, kind)
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, cntrerr.E(cntrerr.Permission, err, "open namespace %s for pid %d", kind, pid)
		}
		return nil, cntrerr.E(cntrerr.Kernel, err, "open namespace %s for pid %d", kind, pid)
	}
	if err := verifyKind(path, kind); err != nil {
		f.Close()
		return nil, err
	}
	return &Handle{kind: kind, file: f}, nil
}

func nsPath(pid int, kind Kind) string {
	if pid == 0 {
		return fmt.Sprintf("/proc/self/ns/%s", kind)
	}
	return fmt.Sprintf("/proc/%d/ns/%s", pid, kind)
}

// verifyKind guards against a stale or swapped symlink: the target of
// /proc/<pid>/ns/<kind> always looks like "<kind>:[<inode>]".
func verifyKind(path string, kind Kind) error {
	target, err := os.Readlink(path)
	if err != nil {
		return cntrerr.E(cntrerr.Kernel, err, "readlink %s", path)
	}
	if !strings.HasPrefix(target, string(kind)+":[") {
		return cntrerr.E(cntrerr.Internal, nil, "namespace link %s resolved to unexpected target %q", path, target)
	}
	return nil
}

// Kind reports which namespace kind this handle refers to.
func (h *Handle) Kind() Kind { return h.kind }

// Fd returns the underlying file descriptor, valid as long as Close
// hasn't been called.
func (h *Handle) Fd() uintptr { return h.file.Fd() }

// File returns the underlying *os.File, so a handle opened in the
// coordinator can be placed directly in an exec.Cmd's ExtraFiles for a
// re-exec'd child to pick back up.
func (h *Handle) File() *os.File { return h.file }

// Apply makes this namespace the calling thread's active namespace for
// its kind. The caller must have locked the OS thread first, since
// namespace membership is per-thread for everything except mount.
func (h *Handle) Apply() error {
	if h.kind == Net {
		ns := netns.NsHandle(h.file.Fd())
		if err := netns.Set(ns); err != nil {
			return cntrerr.E(cntrerr.Kernel, err, "setns net")
		}
		return nil
	}
	if err := unix.Setns(int(h.file.Fd()), flagFor(h.kind)); err != nil {
		if err == unix.EPERM {
			return cntrerr.E(cntrerr.Permission, err, "setns %s", h.kind)
		}
		return cntrerr.E(cntrerr.Kernel, err, "setns %s", h.kind)
	}
	return nil
}

func flagFor(kind Kind) int {
	switch kind {
	case Mount:
		return unix.CLONE_NEWNS
	case PID:
		return unix.CLONE_NEWPID
	case Net:
		return unix.CLONE_NEWNET
	case User:
		return unix.CLONE_NEWUSER
	case UTS:
		return unix.CLONE_NEWUTS
	case IPC:
		return unix.CLONE_NEWIPC
	case Cgroup:
		return unix.CLONE_NEWCGROUP
	default:
		return 0
	}
}

// Close releases the underlying file descriptor.
func (h *Handle) Close() error {
	return h.file.Close()
}

func closeAll(handles []*Handle) {
	for _, h := range handles {
		h.Close()
	}
}

// ApplyAll applies every handle in order, stopping and returning the
// first error encountered.
func ApplyAll(handles []*Handle) error {
	for _, h := range handles {
		if err := h.Apply(); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll is the exported form of closeAll, for callers holding a slice
// returned by OpenFor.
func CloseAll(handles []*Handle) {
	closeAll(handles)
}
