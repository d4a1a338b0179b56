package cntrfs

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/cntrtool/cntr/internal/cntrerr"
)

// RunAs locks the calling goroutine to its OS thread and temporarily
// switches that thread's filesystem uid/gid/supplementary groups to the
// caller's, so the syscalls fn performs are subject to the same
// permission checks the real kernel would apply, then restores the
// server's own identity before unlocking.
//
// The override goes through Setfsuid/Setfsgid, not Setresuid: Setresuid
// also replaces the thread's saved uid, and once real/effective/saved
// are all non-root the thread no longer holds CAP_SETUID to set them
// back, leaking the dropped identity onto the pooled OS thread for
// every later request it happens to run. Setfsuid/Setfsgid only ever
// affect filesystem permission checks, never the real/effective/saved
// triad, so restoring afterwards needs no privilege the thread could
// have lost and always succeeds as long as nothing else touches the
// thread's credentials concurrently, which LockOSThread guarantees here.
func RunAs(uid, gid uint32, groups []uint32, fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	savedGroups, err := unix.Getgroups()
	if err != nil {
		return cntrerr.E(cntrerr.Internal, err, "getgroups")
	}
	if err := unix.Setgroups(intGroups(groups)); err != nil {
		return cntrerr.E(cntrerr.Permission, err, "setgroups")
	}

	savedFsgid, err := setfsgid(int(gid))
	if err != nil {
		unix.Setgroups(savedGroups)
		return cntrerr.E(cntrerr.Permission, err, "setfsgid")
	}
	savedFsuid, err := setfsuid(int(uid))
	if err != nil {
		unix.Setfsgid(savedFsgid)
		unix.Setgroups(savedGroups)
		return cntrerr.E(cntrerr.Permission, err, "setfsuid")
	}

	fnErr := fn()

	if restoreErr := restoreIdentity(savedFsuid, savedFsgid, savedGroups); restoreErr != nil {
		if fnErr != nil {
			return fnErr
		}
		return restoreErr
	}
	return fnErr
}

// setfsuid sets the calling thread's filesystem uid and returns the
// previous value for later restoration. Setfsuid(2) reports failure
// only by leaving the value unchanged, never via errno, so success is
// confirmed with a read-back call.
func setfsuid(uid int) (int, error) {
	prev := unix.Setfsuid(uid)
	if got := unix.Setfsuid(-1); got != uid {
		unix.Setfsuid(prev)
		return 0, cntrerr.E(cntrerr.Permission, nil, "setfsuid(%d) did not take effect, fsuid is %d", uid, got)
	}
	return prev, nil
}

func setfsgid(gid int) (int, error) {
	prev := unix.Setfsgid(gid)
	if got := unix.Setfsgid(-1); got != gid {
		unix.Setfsgid(prev)
		return 0, cntrerr.E(cntrerr.Permission, nil, "setfsgid(%d) did not take effect, fsgid is %d", gid, got)
	}
	return prev, nil
}

// restoreIdentity puts the thread's fsuid, fsgid and supplementary
// groups back the way RunAs found them, returning every failure instead
// of discarding it: a thread whose identity didn't actually restore
// must not go back into the goroutine pool unnoticed.
func restoreIdentity(fsuid, fsgid int, groups []int) error {
	var problems []string

	unix.Setfsuid(fsuid)
	if got := unix.Setfsuid(-1); got != fsuid {
		problems = append(problems, fmt.Sprintf("fsuid: wanted %d, got %d", fsuid, got))
	}

	unix.Setfsgid(fsgid)
	if got := unix.Setfsgid(-1); got != fsgid {
		problems = append(problems, fmt.Sprintf("fsgid: wanted %d, got %d", fsgid, got))
	}

	if err := unix.Setgroups(groups); err != nil {
		problems = append(problems, fmt.Sprintf("setgroups: %v", err))
	}

	if len(problems) == 0 {
		return nil
	}
	return cntrerr.E(cntrerr.Internal, nil, "failed to restore thread identity: %s", strings.Join(problems, "; "))
}

func intGroups(groups []uint32) []int {
	out := make([]int, len(groups))
	for i, g := range groups {
		out[i] = int(g)
	}
	return out
}
