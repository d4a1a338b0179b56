// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mountns

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jacobsa/fuse"
	"golang.org/x/sys/unix"

	"github.com/cntrtool/cntr/internal/cntrerr"
	"github.com/cntrtool/cntr/internal/cntrfs"
	"github.com/cntrtool/cntr/internal/ipc"
	"github.com/cntrtool/cntr/internal/logger"
)

// bindSubtrees are bound from the container's mount tree into the
// session unmodified, since CntrFs (which serves the host instead)
// would otherwise shadow the devices and kernel interfaces the
// container's own process view needs to behave like the container.
var bindSubtrees = []string{"dev", "sys", "proc"}

// MountHost mounts CntrFs, rooted at the host's own "/", at
// layout.Mountpoint and returns once fuse.Mount reports the mount is
// live; jacobsa/fuse serves every request on its own background
// goroutine from here on. MountHost runs in the coordinator process
// itself, which never joins any container namespace and never chroots,
// so every backing open CntrFs issues for the lifetime of the attach
// resolves against the real host filesystem — the property the attach
// child's eventual chroot must not be allowed to disturb.
func MountHost(layout Layout) (*fuse.MountedFileSystem, error) {
	server, _, err := cntrfs.New("/")
	if err != nil {
		return nil, cntrerr.E(cntrerr.Filesystem, err, "build host-backed session filesystem")
	}
	mounted, err := fuse.Mount(layout.Mountpoint, server, &fuse.MountConfig{})
	if err != nil {
		return nil, cntrerr.E(cntrerr.Filesystem, err, "mount session filesystem at %s", layout.Mountpoint)
	}
	return mounted, nil
}

// Serve blocks until the session filesystem is unmounted, logging
// anything other than a clean unmount. It is meant to run on its own
// goroutine for the coordinator's whole lifetime, purely so an
// out-of-band unmount (the child's mount namespace tearing down, or an
// operator running fusermount -u by hand) is noticed and logged rather
// than silently leaving the goroutine count wrong.
func Serve(mounted *fuse.MountedFileSystem) {
	if err := mounted.Join(context.Background()); err != nil {
		logger.Warnf("cntrfs: serve loop exited: %v", err)
	}
}

// JoinAndChroot runs in the forked attach child, after it has joined
// every target namespace except mount (mount is handled entirely here,
// through bind mounts, rather than by the child ever entering the
// container's mount namespace — the container's files are reached
// through containerRoot, normally the /proc/<pid>/root indirection,
// which this function bind-mounts). It
// isolates a private mount namespace, grafts the container's tree under
// layout.Mountpoint/var/lib/cntr, bind-mounts the container's dev/sys/proc,
// reports readiness to the coordinator over ch, and chroots into
// layout.Mountpoint. Because layout.Mountpoint was mounted by the
// coordinator before this process existed, fork semantics mean it is
// already visible here with zero extra setup.
func JoinAndChroot(layout Layout, containerRoot string, ch *ipc.Channel) error {
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return cntrerr.E(cntrerr.Kernel, err, "unshare mount namespace")
	}

	if err := unix.Mount("none", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return cntrerr.E(cntrerr.Kernel, err, "make mount tree private")
	}

	if private, err := isPrivate(0, "/"); err != nil {
		logger.Warnf("could not verify mount propagation after unshare: %v", err)
	} else if !private {
		return cntrerr.E(cntrerr.Kernel, nil, "mount tree still shared after unshare; refusing to graft container root")
	}

	if err := unix.Mount(containerRoot, layout.TempMountpoint, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
		return cntrerr.E(cntrerr.Kernel, err, "capture container root")
	}

	graft := filepath.Join(layout.Mountpoint, cntrMountPoint)
	if _, err := os.Stat(graft); err == nil {
		return cntrerr.E(cntrerr.Internal, nil, "%s already exists in container mount namespace; refusing to shadow it", cntrMountPoint)
	}
	if err := os.MkdirAll(graft, 0o755); err != nil {
		return cntrerr.E(cntrerr.Filesystem, err, "create %s", cntrMountPoint)
	}
	if err := unix.Mount(layout.TempMountpoint, graft, "", unix.MS_MOVE, ""); err != nil {
		return cntrerr.E(cntrerr.Kernel, err, "graft container root at %s", cntrMountPoint)
	}

	for _, sub := range bindSubtrees {
		target := filepath.Join(layout.Mountpoint, sub)
		if err := os.MkdirAll(target, 0o755); err != nil {
			logger.Warnf("cannot create /%s in session: %v", sub, err)
			continue
		}
		if err := unix.Mount(filepath.Join(containerRoot, sub), target, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
			logger.Warnf("could not bind mount %s from container: %v", target, err)
		}
	}

	if ch != nil {
		msg := ipc.Message{Mountpoint: layout.Mountpoint, TempMountpoint: layout.TempMountpoint}
		if err := ch.Send(msg); err != nil {
			logger.Warnf("failed to report attach readiness: %v", err)
		}
	}

	if err := unix.Chdir(layout.Mountpoint); err != nil {
		return cntrerr.E(cntrerr.Kernel, err, "chdir to session root")
	}
	if err := unix.Chroot(layout.Mountpoint); err != nil {
		return cntrerr.E(cntrerr.Kernel, err, "chroot to session root")
	}

	return nil
}

// ReceiveReady blocks for the readiness message JoinAndChroot sends
// once the child has grafted its mount tree and is about to chroot. The
// coordinator uses this as a barrier: it must not treat the attach as
// "running" before the child has reached a state it can clean up from.
func ReceiveReady(ch *ipc.Channel) (Layout, error) {
	msg, _, err := ch.Receive()
	if err != nil {
		return Layout{}, err
	}
	return Layout{Mountpoint: msg.Mountpoint, TempMountpoint: msg.TempMountpoint}, nil
}

// Cleanup unmounts the session filesystem lazily (MNT_DETACH), so any
// CntrFs request already in flight finishes against the old mount
// instead of failing outright, and removes the scratch directories.
func Cleanup(mounted *fuse.MountedFileSystem, layout Layout) {
	if mounted != nil {
		if err := unix.Unmount(layout.Mountpoint, unix.MNT_DETACH); err != nil {
			logger.Warnf("failed to unmount session root %s: %v", layout.Mountpoint, err)
		}
	}
	layout.Cleanup()
}
