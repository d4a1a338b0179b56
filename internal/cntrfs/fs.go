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

// Package cntrfs implements a FUSE passthrough server rooted at a
// single directory tree, letting an attached session read and write
// through it exactly as it would the tree directly.
package cntrfs

import (
	"context"
	"os"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sync/semaphore"

	"github.com/cntrtool/cntr/internal/logger"
)

// maxConcurrentRequests bounds how many backing-filesystem syscalls
// CntrFs issues at once. jacobsa/fuse already hands each request its own
// goroutine, so without a cap a readdir of a huge directory or a burst
// of opens could spin up thousands of concurrent Lstat/Open calls
// against the backing tree; a weighted semaphore turns that into a
// fixed-size worker pool without adding a queue of our own.
const maxConcurrentRequests = 128

// CntrFs is a FUSE passthrough server rooted at a single real directory
// tree. The attach coordinator always roots it at the host's own "/",
// so the attached session sees the host at the session root; the
// container's own tree is grafted in afterwards, at cfg.MountPointName,
// by a kernel bind mount the mountns package sets up in the attach
// child's private mount namespace. CntrFs never routes between the two
// itself — as far as it knows it is serving one directory tree.
type CntrFs struct {
	fuseutil.NotImplementedFileSystem

	inodes  *inodeTable
	handles *handleTable
	sem     *semaphore.Weighted
}

var _ fuseutil.FileSystem = &CntrFs{}

// New constructs a server rooted at root, the single directory tree it
// will serve verbatim over FUSE.
func New(root string) (fuse.Server, *CntrFs, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, nil, err
	}
	impl := &CntrFs{
		inodes:  newInodeTable(root),
		handles: newHandleTable(),
		sem:     semaphore.NewWeighted(maxConcurrentRequests),
	}
	return fuseutil.NewFileSystemServer(impl), impl, nil
}

// as acquires a slot in the server's request semaphore, then runs fn
// with the calling request's own uid/gid rather than the server
// process's, so permission checks the underlying filesystem performs
// land on the actual caller rather than on whatever identity cntr
// itself is running as.
func (fs *CntrFs) as(h fuseops.OpHeader, fn func() error) error {
	ctx := context.Background()
	if err := fs.sem.Acquire(ctx, 1); err != nil {
		return syscall.ECONNABORTED
	}
	defer fs.sem.Release(1)
	return RunAs(h.Uid, h.Gid, nil, fn)
}

func (fs *CntrFs) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.IoSize = 4096
	return nil
}

func (fs *CntrFs) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	return fs.as(op.Header, func() error {
		parent, ok := fs.inodes.get(op.Parent)
		if !ok {
			return fuse.ENOENT
		}
		entry, err := fs.inodes.lookup(parent, op.Name)
		if err != nil {
			return errnoOf(err)
		}
		if entry == nil {
			return fuse.ENOENT
		}
		fi, err := os.Lstat(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		attrs, err := attrsFromStat(fi)
		if err != nil {
			return errnoOf(err)
		}
		op.Entry.Child = entry.id
		op.Entry.Attributes = attrs
		return nil
	})
}

func (fs *CntrFs) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		fi, err := os.Lstat(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		attrs, err := attrsFromStat(fi)
		if err != nil {
			return errnoOf(err)
		}
		op.Attributes = attrs
		return nil
	})
}

func (fs *CntrFs) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		if op.Size != nil {
			if err := os.Truncate(entry.real, int64(*op.Size)); err != nil {
				return errnoOf(err)
			}
		}
		if op.Mode != nil {
			if err := os.Chmod(entry.real, *op.Mode); err != nil {
				return errnoOf(err)
			}
		}
		if op.Atime != nil || op.Mtime != nil {
			fi, err := os.Lstat(entry.real)
			if err != nil {
				return errnoOf(err)
			}
			atime, mtime := fi.ModTime(), fi.ModTime()
			if op.Atime != nil {
				atime = *op.Atime
			}
			if op.Mtime != nil {
				mtime = *op.Mtime
			}
			if err := os.Chtimes(entry.real, atime, mtime); err != nil {
				return errnoOf(err)
			}
		}
		fi, err := os.Lstat(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		attrs, err := attrsFromStat(fi)
		if err != nil {
			return errnoOf(err)
		}
		op.Attributes = attrs
		return nil
	})
}

func (fs *CntrFs) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.inodes.forget(op.Inode, uint64(op.N))
	return nil
}

func (fs *CntrFs) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	return fs.as(op.Header, func() error {
		parent, ok := fs.inodes.get(op.Parent)
		if !ok {
			return fuse.ENOENT
		}
		real := childPath(parent, op.Name)
		if err := os.Mkdir(real, op.Mode); err != nil {
			return errnoOf(err)
		}
		entry, err := fs.inodes.lookup(parent, op.Name)
		if err != nil || entry == nil {
			return errnoOf(err)
		}
		fi, err := os.Lstat(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		attrs, err := attrsFromStat(fi)
		if err != nil {
			return errnoOf(err)
		}
		op.Entry.Child = entry.id
		op.Entry.Attributes = attrs
		return nil
	})
}

func (fs *CntrFs) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	return fs.as(op.Header, func() error {
		parent, ok := fs.inodes.get(op.Parent)
		if !ok {
			return fuse.ENOENT
		}
		real := childPath(parent, op.Name)
		if err := syscall.Mknod(real, rawMode(op.Mode), int(op.Rdev)); err != nil {
			return errnoOf(err)
		}
		entry, err := fs.inodes.lookup(parent, op.Name)
		if err != nil || entry == nil {
			return errnoOf(err)
		}
		fi, err := os.Lstat(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		attrs, err := attrsFromStat(fi)
		if err != nil {
			return errnoOf(err)
		}
		op.Entry.Child = entry.id
		op.Entry.Attributes = attrs
		return nil
	})
}

func (fs *CntrFs) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	return fs.as(op.Header, func() error {
		parent, ok := fs.inodes.get(op.Parent)
		if !ok {
			return fuse.ENOENT
		}
		real := childPath(parent, op.Name)
		if err := os.Remove(real); err != nil {
			return errnoOf(err)
		}
		return nil
	})
}

func (fs *CntrFs) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	return fs.as(op.Header, func() error {
		parent, ok := fs.inodes.get(op.Parent)
		if !ok {
			return fuse.ENOENT
		}
		real := childPath(parent, op.Name)
		if err := os.Remove(real); err != nil {
			return errnoOf(err)
		}
		return nil
	})
}

func (fs *CntrFs) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	return fs.as(op.Header, func() error {
		oldParent, ok := fs.inodes.get(op.OldParent)
		if !ok {
			return fuse.ENOENT
		}
		newParent, ok := fs.inodes.get(op.NewParent)
		if !ok {
			return fuse.ENOENT
		}
		oldReal := childPath(oldParent, op.OldName)
		newReal := childPath(newParent, op.NewName)
		if err := os.Rename(oldReal, newReal); err != nil {
			return errnoOf(err)
		}
		return nil
	})
}

func (fs *CntrFs) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	return fs.as(op.Header, func() error {
		target, ok := fs.inodes.get(op.Target)
		if !ok {
			return fuse.ENOENT
		}
		parent, ok := fs.inodes.get(op.Parent)
		if !ok {
			return fuse.ENOENT
		}
		real := childPath(parent, op.Name)
		if err := os.Link(target.real, real); err != nil {
			return errnoOf(err)
		}
		entry, err := fs.inodes.lookup(parent, op.Name)
		if err != nil || entry == nil {
			return errnoOf(err)
		}
		fi, err := os.Lstat(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		attrs, err := attrsFromStat(fi)
		if err != nil {
			return errnoOf(err)
		}
		op.Entry.Child = entry.id
		op.Entry.Attributes = attrs
		return nil
	})
}

func (fs *CntrFs) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	return fs.as(op.Header, func() error {
		parent, ok := fs.inodes.get(op.Parent)
		if !ok {
			return fuse.ENOENT
		}
		real := childPath(parent, op.Name)
		if err := os.Symlink(op.Target, real); err != nil {
			return errnoOf(err)
		}
		entry, err := fs.inodes.lookup(parent, op.Name)
		if err != nil || entry == nil {
			return errnoOf(err)
		}
		fi, err := os.Lstat(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		attrs, err := attrsFromStat(fi)
		if err != nil {
			return errnoOf(err)
		}
		op.Entry.Child = entry.id
		op.Entry.Attributes = attrs
		return nil
	})
}

func (fs *CntrFs) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		target, err := os.Readlink(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		op.Target = target
		return nil
	})
}

func (fs *CntrFs) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		v, err := getXattr(entry.real, op.Name)
		if err != nil {
			return errnoOf(err)
		}
		if v == nil {
			return syscall.ENODATA
		}
		op.BytesRead = len(v)
		if len(op.Dst) > 0 {
			if len(v) > len(op.Dst) {
				return syscall.ERANGE
			}
			copy(op.Dst, v)
		}
		return nil
	})
}

func (fs *CntrFs) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		names, err := listXattr(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		var buf []byte
		for _, n := range names {
			buf = append(buf, n...)
			buf = append(buf, 0)
		}
		op.BytesRead = len(buf)
		if len(op.Dst) > 0 {
			if len(buf) > len(op.Dst) {
				return syscall.ERANGE
			}
			copy(op.Dst, buf)
		}
		return nil
	})
}

func (fs *CntrFs) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		if err := setXattr(entry.real, op.Name, op.Value); err != nil {
			return errnoOf(err)
		}
		return nil
	})
}

func (fs *CntrFs) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		if err := removeXattr(entry.real, op.Name); err != nil {
			return errnoOf(err)
		}
		return nil
	})
}

// rawMode translates an os.FileMode back into the raw mode_t bits
// Mknod(2) expects, since os.FileMode's type bits (ModeDevice,
// ModeCharDevice, ModeNamedPipe, ModeSocket) don't share Unix's layout.
func rawMode(mode os.FileMode) uint32 {
	raw := uint32(mode.Perm())
	switch {
	case mode&os.ModeNamedPipe != 0:
		raw |= syscall.S_IFIFO
	case mode&os.ModeSocket != 0:
		raw |= syscall.S_IFSOCK
	case mode&os.ModeCharDevice != 0:
		raw |= syscall.S_IFCHR
	case mode&os.ModeDevice != 0:
		raw |= syscall.S_IFBLK
	default:
		raw |= syscall.S_IFREG
	}
	return raw
}

// errnoOf maps a Go filesystem error to the errno FUSE expects,
// preserving the original syscall.Errno when one is present and falling
// back to EIO (logged here at ERROR) otherwise.
func errnoOf(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	if os.IsNotExist(err) {
		return fuse.ENOENT
	}
	if os.IsPermission(err) {
		return syscall.EACCES
	}
	if pathErr, ok := err.(*os.PathError); ok {
		return errnoOf(pathErr.Err)
	}
	if linkErr, ok := err.(*os.LinkError); ok {
		return errnoOf(linkErr.Err)
	}
	logger.Errorf("cntrfs: unexpected error mapped to EIO: %v", err)
	return syscall.EIO
}
