package cntrfs

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
)

func (fs *CntrFs) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	return fs.as(op.Header, func() error {
		parent, ok := fs.inodes.get(op.Parent)
		if !ok {
			return fuse.ENOENT
		}
		real := childPath(parent, op.Name)
		f, err := os.OpenFile(real, os.O_RDWR|os.O_CREATE|os.O_EXCL, op.Mode)
		if err != nil {
			return errnoOf(err)
		}
		entry, err := fs.inodes.lookup(parent, op.Name)
		if err != nil || entry == nil {
			f.Close()
			return errnoOf(err)
		}
		fi, err := os.Lstat(entry.real)
		if err != nil {
			f.Close()
			return errnoOf(err)
		}
		attrs, err := attrsFromStat(fi)
		if err != nil {
			f.Close()
			return errnoOf(err)
		}
		op.Entry.Child = entry.id
		op.Entry.Attributes = attrs
		op.Handle = fs.handles.open(f)
		return nil
	})
}

func (fs *CntrFs) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		f, err := os.OpenFile(entry.real, os.O_RDWR, 0)
		if err != nil {
			f, err = os.Open(entry.real)
		}
		if err != nil {
			return errnoOf(err)
		}
		op.Handle = fs.handles.open(f)
		return nil
	})
}

func (fs *CntrFs) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	f, ok := fs.handles.get(op.Handle)
	if !ok {
		return fuse.EIO
	}
	return fs.as(op.Header, func() error {
		n, err := f.ReadAt(op.Dst, op.Offset)
		op.BytesRead = n
		if err != nil && !errors.Is(err, io.EOF) {
			return errnoOf(err)
		}
		return nil
	})
}

func (fs *CntrFs) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	f, ok := fs.handles.get(op.Handle)
	if !ok {
		return fuse.EIO
	}
	return fs.as(op.Header, func() error {
		if _, err := f.WriteAt(op.Data, op.Offset); err != nil {
			return errnoOf(err)
		}
		return nil
	})
}

func (fs *CntrFs) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	f, ok := fs.handles.get(op.Handle)
	if !ok {
		return fuse.EIO
	}
	return errnoOf(f.Sync())
}

func (fs *CntrFs) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return nil
}

func (fs *CntrFs) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return fs.handles.release(op.Handle)
}
