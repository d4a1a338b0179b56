package cntrfs

import (
	"context"
	"os"
	"sort"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

func (fs *CntrFs) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	return fs.as(op.Header, func() error {
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		f, err := os.Open(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		op.Handle = fs.handles.open(f)
		return nil
	})
}

// ReadDir re-lists the whole directory from scratch on every call and
// slices the result by op.Offset, rather than consuming a persistent
// Readdirnames stream: the kernel is free to call ReadDir again at a
// nonzero offset against a handle whose stream was already exhausted by
// an earlier call (e.g. because the caller's buffer filled up before
// every entry fit), and a consumed os.File iterator would then report
// no further names even though the directory has more to give.
func (fs *CntrFs) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	return fs.as(op.Header, func() error {
		if _, ok := fs.handles.get(op.Handle); !ok {
			return fuse.EIO
		}
		entry, ok := fs.inodes.get(op.Inode)
		if !ok {
			return fuse.ENOENT
		}
		names, err := sortedDirnames(entry.real)
		if err != nil {
			return errnoOf(err)
		}
		if int(op.Offset) > len(names) {
			return nil
		}
		names = names[op.Offset:]
		for i, name := range names {
			fi, err := os.Lstat(entry.real + "/" + name)
			if err != nil {
				continue
			}
			dirent := fuseutil.Dirent{
				Offset: op.Offset + fuseops.DirOffset(i) + 1,
				Name:   name,
				Type:   directTypeOf(fi.Mode()),
			}
			n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], dirent)
			if n == 0 {
				break
			}
			op.BytesRead += n
		}
		return nil
	})
}

// sortedDirnames lists every entry in dir in a stable order, so that
// repeated calls at different offsets agree on which names fall before
// and after a given offset even if nothing in the directory changed
// between calls.
func sortedDirnames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func directTypeOf(mode os.FileMode) fuseutil.DirentType {
	switch {
	case mode.IsDir():
		return fuseutil.DT_Directory
	case mode&os.ModeSymlink != 0:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

func (fs *CntrFs) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	return fs.handles.release(op.Handle)
}
