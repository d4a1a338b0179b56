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

package cntrfs

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// inodeEntry is the server's record for one inode: the real absolute
// path backing it under the tree this CntrFs instance was constructed
// to serve, plus the kernel lookup-count bookkeeping that decides when
// it can be forgotten.
type inodeEntry struct {
	lookupCount

	id   fuseops.InodeID
	name string

	// real is the absolute path on the tree this server serves.
	real string

	devIno devIno
}

type devIno struct {
	dev uint64
	ino uint64
}

// inodeTable owns every inode the server has handed a lookup count for,
// keyed by the ID it assigned plus a secondary index so that two lookup
// paths reaching the same underlying (device, inode) share one entry,
// matching POSIX hardlink identity.
type inodeTable struct {
	mu       sync.Mutex
	byID     map[fuseops.InodeID]*inodeEntry
	byDevIno map[devIno]fuseops.InodeID
	nextID   fuseops.InodeID
}

func newInodeTable(root string) *inodeTable {
	t := &inodeTable{
		byID:     make(map[fuseops.InodeID]*inodeEntry),
		byDevIno: make(map[devIno]fuseops.InodeID),
		nextID:   fuseops.RootInodeID + 1,
	}
	rootEntry := &inodeEntry{
		id:   fuseops.RootInodeID,
		name: "",
		real: root,
	}
	// The root inode is never forgotten: forget ignores it, since its
	// lookup count is never raised by lookup. It still gets a no-op
	// destroy so the entry never carries a nil func.
	rootEntry.destroy = func() error { return nil }
	t.byID[rootEntry.id] = rootEntry
	return t
}

func (t *inodeTable) get(id fuseops.InodeID) (*inodeEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	return e, ok
}

// childPath computes the real path a not-yet-looked-up child would have.
func childPath(parent *inodeEntry, name string) string {
	return filepath.Join(parent.real, name)
}

// lookup resolves name inside parent, creating a new inodeEntry (or
// reusing an existing one that refers to the same device/inode pair)
// and incrementing its lookup count. It returns (nil, nil) when name
// doesn't exist.
func (t *inodeTable) lookup(parent *inodeEntry, name string) (*inodeEntry, error) {
	real := childPath(parent, name)

	fi, err := os.Lstat(real)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, os.ErrInvalid
	}
	key := devIno{dev: uint64(st.Dev), ino: st.Ino}

	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byDevIno[key]; ok {
		e := t.byID[id]
		e.Inc()
		return e, nil
	}

	e := &inodeEntry{
		id:     t.nextID,
		name:   name,
		real:   real,
		devIno: key,
	}
	// destroy runs from inside forget, which already holds t.mu while it
	// calls e.Dec; it must not try to take the lock again.
	e.destroy = func() error {
		delete(t.byID, e.id)
		delete(t.byDevIno, e.devIno)
		return nil
	}
	t.nextID++
	e.Inc()
	t.byID[e.id] = e
	t.byDevIno[key] = e.id
	return e, nil
}

// forget applies a kernel Forget count to the named inode. The count
// mutation and the possible destroy it triggers both happen while t.mu
// is held, so two concurrent forgets for the same inode can never both
// observe the count above zero and race it past zero.
func (t *inodeTable) forget(id fuseops.InodeID, n uint64) {
	if id == fuseops.RootInodeID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return
	}
	e.Dec(n)
}

func attrsFromStat(fi os.FileInfo) (fuseops.InodeAttributes, error) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fuseops.InodeAttributes{}, os.ErrInvalid
	}
	return fuseops.InodeAttributes{
		Size:  uint64(st.Size),
		Nlink: uint32(st.Nlink),
		Mode:  fi.Mode(),
		Atime: time.Unix(st.Atim.Sec, st.Atim.Nsec),
		Mtime: time.Unix(st.Mtim.Sec, st.Mtim.Nsec),
		Ctime: time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
		Uid:   st.Uid,
		Gid:   st.Gid,
	}, nil
}
