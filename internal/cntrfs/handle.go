package cntrfs

import (
	"os"
	"sync"

	"github.com/jacobsa/fuse/fuseops"
)

// handleTable tracks open *os.File descriptors for directories and
// files across OpenDir/OpenFile and their matching Release calls.
type handleTable struct {
	mu      sync.Mutex
	nextID  fuseops.HandleID
	entries map[fuseops.HandleID]*os.File
}

func newHandleTable() *handleTable {
	return &handleTable{entries: make(map[fuseops.HandleID]*os.File)}
}

func (t *handleTable) open(f *os.File) fuseops.HandleID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.entries[id] = f
	return id
}

func (t *handleTable) get(id fuseops.HandleID) (*os.File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.entries[id]
	return f, ok
}

func (t *handleTable) release(id fuseops.HandleID) error {
	t.mu.Lock()
	f, ok := t.entries[id]
	delete(t.entries, id)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return f.Close()
}
