package cntrfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/require"
)

func TestLookupResolvesAgainstContainerRoot(t *testing.T) {
	containerRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(containerRoot, "var", "lib", "cntr"), 0o755))

	table := newInodeTable(containerRoot)
	root, ok := table.get(fuseops.RootInodeID)
	require.True(t, ok)

	varEntry, err := table.lookup(root, "var")
	require.NoError(t, err)
	require.NotNil(t, varEntry)
	require.Equal(t, filepath.Join(containerRoot, "var"), varEntry.real)

	libEntry, err := table.lookup(varEntry, "lib")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(containerRoot, "var", "lib"), libEntry.real)

	cntrEntry, err := table.lookup(libEntry, "cntr")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(containerRoot, "var", "lib", "cntr"), cntrEntry.real)
}

func TestLookupReturnsNilForMissingEntry(t *testing.T) {
	containerRoot := t.TempDir()
	table := newInodeTable(containerRoot)
	root, _ := table.get(fuseops.RootInodeID)

	entry, err := table.lookup(root, "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestLookupReusesEntryForSameDevIno(t *testing.T) {
	containerRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(containerRoot, "a"), []byte("x"), 0o644))
	require.NoError(t, os.Link(filepath.Join(containerRoot, "a"), filepath.Join(containerRoot, "b")))

	table := newInodeTable(containerRoot)
	root, _ := table.get(fuseops.RootInodeID)

	a, err := table.lookup(root, "a")
	require.NoError(t, err)
	b, err := table.lookup(root, "b")
	require.NoError(t, err)
	require.Equal(t, a.id, b.id)
}

func TestForgetDestroysAtZero(t *testing.T) {
	containerRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(containerRoot, "a"), []byte("x"), 0o644))

	table := newInodeTable(containerRoot)
	root, _ := table.get(fuseops.RootInodeID)

	a, err := table.lookup(root, "a")
	require.NoError(t, err)

	_, stillExists := table.get(a.id)
	require.True(t, stillExists)

	table.forget(a.id, 1)
	_, stillExists = table.get(a.id)
	require.False(t, stillExists)
}
