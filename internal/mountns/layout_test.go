package mountns

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLayoutCreatesDistinctScratchDirs(t *testing.T) {
	l, err := NewLayout()
	require.NoError(t, err)
	defer l.Cleanup()

	require.NotEmpty(t, l.Mountpoint)
	require.NotEmpty(t, l.TempMountpoint)
	require.NotEqual(t, l.Mountpoint, l.TempMountpoint)

	for _, dir := range []string{l.Mountpoint, l.TempMountpoint} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestLayoutCleanupRemovesScratchDirs(t *testing.T) {
	l, err := NewLayout()
	require.NoError(t, err)

	l.Cleanup()

	_, err = os.Stat(l.Mountpoint)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(l.TempMountpoint)
	require.True(t, os.IsNotExist(err))
}
