package mountns

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMountinfoLinePrivateMount(t *testing.T) {
	line := "61 25 0:35 / /var/lib/cntr/mnt rw,relatime - tmpfs tmpfs rw"
	entry, err := parseMountinfoLine(line)
	require.NoError(t, err)
	require.Equal(t, 61, entry.mountID)
	require.Equal(t, 25, entry.parentID)
	require.Equal(t, "/var/lib/cntr/mnt", entry.mountPoint)
	require.Equal(t, "private", entry.propagationType())
}

func TestParseMountinfoLineSharedMount(t *testing.T) {
	line := "61 25 0:35 / / rw,relatime shared:1 - ext4 /dev/sda1 rw"
	entry, err := parseMountinfoLine(line)
	require.NoError(t, err)
	require.Equal(t, "shared", entry.propagationType())
}

func TestParseMountinfoLineUnbindableMount(t *testing.T) {
	line := "61 25 0:35 / /proc rw,relatime unbindable - proc proc rw"
	entry, err := parseMountinfoLine(line)
	require.NoError(t, err)
	require.Equal(t, "unbindable", entry.propagationType())
}

func TestParseMountinfoLineRejectsMalformed(t *testing.T) {
	_, err := parseMountinfoLine("not enough fields")
	require.Error(t, err)
}

func TestParseMountinfoLineRejectsMissingSeparator(t *testing.T) {
	_, err := parseMountinfoLine("61 25 0:35 / / rw,relatime shared:1 ext4 /dev/sda1 rw")
	require.Error(t, err)
}
