package cntrfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// RunAs switching to the caller's own uid/gid needs no privilege for the
// fsuid/fsgid part and still exercises the full save/set/restore path.
// RunAs always calls setgroups, though, so these tests need CAP_SETGID
// (in practice, running as root).
func TestRunAsSameIdentityRunsFn(t *testing.T) {
	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())

	called := false
	err := RunAs(uid, gid, nil, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
}

func TestRunAsPropagatesFnError(t *testing.T) {
	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())

	sentinel := os.ErrClosed
	err := RunAs(uid, gid, nil, func() error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
}

func TestIntGroupsConvertsUint32ToInt(t *testing.T) {
	got := intGroups([]uint32{0, 100, 65534})
	require.Equal(t, []int{0, 100, 65534}, got)
}
