package ipc

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	parent, child, err := NewPair()
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	tmp, err := os.CreateTemp(t.TempDir(), "ipc-fd")
	require.NoError(t, err)
	defer tmp.Close()

	msg := Message{Mountpoint: "/tmp/cntr-root-abc", TempMountpoint: "/tmp/cntr-tmp-abc"}

	done := make(chan error, 1)
	go func() {
		done <- child.Send(msg, tmp.Fd())
	}()

	got, fd, err := parent.Receive()
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert := func(cond bool, format string, args ...interface{}) {
		if !cond {
			t.Fatalf(format, args...)
		}
	}
	assert(got == msg, "got %+v, want %+v", got, msg)
	assert(fd > 0, "expected a valid fd, got %d", fd)
	os.NewFile(fd, "received").Close()
}
