// Package ipc implements the parent/child hand-off channel used during
// attach setup: a single seqpacket socket pair the attach child uses to
// tell the coordinator it has finished grafting its mount namespace and
// is about to chroot, so the coordinator knows exactly which instant it
// becomes responsible for tearing the session down again.
package ipc

import (
	"encoding/json"
	"os"

	"golang.org/x/sys/unix"

	"github.com/cntrtool/cntr/internal/cntrerr"
)

// pathMax mirrors Linux's PATH_MAX; golang.org/x/sys/unix doesn't
// export it as a constant.
const pathMax = 4096

// maxPayload bounds the JSON-encoded Message: both of its fields are
// paths, so two PATH_MAX strings plus slack for JSON field names and
// quoting comfortably covers any legitimate message while still
// catching a corrupted frame.
const maxPayload = 2*pathMax + 512

// Channel wraps one end of a socket pair created by NewPair.
type Channel struct {
	fd int
}

// NewPair creates a connected pair of SOCK_SEQPACKET sockets. The
// convention used throughout cntr is that index 0 is kept by the
// coordinator and index 1 is handed to the attach child across
// fork/exec.
func NewPair() (parent, child *Channel, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, cntrerr.E(cntrerr.Transport, err, "socketpair")
	}
	return &Channel{fd: fds[0]}, &Channel{fd: fds[1]}, nil
}

// FromFd wraps an already-open socket descriptor, used by a re-exec'd
// child that inherited the socket on a known fd number.
func FromFd(fd int) *Channel {
	return &Channel{fd: fd}
}

// Fd returns the raw descriptor, needed to place it in a child's
// ExtraFiles or to pass it across exec via the environment.
func (c *Channel) Fd() int { return c.fd }

// Message is the single payload this channel carries: the session
// layout paths, sent by the attach child once it has grafted the
// container tree under them and is about to chroot. The coordinator
// uses its arrival as a readiness barrier; it cleans up from the layout
// it created itself.
type Message struct {
	Mountpoint     string `json:"mountpoint"`
	TempMountpoint string `json:"temp_mountpoint"`
}

// Send writes msg as one seqpacket datagram, attaching fds (if any) as
// SCM_RIGHTS ancillary data so the receiver gets its own duplicate
// descriptors rather than just the numbers. This is how the attach
// child would hand the coordinator a descriptor-based reference instead
// of a path, on protocols where that's cheaper or more robust than a
// bind mount by path; the layout hand-off itself only ever sends paths,
// so callers that don't need descriptor passing just omit fds.
func (c *Channel) Send(msg Message, fds ...uintptr) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return cntrerr.E(cntrerr.Internal, err, "marshal ipc message")
	}
	if len(payload) > maxPayload {
		return cntrerr.E(cntrerr.Transport, nil, "OVERSIZED: ipc payload of %d bytes exceeds %d", len(payload), maxPayload)
	}

	var oob []byte
	if len(fds) > 0 {
		ints := make([]int, len(fds))
		for i, fd := range fds {
			ints[i] = int(fd)
		}
		oob = unix.UnixRights(ints...)
	}

	if err := unix.Sendmsg(c.fd, payload, oob, nil, 0); err != nil {
		return cntrerr.E(cntrerr.Transport, err, "sendmsg")
	}
	return nil
}

// Receive blocks for the single datagram sent by Send, returning the
// first file descriptor attached to it (0 if none was sent). A short
// read — fewer bytes than a valid frame could ever be, which unmarshal
// would catch anyway — is reported as a Transport error, never
// silently treated as a truncated-but-usable message.
func (c *Channel) Receive() (Message, uintptr, error) {
	buf := make([]byte, maxPayload)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := unix.Recvmsg(c.fd, buf, oob, 0)
	if err != nil {
		return Message{}, 0, cntrerr.E(cntrerr.Transport, err, "recvmsg")
	}
	if n == 0 {
		return Message{}, 0, cntrerr.E(cntrerr.Transport, nil, "short read on ipc channel")
	}

	var msg Message
	if err := json.Unmarshal(buf[:n], &msg); err != nil {
		return Message{}, 0, cntrerr.E(cntrerr.Transport, err, "unmarshal ipc message")
	}

	var fd uintptr
	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err == nil && len(cmsgs) > 0 {
			if rights, err := unix.ParseUnixRights(&cmsgs[0]); err == nil && len(rights) > 0 {
				fd = uintptr(rights[0])
			}
		}
	}
	return msg, fd, nil
}

// Close closes the underlying socket.
func (c *Channel) Close() error {
	return unix.Close(c.fd)
}

// File wraps the descriptor in an *os.File, for handing the child end
// to exec.Cmd.ExtraFiles.
func (c *Channel) File() *os.File {
	return os.NewFile(uintptr(c.fd), "cntr-ipc")
}
