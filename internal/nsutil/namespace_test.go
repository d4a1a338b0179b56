package nsutil

import (
	"testing"

	"github.com/cntrtool/cntr/internal/cntrerr"
)

func TestNsPathSelf(t *testing.T) {
	if got, want := nsPath(0, Mount), "/proc/self/ns/mnt"; got != want {
		t.Fatalf("nsPath(0, Mount) = %q, want %q", got, want)
	}
}

func TestNsPathPid(t *testing.T) {
	if got, want := nsPath(42, Net), "/proc/42/ns/net"; got != want {
		t.Fatalf("nsPath(42, Net) = %q, want %q", got, want)
	}
}

func TestVerifyKindErrorsOnUnreadableLink(t *testing.T) {
	// verifyKind reads the real link target via os.Readlink, so pointing
	// it at a path that can't be read exercises the readlink failure
	// path; it must come back as a Kernel error, not panic.
	err := verifyKind("/proc/self/ns/does-not-exist", Mount)
	if err == nil {
		t.Fatal("expected an error for a missing link")
	}
	if !cntrerr.Is(err, cntrerr.Kernel) {
		t.Fatalf("expected a Kernel error, got %v", err)
	}
}

func TestFlagForKnownKinds(t *testing.T) {
	cases := map[Kind]int{
		Mount:  0x00020000,
		PID:    0x20000000,
		Net:    0x40000000,
		User:   0x10000000,
		UTS:    0x04000000,
		IPC:    0x08000000,
		Cgroup: 0x02000000,
	}
	for kind, want := range cases {
		if got := flagFor(kind); got != want {
			t.Errorf("flagFor(%s) = %#x, want %#x", kind, got, want)
		}
	}
}
