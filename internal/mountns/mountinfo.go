package mountns

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cntrtool/cntr/internal/cntrerr"
)

// mountEntry is one line of /proc/<pid>/mountinfo, parsed just far
// enough to answer the question this package needs answered: whether a
// given mountpoint is shared, private, or some other propagation type.
type mountEntry struct {
	mountID        int
	parentID       int
	mountPoint     string
	optionalFields map[string]string
}

// propagationType reports a propagation keyword found in a mountinfo
// line's optional fields, matching what the kernel documents in
// Documentation/filesystems/proc.rst: one of "shared", "master",
// "propagate_from" or "unbindable". A private mount carries none of
// these and returns "private". When a line carries more than one
// keyword (e.g. shared and master), which one is returned is not
// defined.
func (m mountEntry) propagationType() string {
	for key := range m.optionalFields {
		switch key {
		case "shared", "master", "propagate_from", "unbindable":
			return key
		}
	}
	return "private"
}

// readMountinfo parses /proc/<pid>/mountinfo, returning every entry
// whose mount point is path or a descendant of it.
func readMountinfo(pid int, path string) ([]mountEntry, error) {
	proc := "self"
	if pid != 0 {
		proc = strconv.Itoa(pid)
	}
	f, err := os.Open(fmt.Sprintf("/proc/%s/mountinfo", proc))
	if err != nil {
		return nil, cntrerr.E(cntrerr.Kernel, err, "open mountinfo for pid %d", pid)
	}
	defer f.Close()

	prefix := strings.TrimSuffix(path, "/") + "/"
	var entries []mountEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry, err := parseMountinfoLine(scanner.Text())
		if err != nil {
			continue
		}
		if entry.mountPoint == path || strings.HasPrefix(entry.mountPoint, prefix) {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, cntrerr.E(cntrerr.Kernel, err, "scan mountinfo")
	}
	return entries, nil
}

// parseMountinfoLine splits one line into its fixed leading fields, its
// variable-length optional fields, and discards the trailing
// filesystem-specific fields this package has no use for.
func parseMountinfoLine(line string) (mountEntry, error) {
	fields := strings.Split(line, " ")
	if len(fields) < 10 {
		return mountEntry{}, fmt.Errorf("not enough fields in mountinfo line: %s", line)
	}

	sepIdx := -1
	for i, f := range fields {
		if f == "-" {
			sepIdx = i
			break
		}
	}
	if sepIdx < 0 {
		return mountEntry{}, fmt.Errorf("no separator field in mountinfo line: %s", line)
	}

	mountID, err := strconv.Atoi(fields[0])
	if err != nil {
		return mountEntry{}, fmt.Errorf("bad mount ID in mountinfo line: %s", line)
	}
	parentID, err := strconv.Atoi(fields[1])
	if err != nil {
		return mountEntry{}, fmt.Errorf("bad parent ID in mountinfo line: %s", line)
	}

	optionalFields := make(map[string]string)
	for _, of := range fields[6:sepIdx] {
		if of == "" {
			continue
		}
		kv := strings.SplitN(of, ":", 2)
		if len(kv) == 2 {
			optionalFields[kv[0]] = kv[1]
		} else {
			optionalFields[kv[0]] = ""
		}
	}

	return mountEntry{
		mountID:        mountID,
		parentID:       parentID,
		mountPoint:     fields[4],
		optionalFields: optionalFields,
	}, nil
}

// isPrivate reports whether every mount under path in pid's namespace is
// already marked private, used to verify the MS_PRIVATE recursion in
// JoinAndChroot actually took effect before trusting the namespace is
// isolated.
func isPrivate(pid int, path string) (bool, error) {
	entries, err := readMountinfo(pid, path)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.propagationType() != "private" {
			return false, nil
		}
	}
	return true, nil
}
