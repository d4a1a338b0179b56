package cntrfs

import (
	"errors"

	"github.com/pkg/xattr"
)

// getXattr reads one extended attribute by real path, returning
// (nil, nil) when the attribute doesn't exist so callers can map that
// to ENODATA themselves.
func getXattr(path, name string) ([]byte, error) {
	v, err := xattr.LGet(path, name)
	if err != nil {
		if isNoData(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func listXattr(path string) ([]string, error) {
	return xattr.LList(path)
}

func setXattr(path, name string, value []byte) error {
	return xattr.LSet(path, name, value)
}

func removeXattr(path, name string) error {
	return xattr.LRemove(path, name)
}

func isNoData(err error) bool {
	return errors.Is(err, xattr.ENOATTR)
}
