//go:build !linux

package contentstore

import "errors"

// reflinkCopy has no portable implementation outside Linux's FICLONE
// ioctl; callers fall back to the atomic copy strategy.
func reflinkCopy(src, dst string) error {
	return errors.New("reflink: not supported on this platform")
}
