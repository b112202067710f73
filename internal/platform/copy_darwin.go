//go:build darwin

package platform

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// CopyFile tries clonefile first (whole-file CoW copy on APFS) when the
// destination does not exist yet, then falls back to read/write on macOS.
func CopyFile(from, to string) (CopyResult, error) {
	if err := checkSource(from); err != nil {
		return CopyResult{}, err
	}

	if _, err := os.Lstat(to); errors.Is(err, fs.ErrNotExist) {
		result, err := cloneFile(from, to)
		if err == nil {
			return result, nil
		}
		if !isFallbackCloneErr(err) {
			return CopyResult{}, err
		}
	}

	return copyPath(from, to, copyAll)
}

func cloneFile(from, to string) (CopyResult, error) {
	info, err := os.Stat(from)
	if err != nil {
		return CopyResult{}, err
	}
	if err := unix.Clonefile(from, to, 0); err != nil {
		return CopyResult{}, &os.PathError{Op: "clonefile", Path: to, Err: err}
	}
	if err := os.Chmod(to, info.Mode()&permBits); err != nil {
		return CopyResult{}, err
	}
	return CopyResult{BytesWritten: info.Size(), Method: Clonefile}, nil
}

func isFallbackCloneErr(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EXDEV) || errors.Is(err, unix.EEXIST)
}
