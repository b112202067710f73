package platform

import (
	"fmt"
	"io/fs"
	"os"
)

// contentFunc copies size bytes from src to dst. Both files are positioned at
// offset zero when it is called.
type contentFunc func(dst, src *os.File, size int64) (CopyResult, error)

// checkSource fails with ErrInvalidInput unless from resolves to a regular
// file. The check is racy by nature; the open that follows fails safely if
// the file changes underneath us.
func checkSource(from string) error {
	info, err := os.Stat(from)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !info.Mode().IsRegular() {
		return &fs.PathError{Op: "copy", Path: from, Err: ErrInvalidInput}
	}
	return nil
}

// copyPath opens from and to, hands the open files to copyContent and
// applies the source permission bits to the destination once every byte
// has been written.
//
// The destination is truncated before the source is read, so from and to
// must not name the same file.
func copyPath(from, to string, copyContent contentFunc) (CopyResult, error) {
	if err := checkSource(from); err != nil {
		return CopyResult{}, err
	}

	src, err := os.Open(from)
	if err != nil {
		return CopyResult{}, err
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return CopyResult{}, err
	}

	info, err := src.Stat()
	if err != nil {
		dst.Close()
		return CopyResult{}, err
	}
	size := info.Size()
	perm := info.Mode() & permBits

	result, err := copyContent(dst, src, size)
	if err != nil {
		dst.Close()
		return CopyResult{}, err
	}

	if err := dst.Chmod(perm); err != nil {
		dst.Close()
		return CopyResult{}, err
	}
	if err := dst.Close(); err != nil {
		return CopyResult{}, err
	}
	return result, nil
}

// copyAll is the portable contentFunc: generic read/write from the current
// offsets.
func copyAll(dst, src *os.File, size int64) (CopyResult, error) {
	preallocate(dst, size)
	n, err := copyReadWrite(dst, src)
	if err != nil {
		return CopyResult{}, err
	}
	return CopyResult{BytesWritten: n, Method: ReadWrite}, nil
}
