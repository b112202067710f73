// Package fastcopy copies a regular file and its permission bits using the
// cheapest mechanism the operating system offers.
//
// On Linux the data moves with copy_file_range(2) and never passes through
// user space. On macOS a fresh destination is cloned with clonefile(2).
// Whenever that is not possible (old kernel, source and destination on
// different filesystems, unsupported filesystem, other platforms) the copy
// continues with a buffered read/write loop, so callers only ever see the
// byte count or a single error.
package fastcopy

import "github.com/nicokoch/fastcopy/internal/platform"

// ErrInvalidInput is returned, possibly wrapped, when the source does not
// exist or is not a regular file. Nothing is created at the destination in
// that case.
var ErrInvalidInput = platform.ErrInvalidInput

// Copy copies the contents of from to to and then sets the permission bits
// of to to those of from. It returns the number of bytes copied, which equals
// the size of from at the time it was opened.
//
// to is created if it does not exist and truncated if it does. If from and to
// name the same file, the file will likely be truncated.
//
// On error the destination may be left partially written with default
// permissions.
func Copy(from, to string) (int64, error) {
	result, err := platform.CopyFile(from, to)
	if err != nil {
		return 0, err
	}
	return result.BytesWritten, nil
}

// Copier copies one file to another path.
type Copier interface {
	Copy(from, to string) (int64, error)
}

// CopierFunc adapts a function to the Copier interface.
type CopierFunc func(from, to string) (int64, error)

// Copy calls f(from, to).
func (f CopierFunc) Copy(from, to string) (int64, error) { return f(from, to) }

// Default is the Copier backed by Copy.
var Default Copier = CopierFunc(Copy)
